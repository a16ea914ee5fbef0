// Package main 内容生成 HTTP 服务入口
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"content-forge-api/internal/config"
	einoobs "content-forge-api/internal/observability/eino"
	"content-forge-api/internal/wire"
	"content-forge-api/pkg/logger"
	"content-forge-api/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// minShutdownGrace 关闭等待下限；进行中的生成还要完成模型调用与记账
const minShutdownGrace = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.App.Version == "" || cfg.App.Version == "v0.0.0" {
		cfg.App.Version = Version
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	if err := run(cfg); err != nil {
		logger.Fatal(context.Background(), "content generation service stopped", err)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.FromContext(ctx)
	log.Info("starting content generation service",
		"version", cfg.App.Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 模型调用的 token 与耗时指标
	einoobs.Init()
	logGenerationSetup(log, cfg)

	app, cleanupApp, err := wire.InitializeApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer cleanupApp()

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		grace := shutdownGrace(cfg)
		log.Info("draining in-flight generations", "grace", grace.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("content generation service exited")
	return nil
}

// shutdownGrace 至少覆盖一次完整的模型调用，避免生成完成后记账被截断
func shutdownGrace(cfg *config.Config) time.Duration {
	if grace := cfg.Generation.CallTimeout + 10*time.Second; grace > minShutdownGrace {
		return grace
	}
	return minShutdownGrace
}

// logGenerationSetup 启动时输出模型目录，提供商缺少密钥时提前告警
func logGenerationSetup(log *slog.Logger, cfg *config.Config) {
	names := make([]string, 0, len(cfg.Generation.Models))
	for _, m := range cfg.Generation.Models {
		names = append(names, m.Name)
	}
	log.Info("generation configured",
		"provider", cfg.LLM.DefaultProvider,
		"default_model", cfg.Generation.DefaultModel,
		"models", strings.Join(names, ","),
		"concurrency", cfg.Generation.Concurrency,
		"call_timeout", cfg.Generation.CallTimeout.String(),
		"daily_policy", cfg.Ledger.DailyPolicy,
	)

	provider, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	if !ok || strings.TrimSpace(provider.APIKey) == "" {
		log.Warn("default llm provider has no api key, generation requests will fail",
			"provider", cfg.LLM.DefaultProvider,
		)
	}
}
