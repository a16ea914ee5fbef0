// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"
	"time"

	"content-forge-api/internal/application/generation"
	"content-forge-api/internal/application/quota"
	"content-forge-api/internal/config"
	"content-forge-api/internal/domain/repository"
	"content-forge-api/internal/infrastructure/llm"
	"content-forge-api/internal/infrastructure/persistence/postgres"
	"content-forge-api/internal/infrastructure/persistence/redis"
	"content-forge-api/internal/interfaces/http/handler"
	"content-forge-api/internal/interfaces/http/middleware"
	"content-forge-api/internal/interfaces/http/router"
)

// BootstrapLayer 初始化工具使用的依赖（仅 PostgreSQL）
type BootstrapLayer struct {
	PgClient  *postgres.Client
	UserRepo  *postgres.UserRepository
	ModelRepo *postgres.ModelRateLimitRepository
	Ledger    *quota.Ledger
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRetryPolicy 提供存储重试策略
func ProvideRetryPolicy(cfg *config.Config) quota.RetryPolicy {
	return quota.DefaultRetryPolicy(cfg.Ledger.MaxAttempts, cfg.Ledger.BaseDelay)
}

// ProvideLedger 提供用量账本
func ProvideLedger(
	cfg *config.Config,
	tx repository.Transactor,
	users repository.UserRepository,
	models repository.ModelRateLimitRepository,
	retry quota.RetryPolicy,
	listener quota.ModelChangeListener,
) (*quota.Ledger, error) {
	loc, err := time.LoadLocation(cfg.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger timezone %q: %w", cfg.Ledger.Timezone, err)
	}
	daily, err := quota.NewDailyPolicy(cfg.Ledger.DailyPolicy, cfg.Ledger.DailyCap, loc)
	if err != nil {
		return nil, err
	}
	return quota.NewLedger(tx, users, models, daily,
		quota.WithRetryPolicy(retry),
		quota.WithChangeListener(listener),
	), nil
}

// ProvideNoChangeListener bootstrap 不接缓存，账本变化无需通知
func ProvideNoChangeListener() quota.ModelChangeListener {
	return nil
}

// ProvideModelRecordCache 提供排行榜数据源的 Redis 缓存
func ProvideModelRecordCache(cfg *config.Config, models repository.ModelRateLimitRepository, redisClient *redis.Client) *redis.ModelRecordCache {
	return redis.NewModelRecordCache(redisClient, models, cfg.Cache.LeaderboardTTL)
}

// ProvideLeaderboard 提供排行榜，条目每次读取时基于缓存的模型记录现算
func ProvideLeaderboard(cfg *config.Config, records *redis.ModelRecordCache, retry quota.RetryPolicy) quota.LeaderboardReader {
	var whitelist []string
	for _, m := range cfg.Generation.Models {
		if m.Leaderboard {
			whitelist = append(whitelist, m.Name)
		}
	}
	return quota.NewLeaderboard(records, whitelist, retry)
}

// ProvideModelClient 提供模型客户端
func ProvideModelClient(cfg *config.Config, factory *llm.EinoFactory) *llm.Client {
	return llm.NewClient(factory, cfg.LLM.DefaultProvider, llm.ParamsFromConfig(&cfg.Generation))
}

// ProvideGate 提供模型调用并发闸门
func ProvideGate(cfg *config.Config) *generation.Gate {
	return generation.NewGate(cfg.Generation.Concurrency)
}

// ProvideOrchestrator 提供生成编排器
func ProvideOrchestrator(cfg *config.Config, client *llm.Client, gate *generation.Gate, ledger *quota.Ledger) *generation.Orchestrator {
	models := make([]generation.ModelInfo, 0, len(cfg.Generation.Models))
	for _, m := range cfg.Generation.Models {
		models = append(models, generation.ModelInfo{Name: m.Name, FunctionCalling: m.FunctionCalling})
	}

	opts := []generation.Option{generation.WithDefaultModel(cfg.Generation.DefaultModel)}
	if cfg.Generation.CallTimeout > 0 {
		opts = append(opts, generation.WithCallTimeout(cfg.Generation.CallTimeout))
	}
	return generation.NewOrchestrator(client, gate, ledger, models, opts...)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, redisClient *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version, map[string]handler.HealthChecker{
		"postgres": pg,
		"redis":    redisClient,
	})
}

// ProvideRateLimitKey 提供限流键构造函数
func ProvideRateLimitKey() middleware.KeyFunc {
	return redis.BuildRateLimitKey
}

// ProvideRouter 提供路由器
func ProvideRouter(cfg *config.Config, h router.Handlers, limiter middleware.RateLimiter, key middleware.KeyFunc) *router.Router {
	return router.New(cfg, h, limiter, key)
}

// ProvisionModels 将配置中的模型限额写入存储
func ProvisionModels(ctx context.Context, cfg *config.Config, repo *postgres.ModelRateLimitRepository) error {
	for _, m := range cfg.Generation.Models {
		if err := repo.Provision(ctx, m.Name, m.RPM, m.TPM, m.RPD); err != nil {
			return fmt.Errorf("provision model %s: %w", m.Name, err)
		}
	}
	return nil
}
