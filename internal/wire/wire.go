//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

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

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		LedgerSet,
		GenerationSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeBootstrap 初始化数据层（用于 bootstrap）
func InitializeBootstrap(ctx context.Context, cfg *config.Config) (*BootstrapLayer, func(), error) {
	wire.Build(
		RepoSet,
		LedgerSet,
		ProvideNoChangeListener,
		wire.Struct(new(BootstrapLayer), "*"),
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewUserRepository,
	postgres.NewModelRateLimitRepository,
)

// RepoSet 具体实现与接口绑定
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.UserRepository), new(*postgres.UserRepository)),
	wire.Bind(new(repository.ModelRateLimitRepository), new(*postgres.ModelRateLimitRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewRateLimiter,
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
	ProvideModelRecordCache,
	wire.Bind(new(quota.ModelChangeListener), new(*redis.ModelRecordCache)),
)

// LedgerSet 用量账本提供者集合
var LedgerSet = wire.NewSet(
	ProvideRetryPolicy,
	ProvideLedger,
)

// GenerationSet 生成链路提供者集合
var GenerationSet = wire.NewSet(
	llm.NewEinoFactory,
	ProvideModelClient,
	ProvideGate,
	ProvideOrchestrator,
	ProvideLeaderboard,
	wire.Bind(new(handler.Generator), new(*generation.Orchestrator)),
	wire.Bind(new(handler.UsageService), new(*quota.Ledger)),
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewGenerationHandler,
	handler.NewUsageHandler,
	handler.NewModelHandler,
	wire.Struct(new(router.Handlers), "*"),
	ProvideRateLimitKey,
	ProvideRouter,
)
