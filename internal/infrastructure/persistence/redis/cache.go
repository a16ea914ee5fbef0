package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"content-forge-api/internal/application/quota"
	"content-forge-api/internal/domain/entity"
	"content-forge-api/pkg/logger"
	"content-forge-api/pkg/metrics"
)

var cacheTracer = otel.Tracer("redis.cache")

const modelRecordsKey = "leaderboard:records:v2"

// Store 缓存使用的最小键值接口，*Client 实现该接口
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Cache 读穿缓存
type Cache struct {
	store Store
	name  string
	group singleflight.Group
}

// NewCache 创建缓存服务，name 用于指标标签
func NewCache(store Store, name string) *Cache {
	return &Cache{store: store, name: name}
}

// GetOrLoadSafe 使用 singleflight 防止缓存击穿
// Redis 不可用时直接回源，缓存只是加速层
func (c *Cache) GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.GetOrLoadSafe",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("cache.hit", true))
		metrics.CacheLookupTotal.WithLabelValues(c.name, "hit").Inc()
		return val, nil
	case IsNil(err):
		metrics.CacheLookupTotal.WithLabelValues(c.name, "miss").Inc()
	default:
		span.RecordError(err)
		metrics.CacheLookupTotal.WithLabelValues(c.name, "error").Inc()
		logger.Warn(ctx, "cache read failed, falling back to source",
			"cache", c.name,
			"error", err.Error(),
		)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	result, err, shared := c.group.Do(key, func() (any, error) {
		data, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}

		if err := c.store.Set(ctx, key, bytes, ttl); err != nil {
			// 缓存写入失败不影响返回结果
			span.RecordError(err)
		}
		return bytes, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("cache.shared", shared))
	return result.([]byte), nil
}

// Delete 删除缓存
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	return c.store.Del(ctx, keys...)
}

// ModelRecordCache 排行榜数据源的读穿缓存，只缓存模型原始记录；
// 条目由 quota.Leaderboard 每次读取时按当前时间重新计算
type ModelRecordCache struct {
	cache *Cache
	next  quota.RecordLister
	ttl   time.Duration
}

var (
	_ quota.RecordLister        = (*ModelRecordCache)(nil)
	_ quota.ModelChangeListener = (*ModelRecordCache)(nil)
)

// cachedRecords 缓存值，带上查询的模型列表，列表不一致时视为未命中
type cachedRecords struct {
	Models  []string                 `json:"models"`
	Records []*entity.ModelRateLimit `json:"records"`
}

// NewModelRecordCache 创建模型记录缓存；ttl <= 0 时不缓存
func NewModelRecordCache(store Store, next quota.RecordLister, ttl time.Duration) *ModelRecordCache {
	return &ModelRecordCache{
		cache: NewCache(store, "leaderboard"),
		next:  next,
		ttl:   ttl,
	}
}

// ListByModels 读取模型记录
func (c *ModelRecordCache) ListByModels(ctx context.Context, models []string) ([]*entity.ModelRateLimit, error) {
	if c.ttl <= 0 || len(models) == 0 {
		return c.next.ListByModels(ctx, models)
	}

	raw, err := c.cache.GetOrLoadSafe(ctx, modelRecordsKey, c.ttl, func(ctx context.Context) (any, error) {
		records, err := c.next.ListByModels(ctx, models)
		if err != nil {
			return nil, err
		}
		return cachedRecords{Models: models, Records: records}, nil
	})
	if err != nil {
		return nil, err
	}

	var cached cachedRecords
	if err := json.Unmarshal(raw, &cached); err != nil {
		logger.Warn(ctx, "model record cache decode failed", "error", err.Error())
		return c.next.ListByModels(ctx, models)
	}
	if !slices.Equal(cached.Models, models) {
		return c.next.ListByModels(ctx, models)
	}
	return cached.Records, nil
}

// ModelChanged 计数或评分变化后清除缓存
func (c *ModelRecordCache) ModelChanged(ctx context.Context, model string) {
	if err := c.cache.Delete(ctx, modelRecordsKey); err != nil {
		logger.Warn(ctx, "model record cache invalidate failed", "model", model, "error", err.Error())
	}
}

