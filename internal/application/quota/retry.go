package quota

import (
	"context"
	"time"

	"content-forge-api/internal/domain/repository"
	apperrors "content-forge-api/pkg/errors"
	"content-forge-api/pkg/logger"
	"content-forge-api/pkg/metrics"
)

// Backoff 返回第 attempt 次失败后（从 0 开始）的等待时长
type Backoff func(attempt int) time.Duration

// ExponentialBackoff 基础延迟逐次翻倍：base, 2*base, 4*base...
func ExponentialBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			attempt = 0
		}
		return base << uint(attempt)
	}
}

// RetryPolicy 重试策略
type RetryPolicy struct {
	MaxAttempts int
	Backoff     Backoff
	Retryable   func(error) bool
	// Sleep 可替换，便于测试
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy 存储访问默认重试策略：最多 3 次，只重试瞬时错误
func DefaultRetryPolicy(maxAttempts int, base time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff:     ExponentialBackoff(base),
		Retryable:   repository.IsTransient,
		Sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do 执行 fn，可重试错误按退避重试；重试耗尽后返回 StoreTransient
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := time.Duration(0)
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		metrics.LedgerRetryTotal.WithLabelValues(op).Inc()
		logger.Warn(ctx, "store operation failed, retrying",
			"op", op,
			"attempt", attempt+1,
			"max_attempts", attempts,
			"delay", delay.String(),
			"error", err.Error(),
		)
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return apperrors.ErrStoreTransient.WithError(err)
		}
	}
	return apperrors.ErrStoreTransient.WithDetail(op).WithError(err)
}
