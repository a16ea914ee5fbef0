package generation

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"content-forge-api/pkg/metrics"
)

// DefaultConcurrency 模型调用默认并发上限
const DefaultConcurrency = 10

// Gate 进程内模型调用并发闸门。超出上限的调用按提交顺序排队，
// 排队期间 context 取消的任务不会被执行
type Gate struct {
	sem      *semaphore.Weighted
	limit    int
	inFlight atomic.Int64
	waiting  atomic.Int64
}

func NewGate(limit int) *Gate {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Gate{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: limit,
	}
}

// Limit 并发上限
func (g *Gate) Limit() int { return g.limit }

// InFlight 当前占用槽位的任务数
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

// Waiting 当前排队中的任务数
func (g *Gate) Waiting() int { return int(g.waiting.Load()) }

// Acquire 获取一个槽位，返回的 release 必须且只能调用一次
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	start := time.Now()
	g.waiting.Add(1)
	err = g.sem.Acquire(ctx, 1)
	g.waiting.Add(-1)
	metrics.GateWaitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	g.inFlight.Add(1)
	metrics.GateInFlight.Inc()
	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		g.inFlight.Add(-1)
		metrics.GateInFlight.Dec()
		g.sem.Release(1)
	}, nil
}

// Schedule 在闸门槽位内执行 task，task 返回后立即释放槽位
func Schedule[T any](ctx context.Context, g *Gate, task func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	release, err := g.Acquire(ctx)
	if err != nil {
		return zero, err
	}
	defer release()
	return task(ctx)
}
