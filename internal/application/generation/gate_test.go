package generation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGate_BoundsConcurrency(t *testing.T) {
	g := NewGate(10)
	var (
		current   atomic.Int64
		peak      atomic.Int64
		completed atomic.Int64
		wg        sync.WaitGroup
	)

	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Schedule(context.Background(), g, func(ctx context.Context) (struct{}, error) {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return struct{}{}, nil
			})
			if err != nil {
				t.Errorf("Schedule() error = %v", err)
				return
			}
			completed.Add(1)
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 10 {
		t.Fatalf("peak concurrency = %d, want <= 10", p)
	}
	if c := completed.Load(); c != 25 {
		t.Fatalf("completed = %d, want 25", c)
	}
	if g.InFlight() != 0 || g.Waiting() != 0 {
		t.Fatalf("gate not drained: in_flight=%d waiting=%d", g.InFlight(), g.Waiting())
	}
}

func TestGate_FIFOOrder(t *testing.T) {
	g := NewGate(1)
	hold := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		_, _ = Schedule(context.Background(), g, func(ctx context.Context) (int, error) {
			close(holding)
			<-hold
			return 0, nil
		})
	}()
	<-holding

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = Schedule(context.Background(), g, func(ctx context.Context) (int, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return i, nil
			})
		}(i)
		waitFor(t, func() bool { return g.Waiting() == i+1 })
		// 等待 goroutine 真正进入信号量队列
		time.Sleep(5 * time.Millisecond)
	}

	close(hold)
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("completion order = %v, want submission order", order)
		}
	}
	if len(order) != 5 {
		t.Fatalf("completed %d tasks, want 5", len(order))
	}
}

func TestGate_CancelledWhileQueuedNeverRuns(t *testing.T) {
	g := NewGate(1)
	release, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	done := make(chan error, 1)
	go func() {
		_, err := Schedule(ctx, g, func(ctx context.Context) (int, error) {
			ran.Store(true)
			return 1, nil
		})
		done <- err
	}()
	waitFor(t, func() bool { return g.Waiting() == 1 })
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Schedule() error = %v, want context.Canceled", err)
	}
	release()
	release()

	if ran.Load() {
		t.Fatal("cancelled task was started")
	}
	if g.InFlight() != 0 {
		t.Fatalf("in_flight = %d after release", g.InFlight())
	}

	// 槽位释放后仍可正常调度
	v, err := Schedule(context.Background(), g, func(ctx context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("Schedule() = %d, %v", v, err)
	}
}
