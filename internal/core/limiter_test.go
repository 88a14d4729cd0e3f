package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewLimiterDefaults(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		wait    time.Duration
		wantMax int
	}{
		{name: "zero selects defaults", max: 0, wait: 0, wantMax: DefaultMaxConcurrent},
		{name: "negative selects defaults", max: -3, wait: -time.Second, wantMax: DefaultMaxConcurrent},
		{name: "explicit values kept", max: 2, wait: time.Second, wantMax: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLimiter(tt.max, tt.wait)
			if l.MaxConcurrent() != tt.wantMax {
				t.Errorf("MaxConcurrent() = %d, want %d", l.MaxConcurrent(), tt.wantMax)
			}
			if l.maxWait <= 0 {
				t.Errorf("maxWait = %v, want positive", l.maxWait)
			}
		})
	}
}

func mustAcquire(t *testing.T, l *Limiter) {
	t.Helper()
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
}

func TestLimiterSlots(t *testing.T) {
	l := NewLimiter(2, 20*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire #%d error = %v", i+1, err)
		}
	}
	if got := l.Status(); got != (LimiterStatus{Active: 2, Available: 0, MaxConcurrent: 2}) {
		t.Errorf("Status() with both slots held = %+v", got)
	}

	start := time.Now()
	if err := l.Acquire(ctx); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("Acquire on full limiter error = %v, want ErrTooManyRequests", err)
	}
	if waited := time.Since(start); waited < 15*time.Millisecond {
		t.Errorf("full limiter rejected after %v, want about the max wait", waited)
	}

	l.Release()
	if err := l.Acquire(ctx); err != nil {
		t.Errorf("Acquire after Release error = %v", err)
	}
	l.Release()
	l.Release()

	if got := l.Status(); got.Active != 0 || got.Available != 2 {
		t.Errorf("Status() after releasing everything = %+v", got)
	}
}

func TestLimiterAcquireCancelled(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	mustAcquire(t, l)
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Acquire(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Acquire() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire() did not return after cancel")
	}
}

func TestLimiterReleaseWakesWaiter(t *testing.T) {
	l := NewLimiter(1, time.Second)
	mustAcquire(t, l)

	acquired := make(chan error, 1)
	go func() { acquired <- l.Acquire(context.Background()) }()

	time.Sleep(5 * time.Millisecond)
	l.Release()

	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("waiting Acquire() error = %v", err)
		}
		l.Release()
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by Release")
	}
}

func TestLimiterNeverExceedsCapacity(t *testing.T) {
	const capacity, workers = 3, 12
	l := NewLimiter(capacity, time.Second)

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			defer l.Release()

			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > capacity {
		t.Errorf("peak holders = %d, want at most %d", p, capacity)
	}
	if l.ActiveCount() != 0 {
		t.Errorf("ActiveCount() after all workers = %d", l.ActiveCount())
	}
}

func TestLimiterOnChange(t *testing.T) {
	l := NewLimiter(2, time.Second)
	var seen []int
	l.OnChange(func(active int) { seen = append(seen, active) })

	mustAcquire(t, l)
	l.Acquire(context.Background())
	l.Release()
	l.Release()

	want := []int{1, 2, 1, 0}
	if len(seen) != len(want) {
		t.Fatalf("OnChange calls = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("OnChange calls = %v, want %v", seen, want)
			break
		}
	}
}

func TestLimiterWaitForDrain(t *testing.T) {
	t.Run("idle returns immediately", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := NewLimiter(1, time.Second).WaitForDrain(ctx); err != nil {
			t.Errorf("WaitForDrain() on idle limiter error = %v", err)
		}
	})

	t.Run("returns once holders release", func(t *testing.T) {
		l := NewLimiter(2, time.Second)
		mustAcquire(t, l)
		go func() {
			time.Sleep(20 * time.Millisecond)
			l.Release()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.WaitForDrain(ctx); err != nil {
			t.Errorf("WaitForDrain() error = %v", err)
		}
	})

	t.Run("gives up when context ends", func(t *testing.T) {
		l := NewLimiter(1, time.Second)
		mustAcquire(t, l)
		defer l.Release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := l.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("WaitForDrain() error = %v, want DeadlineExceeded", err)
		}
	})
}
