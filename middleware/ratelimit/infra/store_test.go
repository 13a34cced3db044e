package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pothole-core/middleware/ratelimit/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func mustStore(t *testing.T, interval time.Duration, max int, opts ...StoreOption) *WindowStore {
	t.Helper()
	s, err := NewWindowStore(interval, max, opts...)
	if err != nil {
		t.Fatalf("NewWindowStore: %v", err)
	}
	return s
}

func TestNewWindowStore_RejectsInvalidPolicy(t *testing.T) {
	if _, err := NewWindowStore(0, 10); err != ErrInvalidInterval {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	if _, err := NewWindowStore(time.Minute, 0); err != ErrInvalidMaxRequests {
		t.Fatalf("expected ErrInvalidMaxRequests, got %v", err)
	}
}

func TestWindowStore_AdmitsMaxThenLimits(t *testing.T) {
	clk := newFakeClock()
	s := mustStore(t, 5*time.Minute, 10, WithClock(clk.Now))

	for i := 1; i <= 10; i++ {
		if s.Check("u1") {
			t.Fatalf("call %d: expected admitted", i)
		}
	}
	if !s.Check("u1") {
		t.Fatalf("11th call: expected limited")
	}

	rec, ok := s.Record("u1")
	if !ok {
		t.Fatalf("expected record for u1")
	}
	if rec.Count != 10 {
		t.Fatalf("expected count to stay at 10 after rejection, got %d", rec.Count)
	}
}

func TestWindowStore_FreshWindowAfterInterval(t *testing.T) {
	clk := newFakeClock()
	s := mustStore(t, time.Minute, 2, WithClock(clk.Now))

	s.Check("k")
	s.Check("k")
	if !s.Check("k") {
		t.Fatalf("expected limited in exhausted window")
	}

	// exatamente no reset ainda é a mesma janela (now > resetAt é estrito)
	clk.Advance(time.Minute)
	if !s.Check("k") {
		t.Fatalf("expected limited at the reset instant")
	}

	clk.Advance(time.Nanosecond)
	if s.Check("k") {
		t.Fatalf("expected admitted in a fresh window")
	}

	rec, _ := s.Record("k")
	if rec.Count != 1 {
		t.Fatalf("expected count=1 in fresh window, got %d", rec.Count)
	}
	if want := clk.Now().Add(time.Minute); !rec.ResetAt.Equal(want) {
		t.Fatalf("expected resetAt=%s, got %s", want, rec.ResetAt)
	}
}

func TestWindowStore_KeysAreIndependent(t *testing.T) {
	s := mustStore(t, time.Minute, 1)

	if s.Check("a") {
		t.Fatalf("expected a admitted")
	}
	if s.Check("b") {
		t.Fatalf("expected b admitted (own window)")
	}
	if !s.Check("a") {
		t.Fatalf("expected a limited")
	}
}

func TestWindowStore_ConcurrentSameKeyNeverOveradmits(t *testing.T) {
	s := mustStore(t, time.Hour, 10, WithShards(4))

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !s.Check("hot") {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 10 {
		t.Fatalf("expected exactly 10 admitted, got %d", got)
	}
}

func TestWindowStore_SweepRemovesOnlyExpired(t *testing.T) {
	clk := newFakeClock()
	s := mustStore(t, time.Minute, 5, WithClock(clk.Now), WithSweepEvery(0))

	s.Check("old")
	clk.Advance(30 * time.Second)
	s.Check("new")
	clk.Advance(31 * time.Second)

	if n := s.Sweep(); n != 1 {
		t.Fatalf("expected 1 record removed, got %d", n)
	}
	if _, ok := s.Record("old"); ok {
		t.Fatalf("expected old to be swept")
	}
	if _, ok := s.Record("new"); !ok {
		t.Fatalf("expected new to survive the sweep")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 live record, got %d", s.Len())
	}
}

func TestWindowStore_SweepConcurrentWithChecks(t *testing.T) {
	clk := newFakeClock()
	s := mustStore(t, time.Millisecond, 3, WithClock(clk.Now), WithShards(2))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				clk.Advance(time.Millisecond)
				s.Sweep()
			}
		}
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := domain.Key([]string{"a", "b", "c", "d"}[i%4])
			for j := 0; j < 500; j++ {
				s.Check(key)
			}
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()

	for _, k := range []domain.Key{"a", "b", "c", "d"} {
		if rec, ok := s.Record(k); ok && rec.Count > 3 {
			t.Fatalf("key %s: count %d exceeds max", k, rec.Count)
		}
	}
}

func TestWindowStore_StartStopSweepsInBackground(t *testing.T) {
	clk := newFakeClock()
	s := mustStore(t, time.Minute, 5, WithClock(clk.Now), WithSweepEvery(time.Millisecond))

	s.Check("k")
	clk.Advance(2 * time.Minute)

	s.Start(context.Background())
	s.Start(context.Background()) // no-op

	deadline := time.Now().Add(time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			s.Stop()
			t.Fatalf("expected background sweep to evict the expired key")
		}
		time.Sleep(2 * time.Millisecond)
	}

	s.Stop()
	s.Stop()
}
