package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, cfg Config, clock *fakeClock) *Limiter {
	t.Helper()
	store := NewMemoryAttemptStore().WithClock(clock.Now)
	return New(store, cfg, nil).WithClock(clock.Now)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiterCheckDoesNotStartWindow(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryAttemptStore().WithClock(clock.Now)
	limiter := New(store, Config{
		Name:        "login",
		Window:      15 * time.Minute,
		MaxAttempts: 2,
		Lockout:     30 * time.Minute,
	}, nil).WithClock(clock.Now)

	ctx := context.Background()

	if decision, err := limiter.Check(ctx, "carol@example.com"); err != nil || !decision.Allowed {
		t.Fatalf("fresh key check: allowed=%v err=%v", decision.Allowed, err)
	}
	if _, exists, err := store.Get(ctx, "login:carol@example.com"); err != nil || exists {
		t.Fatalf("a check on a fresh key must not write a record (exists=%v err=%v)", exists, err)
	}

	// The window starts at the first failure, not the earlier check: two
	// failures 2 minutes apart land in the same window even though the
	// check preceded them by 14 minutes.
	clock.Advance(14 * time.Minute)
	if err := limiter.RecordFailure(ctx, "carol@example.com"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if err := limiter.RecordFailure(ctx, "carol@example.com"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	decision, err := limiter.Check(ctx, "carol@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if decision.Allowed {
		t.Fatal("two failures inside the failure-anchored window should lock the key")
	}
}

func TestLimiterLocksAfterMaxFailures(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, Config{
		Name:        "login",
		Window:      15 * time.Minute,
		MaxAttempts: 5,
		Lockout:     30 * time.Minute,
	}, clock)

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		decision, err := limiter.Check(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		if err := limiter.RecordFailure(ctx, "alice@example.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	decision, err := limiter.Check(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("Check after failures: %v", err)
	}
	if decision.Allowed {
		t.Fatal("sixth attempt should be locked out")
	}
	if decision.RetryAfterSeconds <= 0 || decision.RetryAfterSeconds > 30*60 {
		t.Fatalf("unexpected retry-after %d", decision.RetryAfterSeconds)
	}

	// Lockout holds even once the failure window has rolled over.
	clock.Advance(16 * time.Minute)
	decision, err = limiter.Check(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("Check during lockout: %v", err)
	}
	if decision.Allowed {
		t.Fatal("attempt during lockout should be denied")
	}

	clock.Advance(15 * time.Minute)
	decision, err = limiter.Check(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("Check after lockout: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("attempt after lockout expiry should be allowed")
	}
}

func TestLimiterWindowExpiryResetsCount(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, Config{
		Name:        "login",
		Window:      15 * time.Minute,
		MaxAttempts: 5,
		Lockout:     30 * time.Minute,
	}, clock)

	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := limiter.RecordFailure(ctx, "bob@example.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	clock.Advance(16 * time.Minute)

	decision, err := limiter.Check(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("attempt after window expiry should be allowed")
	}
	if decision.RemainingAttempts != 5 {
		t.Fatalf("expired window should reset budget, remaining = %d", decision.RemainingAttempts)
	}
}

func TestLimiterSuccessClearsFailures(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, Config{
		Name:        "login",
		Window:      15 * time.Minute,
		MaxAttempts: 5,
		Lockout:     30 * time.Minute,
	}, clock)

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.RecordFailure(ctx, "carol@example.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	if err := limiter.RecordSuccess(ctx, "carol@example.com"); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}

	decision, err := limiter.Check(ctx, "carol@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if decision.RemainingAttempts != 5 {
		t.Fatalf("success should clear the counter, remaining = %d", decision.RemainingAttempts)
	}
}

func TestLimiterSuccessDoesNotLiftActiveLockout(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, Config{
		Name:        "login",
		Window:      15 * time.Minute,
		MaxAttempts: 2,
		Lockout:     30 * time.Minute,
	}, clock)

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.RecordFailure(ctx, "dave@example.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	if decision, _ := limiter.Check(ctx, "dave@example.com"); decision.Allowed {
		t.Fatal("expected lockout")
	}

	if err := limiter.RecordSuccess(ctx, "dave@example.com"); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}

	if decision, _ := limiter.Check(ctx, "dave@example.com"); decision.Allowed {
		t.Fatal("success during lockout must not lift it")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(t, Config{
		Name:        "login",
		Window:      15 * time.Minute,
		MaxAttempts: 2,
		Lockout:     30 * time.Minute,
	}, clock)

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.RecordFailure(ctx, "eve@example.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	if decision, _ := limiter.Check(ctx, "eve@example.com"); decision.Allowed {
		t.Fatal("expected eve to be locked")
	}
	if decision, _ := limiter.Check(ctx, "frank@example.com"); !decision.Allowed {
		t.Fatal("frank should be unaffected by eve's lockout")
	}
}

func TestLimiterConcurrentFailuresAreCounted(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryAttemptStore().WithClock(clock.Now)
	limiter := New(store, Config{
		Name:        "login",
		Window:      15 * time.Minute,
		MaxAttempts: 100,
		Lockout:     30 * time.Minute,
	}, nil).WithClock(clock.Now)

	ctx := context.Background()
	const workers = 50

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = limiter.RecordFailure(ctx, "shared@example.com")
		}()
	}
	wg.Wait()

	decision, err := limiter.Check(ctx, "shared@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if decision.RemainingAttempts != 100-workers {
		t.Fatalf("remaining = %d, want %d", decision.RemainingAttempts, 100-workers)
	}
}
