package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/core/port"
)

// Config parameterizes one named limiter: how many failures are tolerated
// inside the window, and how long the key stays locked once exceeded.
type Config struct {
	Name        string
	Window      time.Duration
	MaxAttempts int
	Lockout     time.Duration
}

// Decision is the outcome of a Check call.
type Decision struct {
	Allowed           bool
	RemainingAttempts int
	RetryAfterSeconds int
}

// Limiter implements a per-key sliding window with lockout escalation.
// Distinct actions use distinct Configs so abuse of one action cannot lock
// an unrelated one for the same client.
type Limiter struct {
	store  port.AttemptStore
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a limiter for the supplied configuration.
func New(store port.AttemptStore, cfg Config, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = 30 * time.Minute
	}

	return &Limiter{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock injects a custom clock (primarily for testing).
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Check evaluates the key against the window and lockout state without
// charging an attempt. A fresh or expired-and-unlocked key is allowed without
// writing anything, so the window only starts at the first recorded failure.
// Crossing the attempt threshold sets the lockout; an expired window counts
// as zero.
func (l *Limiter) Check(ctx context.Context, key string) (Decision, error) {
	now := l.now().UTC()

	record, exists, err := l.store.Get(ctx, l.storageKey(key))
	if err != nil {
		return Decision{}, fmt.Errorf("check %s limiter: %w", l.cfg.Name, err)
	}
	if !exists || (record.WindowExpired(l.cfg.Window, now) && !record.Locked(now)) {
		return Decision{Allowed: true, RemainingAttempts: l.cfg.MaxAttempts}, nil
	}

	if record.Count >= l.cfg.MaxAttempts && record.LockedUntil == nil {
		record, err = l.store.Update(ctx, l.storageKey(key), l.ttl(), func(rec domain.AttemptRecord, exists bool) (domain.AttemptRecord, error) {
			if exists && rec.Count >= l.cfg.MaxAttempts && rec.LockedUntil == nil {
				until := now.Add(l.cfg.Lockout)
				rec.LockedUntil = &until
			}
			return rec, nil
		})
		if err != nil {
			return Decision{}, fmt.Errorf("lock %s limiter: %w", l.cfg.Name, err)
		}
	}

	if record.Locked(now) {
		return Decision{
			Allowed:           false,
			RetryAfterSeconds: retrySeconds(record.LockedUntil.Sub(now)),
		}, nil
	}

	remaining := l.cfg.MaxAttempts - record.Count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{Allowed: true, RemainingAttempts: remaining}, nil
}

// RecordFailure increments the window's counter, creating or resetting the
// window as needed.
func (l *Limiter) RecordFailure(ctx context.Context, key string) error {
	now := l.now().UTC()

	_, err := l.store.Update(ctx, l.storageKey(key), l.ttl(), func(rec domain.AttemptRecord, exists bool) (domain.AttemptRecord, error) {
		if !exists || (rec.WindowExpired(l.cfg.Window, now) && !rec.Locked(now)) {
			return domain.AttemptRecord{WindowStart: now, Count: 1}, nil
		}
		rec.Count++
		if rec.Count >= l.cfg.MaxAttempts && rec.LockedUntil == nil {
			until := now.Add(l.cfg.Lockout)
			rec.LockedUntil = &until
		}
		return rec, nil
	})
	if err != nil {
		return fmt.Errorf("record %s failure: %w", l.cfg.Name, err)
	}

	return nil
}

// RecordSuccess clears the record for the key. A success during an active
// lockout does not lift it: the caller is expected to Check first.
func (l *Limiter) RecordSuccess(ctx context.Context, key string) error {
	rec, exists, err := l.store.Get(ctx, l.storageKey(key))
	if err != nil {
		return fmt.Errorf("load %s record: %w", l.cfg.Name, err)
	}
	if exists && rec.Locked(l.now().UTC()) {
		return nil
	}

	if err := l.store.Clear(ctx, l.storageKey(key)); err != nil {
		return fmt.Errorf("clear %s record: %w", l.cfg.Name, err)
	}

	return nil
}

func (l *Limiter) storageKey(key string) string {
	return fmt.Sprintf("%s:%s", l.cfg.Name, key)
}

func (l *Limiter) ttl() time.Duration {
	ttl := l.cfg.Window
	if l.cfg.Lockout > ttl {
		ttl = l.cfg.Lockout
	}
	return ttl * 2
}

func retrySeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
