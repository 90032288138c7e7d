package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	rateLimitProblemType  = "https://adopt.tailhaven.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// RateLimitStore defines the persistence operations required by the throttle.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}

// IdentifierFunc extracts the identifier a rule is keyed by (e.g. client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule is one sliding-window throttle: at most Limit requests per
// identifier inside Window.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter builds per-route throttle middleware over a shared store. It is
// a coarse pre-filter keyed by client, distinct from the per-account attempt
// limiters inside the services: it returns Retry-After and never locks
// anything.
type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// windowState is the observed sliding window for one identifier.
type windowState struct {
	count int
	reset time.Time
}

// ProblemDetails is an RFC 9457 payload for throttle rejections.
type ProblemDetails struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail"`
	Instance   string         `json:"instance"`
	RetryAfter int            `json:"retry_after"`
	TraceID    string         `json:"trace_id,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// NewRateLimiter constructs a RateLimiter over the supplied store.
func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock injects a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier keys a rule by the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// RateLimit enforces one rule. Store failures fail open: a throttle outage
// must not take adoption intake down with it.
func (rl *RateLimiter) RateLimit(rule RateLimitRule) gin.HandlerFunc {
	if rule.Name == "" {
		rule.Name = "default"
	}
	disabled := rl.store == nil || rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0

	return func(c *gin.Context) {
		if disabled {
			c.Next()
			return
		}

		identifier, ok := rule.Identifier(c)
		if !ok || identifier == "" {
			c.Next()
			return
		}

		key := rule.Name + ":" + identifier
		now := rl.now()
		ctx := c.Request.Context()

		state, err := rl.observeWindow(ctx, key, rule, now)
		if err != nil {
			rl.logger.Warn("throttle check failed, allowing request",
				zap.String("rule", rule.Name), zap.Error(err))
			c.Next()
			return
		}

		if state.count >= rule.Limit {
			rl.reject(c, rule, state, now)
			return
		}

		if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
			rl.logger.Warn("throttle record failed, allowing request",
				zap.String("rule", rule.Name), zap.Error(err))
			c.Next()
			return
		}
		state.count++

		rl.writeHeaders(c, rule, state)
		c.Next()
	}
}

// observeWindow trims expired attempts and reads the current count. The reset
// instant is when the oldest surviving attempt ages out; with no attempts the
// window would reset one full Window from now.
func (rl *RateLimiter) observeWindow(ctx context.Context, key string, rule RateLimitRule, now time.Time) (windowState, error) {
	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return windowState{}, err
	}

	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return windowState{}, err
	}

	state := windowState{count: count, reset: now.Add(rule.Window)}

	oldest, hasAttempts, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return windowState{}, err
	}
	if hasAttempts {
		state.reset = oldest.Add(rule.Window)
	}

	return state, nil
}

func (rl *RateLimiter) writeHeaders(c *gin.Context, rule RateLimitRule, state windowState) {
	remaining := rule.Limit - state.count
	if remaining < 0 {
		remaining = 0
	}

	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(state.reset.Unix(), 10))
}

func (rl *RateLimiter) reject(c *gin.Context, rule RateLimitRule, state windowState, now time.Time) {
	retrySeconds := int(math.Ceil(state.reset.Sub(now).Seconds()))
	if retrySeconds < 0 {
		retrySeconds = 0
	}

	rl.writeHeaders(c, rule, windowState{count: rule.Limit, reset: state.reset})
	c.Header("Retry-After", strconv.Itoa(retrySeconds))

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     "Too many requests. Try again in " + strconv.Itoa(retrySeconds) + " seconds.",
		Instance:   instance,
		RetryAfter: retrySeconds,
		TraceID:    GetTraceID(c),
	})
}
