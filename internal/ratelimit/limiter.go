// Package ratelimit implements fixed-window quotas on top of the cache counters.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/internal/cache"
)

// Rule is a named quota of Limit calls per Window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Counter is the cache primitive a limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type Limiter struct {
	counter Counter
	now     func() time.Time
	logger  *zap.Logger
}

func New(counter Counter, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{counter: counter, now: time.Now, logger: logger.With(zap.String("component", "ratelimit"))}
}

// WithClock replaces the time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow consumes one unit of rule for subject. It fails open when the counter backend is down.
func (l *Limiter) Allow(ctx context.Context, rule Rule, subject string) error {
	if l == nil || l.counter == nil || rule.Limit <= 0 {
		return nil
	}
	window := rule.Window
	if window <= 0 {
		window = cache.RateWindow
	}
	now := l.now()
	key := cache.RateKey(rule.Name, subject, now, window)

	n, err := l.counter.Incr(ctx, key, window)
	if err != nil {
		l.logger.Warn("rate limiter degraded, allowing request",
			zap.String("rule", rule.Name),
			zap.String("subject", subject),
			zap.Error(err))
		return nil
	}
	if n > int64(rule.Limit) {
		return domain.NewRateLimitError(
			fmt.Sprintf("rate limit exceeded: %d %s requests per %s", rule.Limit, rule.Name, window),
			retryAfter(now, window),
		)
	}
	return nil
}

// retryAfter is the time left in the window containing now.
func retryAfter(now time.Time, window time.Duration) time.Duration {
	elapsed := time.Duration(now.UnixNano() % int64(window))
	return window - elapsed
}
