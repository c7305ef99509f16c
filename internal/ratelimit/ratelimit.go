// Package ratelimit implements a Redis fixed-window request limiter for echo.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "authapi/internal/errors"
)

// Counter increments a windowed counter. *cache.Client implements it.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// KeyFunc returns the client key for c, e.g. "uid:<id>" or "ip:<addr>".
type KeyFunc func(c echo.Context) string

// Tier is one named limit.
type Tier struct {
	Name    string
	Limit   int
	Window  time.Duration
	Message string
	Source  apperrors.FieldError
}

// Limiter builds middleware for tiers sharing one counter.
type Limiter struct {
	counter    Counter
	log        *zap.Logger
	onExceeded func(tier string)
}

// Option customises a Limiter.
type Option func(*Limiter)

// OnExceeded registers a hook called for every rejected request.
func OnExceeded(fn func(tier string)) Option {
	return func(l *Limiter) { l.onExceeded = fn }
}

func New(counter Counter, log *zap.Logger, opts ...Option) *Limiter {
	l := &Limiter{counter: counter, log: log, onExceeded: func(string) {}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ByIP keys requests by client address.
func ByIP(c echo.Context) string {
	return "ip:" + c.RealIP()
}

// Middleware enforces tier. keyFn defaults to ByIP. When the counter is unavailable
// the request is let through.
func (l *Limiter) Middleware(tier Tier, keyFn KeyFunc) echo.MiddlewareFunc {
	if keyFn == nil {
		keyFn = ByIP
	}
	if tier.Message == "" {
		tier.Message = "Too many requests"
	}
	if tier.Source.Path == "" {
		tier.Source = apperrors.FieldError{Path: "rateLimit", Message: "Rate limit exceeded"}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "rl:" + tier.Name + ":" + keyFn(c)
			count, left, err := l.counter.IncrWindow(c.Request().Context(), key, tier.Window)
			if err != nil {
				l.log.Warn("rate limiter unavailable, allowing request", zap.String("tier", tier.Name), zap.Error(err))
				return next(c)
			}

			resetSeconds := int(left.Round(time.Second).Seconds())
			remaining := tier.Limit - int(count)
			if remaining < 0 {
				remaining = 0
			}
			h := c.Response().Header()
			h.Set("RateLimit-Limit", strconv.Itoa(tier.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("RateLimit-Reset", strconv.Itoa(resetSeconds))

			if count > int64(tier.Limit) {
				h.Set("Retry-After", strconv.Itoa(resetSeconds))
				l.onExceeded(tier.Name)
				return apperrors.TooManyRequests(tier.Message, tier.Source)
			}
			return next(c)
		}
	}
}
