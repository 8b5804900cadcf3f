// Package ratelimitmw implements the rate-limit reference middleware
// (spec.md §4.9), generalizing the teacher's RateLimitMiddleware
// (golang.org/x/time/rate token bucket, reject-on-empty-bucket) with a
// second "queue" strategy that blocks the caller on limiter.Wait(ctx)
// instead of rejecting outright.
package ratelimitmw

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/middleware"
)

// Strategy selects what happens when no token is immediately available.
type Strategy int

const (
	// Reject short-circuits with RATE_LIMIT the instant the bucket is
	// empty — matches the teacher's limiter.Allow() behavior exactly.
	Reject Strategy = iota
	// Queue blocks the call until a token is available or ctx is
	// cancelled, via limiter.Wait(ctx).
	Queue
)

// Config tunes the limiter. Rate is tokens added per second, Burst is
// the bucket's maximum size.
type Config struct {
	Rate     float64
	Burst    int
	Strategy Strategy
}

// New builds the rate-limit Middleware. The limiter is constructed once
// in this outer closure and shared across every call the returned
// Middleware wraps — constructing it per-request would hand every call
// a fresh full bucket, defeating the point of limiting.
func New(cfg Config) middleware.Middleware {
	limiter := rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)
	return func(next middleware.Runner) middleware.Runner {
		return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
			switch cfg.Strategy {
			case Queue:
				if err := limiter.Wait(ctx); err != nil {
					return oneItem(&fabric.ResponseItem{
						ID:     env.ID,
						Status: fabric.Err(fabric.CodeAborted, err.Error(), false),
					}), nil
				}
			default:
				if !limiter.Allow() {
					return oneItem(&fabric.ResponseItem{
						ID:     env.ID,
						Status: fabric.Err(fabric.CodeRateLimit, "rate limit exceeded", true),
					}), nil
				}
			}
			return next(ctx, env)
		}
	}
}

func oneItem(item *fabric.ResponseItem) <-chan *fabric.ResponseItem {
	ch := make(chan *fabric.ResponseItem, 1)
	ch <- item
	close(ch)
	return ch
}
