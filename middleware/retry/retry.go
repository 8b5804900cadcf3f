// Package retry implements the retry reference middleware (spec.md
// §4.9): on a retryable error item, wait a jittered exponential
// backoff and re-invoke next, bounded by MaxRetries.
//
// Grounded on the teacher's RetryMiddleware (exponential backoff via
// time.Sleep(base*2^i), a string-matched retryable check), generalized
// from a substring check on an error message to the fabric's explicit
// Status.Retryable flag, and made cancellation-aware since the backoff
// wait can now span a real deadline instead of a blocking sleep.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/middleware"
)

// Config tunes the retry middleware.
type Config struct {
	MaxRetries int
	Base       time.Duration // backoff base; wait = Base * 2^attempt ± jitter*Base
	Jitter     float64       // fraction of Base added/subtracted uniformly at random, e.g. 0.1
}

// New builds a retry middleware. On construction it "provides" nothing
// new to the context and "requires" nothing, so it has no Declared
// contract of its own — wrap with middleware.Declared{} only if a
// concrete deployment wants to assert one.
func New(cfg Config) middleware.Middleware {
	return func(next middleware.Runner) middleware.Runner {
		return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
			var lastCh <-chan *fabric.ResponseItem
			var lastErr error

			for attempt := 0; ; attempt++ {
				lastCh, lastErr = next(ctx, env)
				if lastErr != nil {
					return lastCh, lastErr
				}

				item, ok := peek(lastCh)
				if !ok || item.Status.Success || !item.Status.Retryable || attempt >= cfg.MaxRetries {
					return rewrap(item, ok), nil
				}

				wait := backoff(cfg, attempt)
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					abort := &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeAborted, ctx.Err().Error(), false)}
					return oneItem(abort), nil
				}
			}
		}
	}
}

func backoff(cfg Config, attempt int) time.Duration {
	base := float64(cfg.Base) * float64(int64(1)<<uint(attempt))
	if cfg.Jitter > 0 {
		delta := float64(cfg.Base) * cfg.Jitter
		base += (rand.Float64()*2 - 1) * delta
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}

// peek reads the first item off ch (the retry middleware only ever
// looks at the first item — unary call semantics — and any further
// items on a streaming response are left undrained, matching the
// "retry the entire sub-call" contract for MW3).
func peek(ch <-chan *fabric.ResponseItem) (*fabric.ResponseItem, bool) {
	item, ok := <-ch
	return item, ok
}

func rewrap(item *fabric.ResponseItem, ok bool) <-chan *fabric.ResponseItem {
	if !ok {
		out := make(chan *fabric.ResponseItem)
		close(out)
		return out
	}
	return oneItem(item)
}

func oneItem(item *fabric.ResponseItem) <-chan *fabric.ResponseItem {
	ch := make(chan *fabric.ResponseItem, 1)
	ch <- item
	close(ch)
	return ch
}
