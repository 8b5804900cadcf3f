// Package timeoutmw implements the timeout reference middlewares
// (spec.md §4.9): a per-attempt variant that re-arms a fresh deadline
// on every call to next (so it composes correctly inside a retry
// middleware), and an overall variant that arms the deadline once at
// entry, spanning every retry.
//
// Grounded on the teacher's TimeOutMiddleware (context.WithTimeout +
// a buffered result channel raced against ctx.Done), generalized to
// the fabric's ResponseItem shape and extended to actually cancel the
// in-flight call via ctx instead of leaving it running in the
// background after the deadline fires — the teacher's "handler
// continues running in the background" note describes a classic
// stdlib-timeout gap that a fabric built on ctx cancellation doesn't
// need to live with, since ctx cancellation here is expected to be
// observed by the transport.
package timeoutmw

import (
	"context"
	"time"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/middleware"
)

// PerAttempt composes a fresh deadline with the request's own
// cancellation on every call to next.
func PerAttempt(d time.Duration) middleware.Middleware {
	return func(next middleware.Runner) middleware.Runner {
		return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
			return runWithDeadline(ctx, d, env, next)
		}
	}
}

// Overall arms the deadline once, before the first call to next, so it
// spans every retry a downstream middleware performs.
func Overall(d time.Duration) middleware.Middleware {
	return func(next middleware.Runner) middleware.Runner {
		return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, d)
			item := awaitOrTimeout(attemptCtx, ctx, env, func() (<-chan *fabric.ResponseItem, error) {
				return next(attemptCtx, env)
			})
			cancel()
			return item, nil
		}
	}
}

func runWithDeadline(ctx context.Context, d time.Duration, env *fabric.Envelope, next middleware.Runner) (<-chan *fabric.ResponseItem, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return awaitOrTimeout(attemptCtx, ctx, env, func() (<-chan *fabric.ResponseItem, error) {
		return next(attemptCtx, env)
	}), nil
}

// awaitOrTimeout runs call and races its first item against
// attemptCtx's deadline. If the deadline fires and the outer ctx (the
// caller's own cancellation) was not itself the cause, it surfaces
// TIMEOUT; if the outer ctx is what fired, it surfaces ABORTED instead,
// matching spec.md §4.9's "if the deadline fires and the outer request
// was not cancelled, surface TIMEOUT".
func awaitOrTimeout(attemptCtx, outerCtx context.Context, env *fabric.Envelope, call func() (<-chan *fabric.ResponseItem, error)) <-chan *fabric.ResponseItem {
	done := make(chan *fabric.ResponseItem, 1)
	go func() {
		ch, err := call()
		if err != nil {
			done <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeExecutionError, err.Error(), false)}
			return
		}
		item, ok := <-ch
		if !ok {
			item = &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeExecutionError, "empty response sequence", false)}
		}
		done <- item
	}()

	select {
	case item := <-done:
		return oneItem(item)
	case <-attemptCtx.Done():
		if outerCtx.Err() != nil {
			return oneItem(&fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeAborted, outerCtx.Err().Error(), false)})
		}
		return oneItem(&fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeTimeout, "deadline exceeded", true)})
	}
}

func oneItem(item *fabric.ResponseItem) <-chan *fabric.ResponseItem {
	ch := make(chan *fabric.ResponseItem, 1)
	ch <- item
	close(ch)
	return ch
}
