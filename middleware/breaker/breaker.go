// Package breaker implements the circuit-breaker reference middleware
// (spec.md §4.9/P5): CLOSED → OPEN → HALF_OPEN → CLOSED, backed by
// sony/gobreaker/v2's generic CircuitBreaker rather than a hand-rolled
// streak counter, since the pack's own manifests reach for gobreaker
// for exactly this state machine.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/middleware"
)

// Config maps spec.md §4.9/P5's thresholds onto gobreaker.Settings
// fields.
type Config struct {
	Name               string
	FailureThreshold   uint32        // consecutive failures before OPEN
	ResetTimeout       time.Duration // how long OPEN lasts before trying HALF_OPEN
	SuccessThreshold   uint32        // default for HalfOpenMaxRequests; gobreaker closes after MaxRequests consecutive HALF_OPEN successes
	HalfOpenMaxRequests uint32       // requests allowed through per HALF_OPEN probe
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout == 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 1
	}
	if c.HalfOpenMaxRequests == 0 {
		c.HalfOpenMaxRequests = c.SuccessThreshold
	}
	return c
}

// Breaker wraps a gobreaker.CircuitBreaker trained on the terminal
// items of a middleware.Runner's response sequence: a sequence whose
// last item is a failure (retryable or not) counts as a breaker
// failure, as does an error returned by next; everything else counts
// as a success.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[[]*fabric.ResponseItem]
}

// New builds a Breaker middleware factory.
func New(cfg Config) *Breaker {
	cfg = cfg.withDefaults()
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[[]*fabric.ResponseItem](settings)}
}

// Middleware returns the composable Middleware backed by this Breaker.
func (b *Breaker) Middleware() middleware.Middleware {
	return func(next middleware.Runner) middleware.Runner {
		return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
			items, err := b.cb.Execute(func() ([]*fabric.ResponseItem, error) {
				ch, err := next(ctx, env)
				if err != nil {
					return nil, err
				}
				items := drain(ch)
				if last := lastStatus(items); last != nil && !last.Success {
					return items, errors.New(last.Message)
				}
				return items, nil
			})
			if err != nil {
				if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
					return oneItem(&fabric.ResponseItem{
						ID:     env.ID,
						Status: fabric.Err(fabric.CodeCircuitOpen, err.Error(), true),
					}), nil
				}
				// Execute's callback error means items already carries
				// the real failure detail, unless next itself errored
				// before producing any (a transport-level send failure).
				if len(items) == 0 {
					return oneItem(&fabric.ResponseItem{
						ID:     env.ID,
						Status: fabric.Err(fabric.CodeExecutionError, err.Error(), false),
					}), nil
				}
				return replay(items), nil
			}
			return replay(items), nil
		}
	}
}

// State reports the breaker's current state, for health checks.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func lastStatus(items []*fabric.ResponseItem) *fabric.Status {
	if len(items) == 0 {
		return nil
	}
	return &items[len(items)-1].Status
}

func drain(ch <-chan *fabric.ResponseItem) []*fabric.ResponseItem {
	items := make([]*fabric.ResponseItem, 0, 1)
	for item := range ch {
		items = append(items, item)
	}
	return items
}

func replay(items []*fabric.ResponseItem) <-chan *fabric.ResponseItem {
	ch := make(chan *fabric.ResponseItem, len(items))
	for _, item := range items {
		ch <- item
	}
	close(ch)
	return ch
}

func oneItem(item *fabric.ResponseItem) <-chan *fabric.ResponseItem {
	ch := make(chan *fabric.ResponseItem, 1)
	ch <- item
	close(ch)
	return ch
}
