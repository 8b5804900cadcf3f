package batch

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Semaphore bounds concurrency to at most n permits in flight at once,
// built on golang.org/x/sync/semaphore.Weighted (seen across the pack —
// dmitrymomot-foundation, bassosimone-nop, and numerous other_examples
// manifests reach for golang.org/x/sync for exactly this). It
// generalizes the teacher's transport.ConnPool buffered-channel-as-FIFO
// idiom into a genuine counting semaphore.
type Semaphore struct {
	weighted *semaphore.Weighted
}

// NewSemaphore creates a Semaphore with n permits.
func NewSemaphore(n int) *Semaphore {
	return &Semaphore{weighted: semaphore.NewWeighted(int64(n))}
}

// Acquire blocks until a permit is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	return s.weighted.Acquire(ctx, 1)
}

// Release returns a permit to the pool.
func (s *Semaphore) Release() {
	s.weighted.Release(1)
}

// WithPermit runs f while holding one permit, guaranteeing the permit
// is released on every exit path of f — normal return, error, or panic
// (the defer runs during a panic's unwind too) — matching spec.md
// §4.7's "withPermit(f) guarantees release on every exit path"
// requirement. This mirrors the teacher's handleRequest, which defers
// svr.wg.Done() immediately after svr.wg.Add(1) for the same reason.
func (s *Semaphore) WithPermit(ctx context.Context, f func() error) error {
	if err := s.Acquire(ctx); err != nil {
		return err
	}
	defer s.Release()
	return f()
}
