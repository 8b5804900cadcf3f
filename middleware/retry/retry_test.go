package retry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faberic/fabric"
)

func TestRetrySucceedsAfterRetryableFailures(t *testing.T) {
	var calls int32
	next := func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
		n := atomic.AddInt32(&calls, 1)
		ch := make(chan *fabric.ResponseItem, 1)
		if n < 3 {
			ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeExecutionError, "transient", true)}
		} else {
			ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Ok(nil), Payload: "done"}
		}
		close(ch)
		return ch, nil
	}

	mw := New(Config{MaxRetries: 3, Base: time.Millisecond})
	runner := mw(next)

	ch, err := runner(context.Background(), &fabric.Envelope{ID: "r1"})
	require.NoError(t, err)
	item := <-ch
	assert.True(t, item.Status.Success)
	assert.Equal(t, "done", item.Payload)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryDoesNotRetryNonRetryableError(t *testing.T) {
	var calls int32
	next := func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
		atomic.AddInt32(&calls, 1)
		ch := make(chan *fabric.ResponseItem, 1)
		ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeValidationError, "bad input", false)}
		close(ch)
		return ch, nil
	}

	mw := New(Config{MaxRetries: 5, Base: time.Millisecond})
	runner := mw(next)
	ch, err := runner(context.Background(), &fabric.Envelope{ID: "r1"})
	require.NoError(t, err)
	item := <-ch
	assert.False(t, item.Status.Success)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryStopsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	next := func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
		ch := make(chan *fabric.ResponseItem, 1)
		ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeExecutionError, "transient", true)}
		close(ch)
		return ch, nil
	}

	mw := New(Config{MaxRetries: 100, Base: 50 * time.Millisecond})
	runner := mw(next)

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	ch, err := runner(ctx, &fabric.Envelope{ID: "r1"})
	require.NoError(t, err)
	item := <-ch
	assert.False(t, item.Status.Success)
	assert.Equal(t, fabric.CodeAborted, item.Status.Code)
}
