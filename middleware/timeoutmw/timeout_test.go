package timeoutmw

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/middleware"
)

func slowRunner(d time.Duration, payload any) middleware.Runner {
	return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
		ch := make(chan *fabric.ResponseItem, 1)
		select {
		case <-time.After(d):
			ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Ok(nil), Payload: payload}
		case <-ctx.Done():
			ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeAborted, ctx.Err().Error(), false)}
		}
		close(ch)
		return ch, nil
	}
}

func TestPerAttemptSurfacesTimeout(t *testing.T) {
	mw := PerAttempt(10 * time.Millisecond)
	runner := mw(slowRunner(100*time.Millisecond, "late"))

	ch, err := runner(context.Background(), &fabric.Envelope{ID: "r1"})
	require.NoError(t, err)
	item := <-ch
	assert.False(t, item.Status.Success)
	assert.Equal(t, fabric.CodeTimeout, item.Status.Code)
}

func TestPerAttemptPassesThroughFastResult(t *testing.T) {
	mw := PerAttempt(100 * time.Millisecond)
	runner := mw(slowRunner(5*time.Millisecond, "fast"))

	ch, err := runner(context.Background(), &fabric.Envelope{ID: "r1"})
	require.NoError(t, err)
	item := <-ch
	assert.True(t, item.Status.Success)
	assert.Equal(t, "fast", item.Payload)
}

func TestPerAttemptSurfacesAbortedWhenCallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mw := PerAttempt(time.Second)
	runner := mw(slowRunner(500*time.Millisecond, "never"))

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

func TestOverallCutsOffSlowAttemptAtDeadline(t *testing.T) {
	calls := 0
	flaky := middleware.Runner(func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
		calls++
		ch := make(chan *fabric.ResponseItem, 1)
		select {
		case <-time.After(30 * time.Millisecond):
			ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeExecutionError, "slow attempt", true)}
		case <-ctx.Done():
			ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeAborted, ctx.Err().Error(), false)}
		}
		close(ch)
		return ch, nil
	})

	mw := Overall(15 * time.Millisecond)
	runner := mw(flaky)
	ch, err := runner(context.Background(), &fabric.Envelope{ID: "r1"})
	require.NoError(t, err)
	item := <-ch
	assert.False(t, item.Status.Success)
	assert.Equal(t, 1, calls)
}
