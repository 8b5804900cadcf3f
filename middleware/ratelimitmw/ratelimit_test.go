package ratelimitmw

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faberic/fabric"
)

func noop(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
	ch := make(chan *fabric.ResponseItem, 1)
	ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Ok(nil)}
	close(ch)
	return ch, nil
}

func TestRejectStrategyRejectsWhenBucketEmpty(t *testing.T) {
	mw := New(Config{Rate: 1, Burst: 1, Strategy: Reject})
	runner := mw(noop)

	ch1, _ := runner(context.Background(), &fabric.Envelope{ID: "a"})
	item1 := <-ch1
	assert.True(t, item1.Status.Success)

	ch2, _ := runner(context.Background(), &fabric.Envelope{ID: "b"})
	item2 := <-ch2
	assert.False(t, item2.Status.Success)
	assert.Equal(t, fabric.CodeRateLimit, item2.Status.Code)
}

func TestQueueStrategyWaitsForToken(t *testing.T) {
	mw := New(Config{Rate: 100, Burst: 1, Strategy: Queue})
	runner := mw(noop)

	ch1, _ := runner(context.Background(), &fabric.Envelope{ID: "a"})
	<-ch1

	start := time.Now()
	ch2, err := runner(context.Background(), &fabric.Envelope{ID: "b"})
	require.NoError(t, err)
	item2 := <-ch2
	assert.True(t, item2.Status.Success)
	assert.True(t, time.Since(start) > 0)
}

func TestQueueStrategySurfacesCancellation(t *testing.T) {
	mw := New(Config{Rate: 0.001, Burst: 1, Strategy: Queue})
	runner := mw(noop)
	runner(context.Background(), &fabric.Envelope{ID: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	ch, err := runner(ctx, &fabric.Envelope{ID: "b"})
	require.NoError(t, err)
	item := <-ch
	assert.False(t, item.Status.Success)
	assert.Equal(t, fabric.CodeAborted, item.Status.Code)
}
