package cachemw

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/method"
)

func TestCacheHitShortCircuitsNext(t *testing.T) {
	var calls int32
	next := func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
		atomic.AddInt32(&calls, 1)
		ch := make(chan *fabric.ResponseItem, 1)
		ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Ok(nil), Payload: "result"}
		close(ch)
		return ch, nil
	}

	c := New(Config{Size: 10, TTL: time.Minute})
	runner := c.Middleware()(next)

	env := &fabric.Envelope{ID: "r1", Method: method.Method{Service: "x", Operation: "y"}, Payload: map[string]any{"id": 1}}

	ch1, err := runner(context.Background(), env)
	require.NoError(t, err)
	item1 := <-ch1
	assert.Equal(t, "result", item1.Payload)

	ch2, err := runner(context.Background(), env)
	require.NoError(t, err)
	item2 := <-ch2
	assert.Equal(t, "result", item2.Payload)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call must be served from cache")
	assert.Equal(t, int64(1), c.Stats().Hits)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	next := func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
		ch := make(chan *fabric.ResponseItem, 1)
		ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeHandlerError, "boom", false)}
		close(ch)
		return ch, nil
	}

	c := New(Config{Size: 10, TTL: time.Minute})
	runner := c.Middleware()(next)
	env := &fabric.Envelope{ID: "r1", Method: method.Method{Service: "x", Operation: "y"}}

	runner(context.Background(), env)
	runner(context.Background(), env)

	assert.Equal(t, int64(0), c.Stats().Hits)
	assert.Equal(t, int64(2), c.Stats().Misses)
}

func TestCacheKeyDistinguishesPayload(t *testing.T) {
	var calls int32
	next := func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
		atomic.AddInt32(&calls, 1)
		ch := make(chan *fabric.ResponseItem, 1)
		ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Ok(nil), Payload: env.Payload}
		close(ch)
		return ch, nil
	}

	c := New(Config{Size: 10, TTL: time.Minute})
	runner := c.Middleware()(next)

	m := method.Method{Service: "x", Operation: "y"}
	runner(context.Background(), &fabric.Envelope{ID: "a", Method: m, Payload: 1})
	runner(context.Background(), &fabric.Envelope{ID: "b", Method: m, Payload: 2})

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
