// Package mock provides an in-memory Transport for tests, grounded on
// the teacher's client_test.go style of hand-rolled mocks rather than a
// generated/reflective mocking framework.
package mock

import (
	"context"
	"sync"

	"github.com/faberic/fabric"
)

// HandlerFunc computes the response items for one envelope.
type HandlerFunc func(ctx context.Context, env *fabric.Envelope) []*fabric.ResponseItem

// Transport is a Transport whose behavior is entirely driven by a
// caller-supplied HandlerFunc — no network, ideal for
// exercising client-side and middleware logic in isolation.
type Transport struct {
	mu      sync.Mutex
	closed  bool
	handler HandlerFunc
	Calls   []*fabric.Envelope // every envelope Send has seen, for assertions
}

// New builds a mock transport. A nil handler makes every call yield a
// single success item echoing the request payload.
func New(handler HandlerFunc) *Transport {
	if handler == nil {
		handler = func(ctx context.Context, env *fabric.Envelope) []*fabric.ResponseItem {
			return []*fabric.ResponseItem{{ID: env.ID, Status: fabric.Ok(0), Payload: env.Payload}}
		}
	}
	return &Transport{handler: handler}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Send(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
	t.mu.Lock()
	closed := t.closed
	t.Calls = append(t.Calls, env)
	t.mu.Unlock()

	ch := make(chan *fabric.ResponseItem, 4)
	if closed {
		ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeAborted, "transport closed", false)}
		close(ch)
		return ch, nil
	}

	select {
	case <-ctx.Done():
		ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeAborted, ctx.Err().Error(), false)}
		close(ch)
		return ch, nil
	default:
	}

	go func() {
		defer close(ch)
		for _, item := range t.handler(ctx, env) {
			ch <- item
		}
	}()
	return ch, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
