// Package inprocess implements the simplest transport: a direct
// function call into a handler, with no serialization and no network.
// It's the transport a Client uses to reach a Server living in the same
// process, and what spec.md §1 calls "straightforward once the
// contract is fixed." (A procedure's CallContext.Client does not go
// through it: the Server installs its own registry-backed caller.)
package inprocess

import (
	"context"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/transport"
)

// Transport adapts a transport.HandleFunc (the same function shape a
// Listener delivers inbound envelopes to) into a Transport a Client can
// hold directly.
type Transport struct {
	handle transport.HandleFunc
	closed bool
}

// New wraps handle as an in-process Transport.
func New(handle transport.HandleFunc) *Transport {
	return &Transport{handle: handle}
}

func (t *Transport) Name() string { return "inprocess" }

func (t *Transport) Send(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
	ch := make(chan *fabric.ResponseItem, 1)
	if t.closed {
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

	item := t.handle(ctx, env)
	ch <- item
	close(ch)
	return ch, nil
}

func (t *Transport) Close() error {
	t.closed = true
	return nil
}
