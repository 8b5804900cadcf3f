// Package transport defines the abstract wire-format seam (spec.md
// §4.2): Transport is the sole contract a Client or Server talks to;
// concrete transports (in-process, HTTP, WebSocket, mock) translate to
// and from it.
package transport

import (
	"context"

	"github.com/faberic/fabric"
)

// Transport sends an Envelope and produces a lazy sequence of
// ResponseItems. A successful unary call yields exactly one item.
// Transport-level failures (dial errors, decode errors, a send on a
// transport that is already closed, etc.) are yielded as a single error
// ResponseItem rather than returned as a Go error from Send.
type Transport interface {
	// Name is a stable identifier for logging/diagnostics.
	Name() string
	// Send delivers env and returns a channel of response items. The
	// channel is closed once the response sequence ends. If ctx is done
	// before or during sending, Send yields a single ABORTED error item
	// and closes the channel. Of the shipped transports only the
	// WebSocket transport also watches env.Cancel; the HTTP, in-process
	// and mock transports ignore it.
	Send(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error)
	// Close idempotently releases all resources held by the
	// transport. After Close, Send yields a terminal error.
	Close() error
}

// Listener is the server-side counterpart: something a Server can
// start and stop to accept incoming Envelopes and dispatch them to a
// handler.
type Listener interface {
	Name() string
	// Listen blocks, dispatching incoming envelopes to handle, until
	// ctx is cancelled or Close is called.
	Listen(ctx context.Context, handle HandleFunc) error
	Close() error
}

// HandleFunc is how a Listener hands an inbound Envelope to the server
// core and gets back the response to write out.
type HandleFunc func(ctx context.Context, env *fabric.Envelope) *fabric.ResponseItem
