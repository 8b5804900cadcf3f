package fabric

import (
	"context"

	"github.com/faberic/fabric/method"
)

// Envelope is the unified request carrier passed to a Transport. ID is
// unique per call and echoed on every response item produced for it,
// which is what lets a multiplexed transport (like the WebSocket
// transport) route responses back to the right caller.
type Envelope struct {
	ID       string
	Method   method.Method
	Payload  any
	Metadata Metadata
	Cancel   context.Context // nil means "no explicit cancellation beyond ctx passed to Send"
}

// WithMetadata returns a shallow copy of e with Metadata replaced. The
// original envelope is left untouched, matching the "middleware
// produces a new envelope rather than mutating" contract.
func (e *Envelope) WithMetadata(md Metadata) *Envelope {
	cp := *e
	cp.Metadata = md
	return &cp
}

// ResponseItem is a single item in the (possibly multi-item) sequence a
// Transport produces for one Envelope. A unary response is a sequence
// of exactly one item.
type ResponseItem struct {
	ID       string
	Status   Status
	Payload  any
	Metadata Metadata
}

