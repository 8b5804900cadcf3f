package procedure

import "context"

// Meta carries descriptive, non-functional information about a
// procedure: documentation tags, a human description, and a
// deprecation flag a client can surface to callers.
type Meta struct {
	Tags        []string
	Description string
	Deprecated  bool
}

// CallContext is handed to a Handler. Repository lets a handler
// recursively resolve other procedures in the same registry (e.g. to
// call a sibling procedure as part of its own work); Client, when
// non-nil, lets it make that recursive call with input and output
// validated at the call boundary. The caller a Server installs does
// not run the server's middleware chain.
type CallContext struct {
	Metadata   map[string]any
	Path       Path
	Repository *Registry
	Client     ProcedureCaller
}

// ProcedureCaller is the minimal surface CallContext needs from a
// client: enough to make a recursive, schema-validated call back into
// the registry. client.Client satisfies this.
type ProcedureCaller interface {
	CallPath(ctx context.Context, path Path, input any) (any, error)
}

// Handler is a unary procedure implementation.
type Handler func(ctx context.Context, input any, pctx *CallContext) (any, error)

// StreamItem is one item produced by a StreamHandler.
type StreamItem struct {
	Payload any
	Err     error
}

// StreamHandler is a streaming procedure implementation; it returns a
// channel of items and is expected to close it when done.
type StreamHandler func(ctx context.Context, input any, pctx *CallContext) (<-chan StreamItem, error)

// Procedure is a named endpoint with input/output validators and an
// optional implementation. A Procedure with no Handler/StreamHandler is
// a stub: useful for client-side typing (e.g. schema registration
// without a local implementation), but not executable by a server.
type Procedure struct {
	Path          Path
	InputSchema   Validator
	OutputSchema  Validator
	Meta          Meta
	Handler       Handler
	StreamHandler StreamHandler
	Streaming     bool
}

// Executable reports whether this procedure can actually be invoked.
func (p *Procedure) Executable() bool {
	if p.Streaming {
		return p.StreamHandler != nil
	}
	return p.Handler != nil
}
