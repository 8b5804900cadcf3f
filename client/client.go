// Package client implements the call/stream side of the fabric: it
// does no address discovery of its own, but takes
// a transport plus a middleware chain and turns method calls into
// envelopes, merging context from a chain of ancestor clients exactly
// as spec.md §4.4 describes.
//
// It generalizes the teacher's client.Client, which hard-wired
// registry discovery, balancer selection, and a per-address transport
// pool directly into Call. Here that wiring is pushed out to whatever
// constructs the Transport (see transport/httptransport and
// transport/ws, which dial a fixed address), and Call
// itself is reduced to its essential shape: merge context, run the
// chain, unwrap the first item.
package client

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/method"
	"github.com/faberic/fabric/middleware"
	"github.com/faberic/fabric/procedure"
	"github.com/faberic/fabric/transport"
)

type schemaPair struct {
	In  procedure.Validator
	Out procedure.Validator
}

// Client dispatches calls through a transport, wrapped by a middleware
// chain, merging hierarchical context along the way.
type Client struct {
	transport    transport.Transport
	chain        middleware.Middleware
	defaults     fabric.Metadata
	ctx          fabric.Metadata
	parent       *Client
	throwOnError bool

	mu      sync.RWMutex
	schemas map[string]schemaPair
}

// Option configures a Client at construction.
type Option func(*Client)

// WithMiddleware sets the middleware chain; declared contracts are
// validated eagerly so a misconfigured chain fails at construction
// rather than on the first call.
func WithMiddleware(mws ...middleware.Declared) Option {
	return func(c *Client) {
		if err := middleware.ValidateContracts(nil, mws); err != nil {
			panic(err)
		}
		c.chain = middleware.Chain(middleware.Middlewares(mws)...)
	}
}

// WithDefaultMetadata sets the lowest-priority tier of context merge —
// the "middleware defaults" tier of spec.md §4.4, rolled up at the
// client level since Go middlewares are plain closures with no
// attached default-context slot of their own.
func WithDefaultMetadata(md fabric.Metadata) Option {
	return func(c *Client) { c.defaults = md }
}

// WithThrowOnError makes Call return a *fabric.CallError instead of a
// nil error alongside a failed payload when the first response item is
// an error.
func WithThrowOnError(v bool) Option {
	return func(c *Client) { c.throwOnError = v }
}

// New builds a root client over t. Root clients have no parent; their
// defaultMetadata is the tier-1 context for themselves and every
// descendant built via WithContext.
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		chain:     middleware.Chain(),
		ctx:       fabric.Metadata{},
		schemas:   make(map[string]schemaPair),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithContext returns a child client that shares this client's
// transport and middleware chain by reference, carrying ctx as its own
// clientContext tier (spec.md §4.4 tier 3).
func (c *Client) WithContext(ctx fabric.Metadata) *Client {
	return &Client{
		transport:    c.transport,
		chain:        c.chain,
		parent:       c,
		ctx:          ctx,
		throwOnError: c.throwOnError,
		schemas:      c.schemas,
	}
}

// Schema registers input/output validators for m, consulted by a
// validation middleware if one is present in the chain.
func (c *Client) Schema(m method.Method, in, out procedure.Validator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas[m.Key()] = schemaPair{In: in, Out: out}
}

// SchemaFor returns the validators registered for m, if any.
func (c *Client) SchemaFor(m method.Method) (in, out procedure.Validator, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, found := c.schemas[m.Key()]
	if !found {
		return nil, nil, false
	}
	return p.In, p.Out, true
}

// CallOptions carries the per-call tiers (4 and 5) of the context
// merge, plus a per-call override of ThrowOnError.
type CallOptions struct {
	Context      fabric.Metadata
	Metadata     fabric.Metadata
	ThrowOnError *bool
	Cancel       context.Context
}

// CallOption mutates CallOptions; construct with With* helpers.
type CallOption func(*CallOptions)

// WithCallContext sets tier 4 (per-call context) of the merge.
func WithCallContext(md fabric.Metadata) CallOption {
	return func(o *CallOptions) { o.Context = md }
}

// WithCallMetadata sets tier 5 (per-call raw metadata, highest
// priority) of the merge.
func WithCallMetadata(md fabric.Metadata) CallOption {
	return func(o *CallOptions) { o.Metadata = md }
}

// WithCallThrowOnError overrides the client's ThrowOnError for this
// call only.
func WithCallThrowOnError(v bool) CallOption {
	return func(o *CallOptions) { o.ThrowOnError = &v }
}

// WithCancel attaches an auxiliary cancellation signal to the
// envelope, independent of ctx — e.g. a WebSocket transport treats both
// ctx.Done and env.Cancel.Done as reasons to abandon a pending call.
func WithCancel(cancel context.Context) CallOption {
	return func(o *CallOptions) { o.Cancel = cancel }
}

func buildOptions(opts []CallOption) *CallOptions {
	o := &CallOptions{}
	for _, apply := range opts {
		apply(o)
	}
	return o
}

// effectiveMetadata implements spec.md §4.4's five-tier merge, lowest
// priority first: root defaultMetadata, every ancestor's clientContext
// root-first, this client's own clientContext, per-call context,
// per-call raw metadata.
func (c *Client) effectiveMetadata(callCtx, callMd fabric.Metadata) fabric.Metadata {
	chain := []*Client{}
	for p := c; p != nil; p = p.parent {
		chain = append(chain, p)
	}
	// chain is self-to-root; reverse to root-first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	merged := fabric.Metadata{}
	merged = merged.Merge(chain[0].defaults) // tier 1
	for _, anc := range chain[:len(chain)-1] {
		merged = merged.Merge(anc.ctx) // tier 2, root-first, excludes self (last element)
	}
	merged = merged.Merge(c.ctx)  // tier 3
	merged = merged.Merge(callCtx) // tier 4
	merged = merged.Merge(callMd)  // tier 5
	return merged
}

// Call builds an envelope for m, runs the composed middleware chain
// over the transport, and returns the payload of the first response
// item. If ThrowOnError is in effect and that item is an error, Call
// returns a *fabric.CallError instead.
func (c *Client) Call(ctx context.Context, m method.Method, payload any, opts ...CallOption) (any, error) {
	o := buildOptions(opts)
	env := &fabric.Envelope{
		ID:       uuid.NewString(),
		Method:   m,
		Payload:  payload,
		Metadata: c.effectiveMetadata(o.Context, o.Metadata),
		Cancel:   o.Cancel,
	}

	runner := c.chain(c.terminal)
	ch, err := runner(ctx, env)
	if err != nil {
		return nil, err
	}

	item, ok := <-ch
	if !ok || item == nil {
		return nil, nil
	}

	throw := c.throwOnError
	if o.ThrowOnError != nil {
		throw = *o.ThrowOnError
	}
	if !item.Status.Success && throw {
		return nil, fabric.NewCallError(item)
	}
	return item.Payload, nil
}

// Stream builds an envelope for m and yields every response item's
// payload over the returned channel, in arrival order. If ThrowOnError
// is in effect, the first error item closes the stream after emitting
// a *fabric.CallError as the final value so the caller can detect it
// with a type switch; otherwise error items are delivered like any
// other payload-bearing item (their Status carries the detail).
func (c *Client) Stream(ctx context.Context, m method.Method, payload any, opts ...CallOption) (<-chan any, error) {
	o := buildOptions(opts)
	env := &fabric.Envelope{
		ID:       uuid.NewString(),
		Method:   m,
		Payload:  payload,
		Metadata: c.effectiveMetadata(o.Context, o.Metadata),
		Cancel:   o.Cancel,
	}

	runner := c.chain(c.terminal)
	ch, err := runner(ctx, env)
	if err != nil {
		return nil, err
	}

	throw := c.throwOnError
	if o.ThrowOnError != nil {
		throw = *o.ThrowOnError
	}

	out := make(chan any)
	go func() {
		defer close(out)
		for item := range ch {
			if item == nil {
				continue
			}
			if !item.Status.Success && throw {
				out <- fabric.NewCallError(item)
				return
			}
			out <- item.Payload
		}
	}()
	return out, nil
}

func (c *Client) terminal(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
	return c.transport.Send(ctx, env)
}

// Close closes the underlying transport. Only the root client that
// constructed the transport should call this; children created via
// WithContext share it by reference.
func (c *Client) Close() error {
	return c.transport.Close()
}
