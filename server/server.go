// Package server implements the dispatch core shared by every fabric
// transport listener: pattern-matched handler registry (literal +
// regex segments), a middleware pipeline mirroring the client's, and a
// lifecycle that fans start/stop out across multiple transports.
//
// It generalizes the teacher's server.Server, which matched
// "Service.Method" strings against a reflection-built serviceMap and
// fanned a single TCP listener's Accept loop into per-request
// goroutines. Matching here is pattern-based and multi-transport; the
// per-request concurrency and graceful-shutdown shape (a WaitGroup
// tracking in-flight requests, a shutdown flag, a bounded Wait) is kept
// nearly verbatim from the teacher's handleConn/Shutdown.
package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/method"
	"github.com/faberic/fabric/middleware"
	"github.com/faberic/fabric/procedure"
	"github.com/faberic/fabric/transport"
)

// Handler is the business logic behind a registered pattern: given the
// envelope, produce a payload or an error. Handler is the terminal of
// the server-side middleware chain, mirroring client.Client.terminal.
type Handler func(ctx context.Context, env *fabric.Envelope) (any, error)

// Hooks lets a caller observe request/response pairs, e.g. for logging —
// spec.md §4.8 step 1/6 ("log request/response if hook").
type Hooks struct {
	OnRequest  func(env *fabric.Envelope)
	OnResponse func(env *fabric.Envelope, item *fabric.ResponseItem)
}

type entry struct {
	matcher Matcher
	handler Handler
}

// Server matches incoming envelopes against registered patterns,
// executes the matched handler through a middleware chain, and fans
// Start/Stop out across every attached transport listener.
type Server struct {
	mu       sync.RWMutex
	entries  []entry
	registry *procedure.Registry
	chain    middleware.Middleware
	hooks    Hooks

	listeners []transport.Listener
	wg        sync.WaitGroup
	shutdown  atomic.Bool
}

// Option configures a Server at construction.
type Option func(*Server)

// WithRegistry attaches a procedure registry; Register(proc) and
// recursive in-registry calls resolve against it. Defaults to
// procedure.Default().
func WithRegistry(reg *procedure.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithMiddleware sets the server-side middleware chain, validating
// declared contracts eagerly.
func WithMiddleware(mws ...middleware.Declared) Option {
	return func(s *Server) {
		if err := middleware.ValidateContracts(nil, mws); err != nil {
			panic(err)
		}
		s.chain = middleware.Chain(middleware.Middlewares(mws)...)
	}
}

// WithHooks installs request/response observation hooks.
func WithHooks(h Hooks) Option {
	return func(s *Server) { s.hooks = h }
}

// New builds a Server with no handlers and no transports attached yet.
func New(opts ...Option) *Server {
	s := &Server{
		registry: procedure.Default(),
		chain:    middleware.Chain(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle registers a handler for methods matching m. Entries are
// matched first-match-wins in registration order: register
// more-specific matchers before more general ones.
func (s *Server) Handle(m Matcher, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{matcher: m, handler: h})
}

// Register wraps proc into a Handler (input/output schema validation
// plus recursive in-registry calls via proc.Handler's CallContext) and
// registers it against an exact-match Matcher for its path.
func (s *Server) Register(proc *procedure.Procedure) error {
	if err := s.registry.Register(proc, procedure.RegisterOptions{}); err != nil {
		return err
	}
	seg := proc.Path
	m := Matcher{Service: Literal(pathService(seg)), Operation: Literal(pathOperation(seg))}
	s.Handle(m, s.wrapProcedure(proc))
	return nil
}

func pathService(p procedure.Path) string {
	if len(p) > 0 {
		return p[0]
	}
	return ""
}

func pathOperation(p procedure.Path) string {
	if len(p) > 1 {
		return p[len(p)-1]
	}
	return ""
}

// Attach adds a transport listener to the set Start/Stop fan out to.
func (s *Server) Attach(l transport.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Server) match(m method.Method) (Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.matcher.match(m) {
			return e.handler, true
		}
	}
	return nil, false
}

// ServeEnvelope runs the full request lifecycle for a single envelope.
// It has the transport.HandleFunc shape, which is what every attached
// Listener is given; it's exported so an in-process transport (or a
// test) can drive the server directly without a network hop.
func (s *Server) ServeEnvelope(ctx context.Context, env *fabric.Envelope) *fabric.ResponseItem {
	return s.handle(ctx, env)
}

// handle implements spec.md §4.8's request lifecycle.
func (s *Server) handle(ctx context.Context, env *fabric.Envelope) *fabric.ResponseItem {
	s.wg.Add(1)
	defer s.wg.Done()

	if s.hooks.OnRequest != nil {
		s.hooks.OnRequest(env)
	}

	h, ok := s.match(env.Method)
	if !ok {
		item := &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeNotFound, fmt.Sprintf("no handler for %s", env.Method.String()), false)}
		if s.hooks.OnResponse != nil {
			s.hooks.OnResponse(env, item)
		}
		return item
	}

	base := func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
		ch := make(chan *fabric.ResponseItem, 1)
		payload, err := runHandler(ctx, h, env)
		if err != nil {
			ch <- &fabric.ResponseItem{ID: env.ID, Status: toStatus(err)}
		} else {
			ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Ok(nil), Payload: payload}
		}
		close(ch)
		return ch, nil
	}

	runner := s.chain(base)
	respCh, err := runner(ctx, env)
	var item *fabric.ResponseItem
	if err != nil {
		item = &fabric.ResponseItem{ID: env.ID, Status: fabric.Err(fabric.CodeExecutionError, err.Error(), false)}
	} else {
		item = <-respCh
	}

	if s.hooks.OnResponse != nil {
		s.hooks.OnResponse(env, item)
	}
	return item
}

// runHandler recovers a panicking handler into a HANDLER_ERROR, per
// spec.md §4.8 step 7 ("any exception during steps 3-5 converts to an
// error ResponseItem").
func runHandler(ctx context.Context, h Handler, env *fabric.Envelope) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, env)
}

// startupGrace is how long Start waits for an early synchronous
// failure (e.g. a bind error) before assuming a listener came up
// cleanly. Listen itself blocks for the life of the listener, so this
// is the only way to tell "failed immediately" from "serving".
const startupGrace = 50 * time.Millisecond

// Start fans out to every attached listener concurrently. Each
// listener's Listen blocks for its whole lifetime, so Start can only
// observe failures that happen within startupGrace of calling Listen
// (e.g. a bind error); if one occurs, Start returns it. Listeners that
// already started are left running — the caller decides whether to
// Stop them. Listeners that are still healthy after the grace window
// are assumed started; their eventual terminal errors are not
// observed by Start.
func (s *Server) Start(ctx context.Context) error {
	s.mu.RLock()
	listeners := append([]transport.Listener(nil), s.listeners...)
	s.mu.RUnlock()

	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		go func(l transport.Listener) {
			errCh <- l.Listen(ctx, s.handle)
		}(l)
	}

	deadline := time.After(startupGrace)
	received := 0
	for received < len(listeners) {
		select {
		case err := <-errCh:
			received++
			if err != nil {
				return err
			}
		case <-deadline:
			return nil
		}
	}
	return nil
}

// Stop closes every attached listener and waits up to timeout for
// in-flight requests to finish. Idempotent.
func (s *Server) Stop(timeout time.Duration) error {
	s.shutdown.Store(true)

	s.mu.RLock()
	listeners := append([]transport.Listener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		l.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("server: timeout waiting for in-flight requests")
	}
}
