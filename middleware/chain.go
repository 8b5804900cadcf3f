// Package middleware implements the onion-model composition engine
// shared by the client and server call paths.
//
// Onion model execution order:
//
//	Chain(A, B, C)(terminal)  →  A(B(C(terminal)))
//
//	Request:   A.before → B.before → C.before → terminal
//	Response:  terminal → C.after → B.after → A.after
//
// Each middleware can:
//   - Do pre-processing before calling next.
//   - Call next(ctx, env) to pass the call further in (zero or more times —
//     zero to short-circuit, more than once to retry).
//   - Do post-processing on the channel next returns.
//   - Short-circuit by never calling next (cache hit, circuit open, rate
//     limit reject).
package middleware

import (
	"context"

	"github.com/faberic/fabric"
)

// Runner is the composed unit of work: given a context and an envelope,
// it produces the (possibly lazy, possibly multi-item) response
// sequence. The terminal Runner in a chain is typically
// "ctx -> transport.Send(ctx, env)".
type Runner func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error)

// Middleware wraps a Runner, producing a new Runner that layers
// behavior around it.
type Middleware func(next Runner) Runner

// Chain composes middlewares into a single Middleware. Composition
// builds right-to-left so that the first middleware in the argument
// list ends up outermost — it sees the request first and the response
// last, matching spec.md's associativity requirement: composing [A,B]
// then prepending C produces the same runner as composing [C,A,B].
func Chain(mws ...Middleware) Middleware {
	return func(terminal Runner) Runner {
		next := terminal
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Declared pairs a Middleware with the informative provides/requires
// contract from spec.md §4.3: Provides lists the context fields this
// middleware adds, Requires lists the fields it needs present upstream.
// Go has no static way to enforce this across arbitrary middleware
// funcs, so it's opt-in — construct a Declared wherever the contract is
// worth documenting and checking, and use plain Middleware values
// everywhere else.
type Declared struct {
	Middleware
	Provides []string
	Requires []string
}

// ContractError reports a middleware whose declared requirement is not
// satisfied by any upstream middleware's provides (or the chain's
// initial context).
type ContractError struct {
	Field string
}

func (e *ContractError) Error() string {
	return "middleware: unmet context requirement: " + e.Field
}

// ValidateContracts checks that every Declared middleware's Requires is
// covered by the union of upstream Provides plus initialContext, in
// chain order (mws[0] is outermost / first to execute). It returns an
// error naming the first unmet requirement. Plain (non-Declared)
// entries are treated as contributing nothing and requiring nothing.
func ValidateContracts(initialContext []string, mws []Declared) error {
	available := make(map[string]bool, len(initialContext))
	for _, f := range initialContext {
		available[f] = true
	}
	for _, d := range mws {
		for _, r := range d.Requires {
			if !available[r] {
				return &ContractError{Field: r}
			}
		}
		for _, p := range d.Provides {
			available[p] = true
		}
	}
	return nil
}

// Middlewares extracts the plain Middleware values from a Declared
// slice, in order, for passing to Chain.
func Middlewares(mws []Declared) []Middleware {
	out := make([]Middleware, len(mws))
	for i, d := range mws {
		out[i] = d.Middleware
	}
	return out
}
