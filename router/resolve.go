// Package router resolves a route tree against a procedure registry:
// it flattens the tree to (path, input, procedure) entries, validating
// input against each procedure's schema along the way.
package router

import (
	"github.com/faberic/fabric/procedure"
	"github.com/faberic/fabric/routetree"
)

// ErrorKind distinguishes the two ways resolving a leaf can fail.
type ErrorKind int

const (
	ErrNotFound ErrorKind = iota
	ErrValidation
)

// ResolveError is one failure encountered while resolving a leaf.
type ResolveError struct {
	Kind    ErrorKind
	Path    []string
	Message string
	Fields  []procedure.FieldError
}

// ResolvedCall is one leaf successfully matched to a registered,
// validated procedure call.
type ResolvedCall struct {
	Path  []string
	Input any
	Proc  *procedure.Procedure
	Out   *routetree.OutputConfig
}

// Options controls resolution behavior.
type Options struct {
	ValidateInput   bool // DefaultOptions sets true; a zero Options skips input validation
	ContinueOnError bool
}

// DefaultOptions returns spec.md §4.6's defaults: validate input, don't
// continue past the first validation error.
func DefaultOptions() Options {
	return Options{ValidateInput: true, ContinueOnError: false}
}

// Result is the outcome of resolving a route tree.
type Result struct {
	Resolved []ResolvedCall
	Errors   []ResolveError
}

// Success reports errors.empty, per spec.md §4.6.
func (r *Result) Success() bool {
	return len(r.Errors) == 0
}

// Resolve walks tree depth-first, preserving path, and produces a
// (path, input, procedure) entry for every leaf that resolves
// successfully. not_found errors are cheap and always collected, even
// when ContinueOnError is false; validation_error short-circuits
// further resolution only when ContinueOnError is false.
func Resolve(tree *routetree.Node, reg *procedure.Registry, opts Options) *Result {
	result := &Result{}
	leaves := routetree.Leaves(tree)

	for _, leaf := range leaves {
		input := leaf.Node.Input
		out := leaf.Node.Out

		proc, ok := reg.Get(procedure.Path(leaf.Path))
		if !ok {
			result.Errors = append(result.Errors, ResolveError{
				Kind: ErrNotFound, Path: leaf.Path,
				Message: "no procedure registered at path",
			})
			continue // not_found is cheap, always keep going
		}

		if opts.ValidateInput && proc.InputSchema != nil {
			parsed, fieldErrs, valid := proc.InputSchema.SafeParse(input)
			if !valid {
				result.Errors = append(result.Errors, ResolveError{
					Kind: ErrValidation, Path: leaf.Path,
					Message: "input failed validation",
					Fields:  fieldErrs,
				})
				if !opts.ContinueOnError {
					return result
				}
				continue
			}
			input = parsed
		}

		result.Resolved = append(result.Resolved, ResolvedCall{
			Path: leaf.Path, Input: input, Proc: proc, Out: out,
		})
	}

	return result
}
