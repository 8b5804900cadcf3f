// Package routetree models the recursive request/response shape
// spec.md §3 calls the "route tree": a nested request whose leaves map
// to registered procedure paths, and the isomorphic response tree built
// by the batch executor.
package routetree

// OutputConfig is attached to a leaf when it is written as the
// {in, out} form rather than a bare payload; it's opaque to the
// resolver and executor, carried through to whatever consumes the
// result tree (e.g. a transport-specific response shaping step).
type OutputConfig struct {
	Fields []string
	Raw    map[string]any
}

// Node is one node of a request route tree. Exactly one of Children or
// (IsLeaf==true) is meaningful at a time: a tree position is either an
// interior node (a namespace) or a leaf (where the tree meets the
// registry). Go has no sum types, so discrimination is by the IsLeaf
// flag, the same way the teacher's protocol.Header discriminates frame
// kinds by a byte tag rather than a variant type.
type Node struct {
	IsLeaf   bool
	Children map[string]*Node // meaningful when !IsLeaf

	// Leaf fields, meaningful when IsLeaf.
	Input  any
	Out    *OutputConfig
}

// NewInterior builds an interior (namespace) node.
func NewInterior(children map[string]*Node) *Node {
	if children == nil {
		children = make(map[string]*Node)
	}
	return &Node{Children: children}
}

// NewLeaf builds a leaf node from a bare payload (no {in,out} wrapping).
func NewLeaf(input any) *Node {
	return &Node{IsLeaf: true, Input: input}
}

// NewLeafWithOutput builds a leaf node carrying an output configuration
// alongside its input payload — the {in, out} leaf shape.
func NewLeafWithOutput(input any, out *OutputConfig) *Node {
	return &Node{IsLeaf: true, Input: input, Out: out}
}

// CallResult is what a leaf is replaced by in the response tree:
// either Success with Data, or Failure with the error fields spec.md §3
// assigns to ProcedureCallResult.
type CallResult struct {
	Success   bool
	Data      any
	Code      any
	Message   string
	Retryable bool
	Path      []string
}
