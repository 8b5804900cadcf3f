package routetree

import "sort"

// LeafResult pairs a leaf's path with the CallResult computed for it.
type LeafResult struct {
	Path   []string
	Result CallResult
}

// BuildResponseTree walks each result's path and assigns its CallResult
// at the corresponding leaf position, producing a tree isomorphic to
// the original request tree's shape (P4: buildResponse(flatten(r).map(...)).shape == r.shape).
// An empty input produces an empty (childless) interior node.
func BuildResponseTree(results []LeafResult) *Node {
	root := NewInterior(nil)
	for _, lr := range results {
		insert(root, lr.Path, lr.Result)
	}
	return root
}

func insert(root *Node, path []string, result CallResult) {
	node := root
	for i, seg := range path {
		last := i == len(path)-1
		if last {
			node.Children[seg] = &Node{IsLeaf: true, Input: result}
			return
		}
		child, ok := node.Children[seg]
		if !ok || child.IsLeaf {
			child = NewInterior(nil)
			node.Children[seg] = child
		}
		node = child
	}
}

// Leaves walks tree and returns every leaf in depth-first, path-preserving
// order. Used both by the resolver (to flatten a request tree) and by
// tests asserting P4.
func Leaves(tree *Node) []LeafEntry {
	var out []LeafEntry
	var walk func(node *Node, path []string)
	walk = func(node *Node, path []string) {
		if node == nil {
			return
		}
		if node.IsLeaf {
			cp := make([]string, len(path))
			copy(cp, path)
			out = append(out, LeafEntry{Path: cp, Node: node})
			return
		}
		segs := make([]string, 0, len(node.Children))
		for seg := range node.Children {
			segs = append(segs, seg)
		}
		sort.Strings(segs)
		for _, seg := range segs {
			walk(node.Children[seg], append(append([]string{}, path...), seg))
		}
	}
	walk(tree, nil)
	return out
}

// LeafEntry is one leaf discovered by Leaves, with its full path.
type LeafEntry struct {
	Path []string
	Node *Node
}
