// Package procedure implements the typed procedure registry: a
// path-keyed store of Procedures, a tree view for introspection, prefix
// queries, and registration/unregistration events.
package procedure

import "strings"

// Path is an ordered sequence of path segments addressing a procedure,
// e.g. []string{"users", "get"}.
type Path []string

// Key returns the joined-key form used for map storage and lookup.
func (p Path) Key() string {
	return strings.Join(p, ".")
}

// Equal reports whether two paths have identical segment sequences.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// ParsePath splits a dotted key back into a Path.
func ParsePath(key string) Path {
	if key == "" {
		return Path{}
	}
	return Path(strings.Split(key, "."))
}
