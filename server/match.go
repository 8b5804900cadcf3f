package server

import (
	"regexp"

	"github.com/faberic/fabric/method"
)

// Pattern matches a single method segment, either a literal string or
// a compiled regular expression — the "literal + wildcard segments"
// matcher spec.md §4.8 calls for.
type Pattern struct {
	literal string
	re      *regexp.Regexp
	any     bool
}

// Literal matches s exactly.
func Literal(s string) Pattern { return Pattern{literal: s} }

// Regex matches any segment satisfying the given expression (anchored
// automatically so partial matches don't leak through).
func Regex(expr string) Pattern {
	return Pattern{re: regexp.MustCompile("^(?:" + expr + ")$")}
}

// Any matches every value, including the empty string — used for the
// optional version segment when a matcher doesn't care about it.
func Any() Pattern { return Pattern{any: true} }

func (p Pattern) match(s string) bool {
	if p.any {
		return true
	}
	if p.re != nil {
		return p.re.MatchString(s)
	}
	return p.literal == s
}

// Matcher selects methods by service/operation/version pattern. A zero
// Version matches any version, including an absent one.
type Matcher struct {
	Service   Pattern
	Operation Pattern
	Version   Pattern
}

func (m Matcher) match(method method.Method) bool {
	version := m.Version
	if version == (Pattern{}) {
		version = Any()
	}
	return m.Service.match(method.Service) && m.Operation.match(method.Operation) && version.match(method.Version)
}
