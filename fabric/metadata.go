package fabric

// Metadata is an unordered string-keyed bag used for headers, auth
// tokens, tracing fields, and any other cross-cutting context a
// middleware wants to thread alongside the payload.
type Metadata map[string]any

// Clone returns a shallow copy of m. A nil receiver clones to an empty,
// non-nil map so callers can always write into the result.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge deep-merges override on top of m and returns a new Metadata; m
// and override are left untouched. See MergeMetadata for the merge
// rules (deep merge for nested maps, replace for everything else, nil
// values on the override side are skipped).
func (m Metadata) Merge(override Metadata) Metadata {
	return MergeMetadata(m, override)
}

// MergeMetadata deep-merges override on top of base and returns a new
// map. Nested map[string]any values are merged recursively; any other
// value type (slices, primitives, structs) is replaced wholesale by
// override's value. A key present in override with a nil value is
// treated as "unset" and does not override base — explicit clearing of
// a key is the override value's own convention (e.g. an empty string or
// a sentinel), not a capability of the merge itself.
func MergeMetadata(base, override Metadata) Metadata {
	out := base.Clone()
	for k, v := range override {
		if v == nil {
			continue
		}
		if ov, ok := v.(map[string]any); ok {
			if bv, ok := out[k].(map[string]any); ok {
				out[k] = map[string]any(MergeMetadata(Metadata(bv), Metadata(ov)))
				continue
			}
			out[k] = map[string]any(MergeMetadata(nil, Metadata(ov)))
			continue
		}
		out[k] = v
	}
	return out
}
