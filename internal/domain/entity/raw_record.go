package entity

import "strings"

// RawRecord is a loosely-typed row as delivered by a source collaborator
// (decoded JSON object or a database row flattened into a map).
type RawRecord map[string]interface{}

// Lookup returns the first non-nil value stored under any of the given keys.
// Blank strings count as absent.
func (r RawRecord) Lookup(keys ...string) (interface{}, bool) {
	for _, key := range keys {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// String returns the trimmed string stored under the first present key
func (r RawRecord) String(keys ...string) string {
	v, ok := r.Lookup(keys...)
	if !ok {
		return ""
	}
	s, isString := v.(string)
	if !isString {
		return ""
	}
	return strings.TrimSpace(s)
}
