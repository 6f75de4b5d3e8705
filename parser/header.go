package parser

import (
	"strings"

	"github.com/arlonet/httpd/list"
)

// Field is one parsed header field-line. Name is canonicalized
// (Content-Type, not content-type); Value has surrounding OWS trimmed.
// Duplicate header names are kept as separate Field entries in insertion
// order — never merged — per §4.G.
type Field struct {
	list.Elem[Field]
	Name  string
	Value string
}

// FieldList is the intrusive, insertion-ordered list of header fields
// belonging to one Request (or one set of trailers). It also keeps a
// side index for O(1) case-insensitive lookups; the index never reorders
// or merges anything, it just accelerates Get/Values.
type FieldList struct {
	fields list.List[Field]
	index  map[string][]*Field
}

// Add appends a new field, preserving duplicates. name is canonicalized
// before storage.
func (fl *FieldList) Add(name, value string) *Field {
	if fl.index == nil {
		fl.index = make(map[string][]*Field)
	}
	name = CanonicalHeaderName(name)
	f := &Field{Name: name, Value: value}
	list.PushBack[Field](&fl.fields, f)
	fl.index[name] = append(fl.index[name], f)
	return f
}

// Get returns the first value stored under name, and whether any value
// was found at all.
func (fl *FieldList) Get(name string) (string, bool) {
	vs := fl.index[CanonicalHeaderName(name)]
	if len(vs) == 0 {
		return "", false
	}
	return vs[0].Value, true
}

// Values returns every value stored under name, in insertion order. The
// returned slice must not be mutated by the caller.
func (fl *FieldList) Values(name string) []string {
	fs := fl.index[CanonicalHeaderName(name)]
	if len(fs) == 0 {
		return nil
	}
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Value
	}
	return out
}

// Count returns the total number of fields (counting duplicates
// separately), satisfying the header-count info-query tag from §6.
func (fl *FieldList) Count() int { return fl.fields.Len() }

// Del removes every field stored under name.
func (fl *FieldList) Del(name string) {
	name = CanonicalHeaderName(name)
	for _, f := range fl.index[name] {
		list.Remove[Field](&fl.fields, f)
	}
	delete(fl.index, name)
}

// Has reports whether name has at least one value.
func (fl *FieldList) Has(name string) bool {
	return len(fl.index[CanonicalHeaderName(name)]) > 0
}

// Each calls fn for every field in insertion order, across all names —
// the exact order fields arrived on the wire, needed to faithfully
// reserialize the header block for the introspection round-trip property
// in §8.
func (fl *FieldList) Each(fn func(name, value string)) {
	for e := fl.fields.Front(); e != nil; e = list.Next[Field](e) {
		fn(e.Name, e.Value)
	}
}

// ContainsToken reports whether any value stored under name contains
// token as a comma-separated element, ASCII case-insensitively. Used for
// Connection: close/keep-alive and Transfer-Encoding: chunked detection.
func (fl *FieldList) ContainsToken(name, token string) bool {
	for _, v := range fl.Values(name) {
		if valueContainsToken(v, token) {
			return true
		}
	}
	return false
}

func valueContainsToken(v, token string) bool {
	for _, part := range strings.Split(v, ",") {
		if tokenEqualFold(trimOWS(part), token) {
			return true
		}
	}
	return false
}

func tokenEqualFold(a, b string) bool {
	return strings.EqualFold(a, b)
}

func trimOWS(s string) string {
	return strings.Trim(s, " \t")
}

// CanonicalHeaderName canonicalizes a header field name to Title-Case
// with hyphen-separated words (Content-Type, not content-type, matching
// RFC 9110 §5.1's recommendation for case-preserving but
// case-insensitive-comparing transports). Bytes that aren't valid token
// characters are left as-is: the caller (header-line parser) is
// responsible for rejecting those before they ever reach here.
func CanonicalHeaderName(name string) string {
	b := []byte(name)
	upper := true
	for i, c := range b {
		switch {
		case upper && 'a' <= c && c <= 'z':
			b[i] = c - ('a' - 'A')
		case !upper && 'A' <= c && c <= 'Z':
			b[i] = c + ('a' - 'A')
		}
		upper = c == '-'
	}
	return string(b)
}
