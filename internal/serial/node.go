// Package serial decodes, mutates and re-encodes values stored in the
// length-prefixed serialization format used by PHP applications
// (a:2:{s:3:"foo";i:1;...}).
//
// Decoded values form a closed set of node types. Every node encodes from its
// current content, so string lengths are always recomputed and a mutated
// tree re-encodes to a structurally valid value.
package serial

import "strconv"

// Node is one decoded value. The set of implementations is closed:
// Null, Bool, Scalar, String, Array and Object.
type Node interface {
	appendTo(buf []byte) []byte
	isNode()
}

// Null is the N; value.
type Null struct{}

// Bool is the b:0; / b:1; value.
type Bool struct {
	Value bool
}

// ScalarKind identifies a non-string scalar.
type ScalarKind byte

const (
	KindInt       ScalarKind = 'i'
	KindFloat     ScalarKind = 'd'
	KindReference ScalarKind = 'r'
)

func (k ScalarKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindReference:
		return "reference"
	default:
		return "unknown"
	}
}

// Scalar is an int, float or reference value. Raw holds the literal text as
// it appeared in the input so floats re-encode without precision loss.
type Scalar struct {
	Kind ScalarKind
	Raw  string
}

// String is an s:<len>:"..."; value. Value is a byte sequence; the length
// prefix is computed on encode.
type String struct {
	Value string
}

// KeyKind distinguishes string keys from integer keys.
type KeyKind byte

const (
	KeyString KeyKind = 's'
	KeyInt    KeyKind = 'i'
)

// Key is an array or object key.
type Key struct {
	Kind KeyKind
	Text string
}

// StringKey returns a string key.
func StringKey(s string) Key { return Key{Kind: KeyString, Text: s} }

// IntKey returns an integer key.
func IntKey(n int64) Key { return Key{Kind: KeyInt, Text: strconv.FormatInt(n, 10)} }

// Entry is one key/value pair of a container.
type Entry struct {
	Key   Key
	Value Node
}

// Array is an a:<n>:{...} value. Entries keep insertion order.
type Array struct {
	Entries []Entry
}

// Object is an O:<len>:"<class>":<n>:{...} value.
type Object struct {
	Class   string
	Entries []Entry
}

func (Null) isNode()    {}
func (Bool) isNode()    {}
func (Scalar) isNode()  {}
func (String) isNode()  {}
func (*Array) isNode()  {}
func (*Object) isNode() {}

// Content returns the scalar text of a node as used when the node acts as a
// key: the string bytes, the raw numeric text, or "" for everything else.
func Content(n Node) string {
	switch v := n.(type) {
	case String:
		return v.Value
	case Scalar:
		return v.Raw
	default:
		return ""
	}
}

// identity maps a key to its associative-array slot. Canonical decimal
// string keys share a slot with the equal integer key.
func (k Key) identity() string {
	if k.Kind == KeyInt {
		return "i" + k.Text
	}
	if isCanonicalInt(k.Text) {
		return "i" + k.Text
	}
	return "s" + k.Text
}

func isCanonicalInt(s string) bool {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return false
	}
	return strconv.FormatInt(n, 10) == s
}

// entrySet builds an entry list with last-write-wins semantics for
// duplicate keys: a repeated key overwrites the value in the slot of its
// first occurrence.
type entrySet struct {
	entries []Entry
	index   map[string]int
}

func newEntrySet(capacity int) *entrySet {
	return &entrySet{
		entries: make([]Entry, 0, capacity),
		index:   make(map[string]int, capacity),
	}
}

func (s *entrySet) set(k Key, v Node) {
	id := k.identity()
	if i, ok := s.index[id]; ok {
		s.entries[i].Value = v
		return
	}
	s.index[id] = len(s.entries)
	s.entries = append(s.entries, Entry{Key: k, Value: v})
}
