package serial

// LeafFunc maps the text of a leaf or string key to its replacement.
type LeafFunc func(string) string

// Transform returns a copy of n with fn applied to every string value,
// numeric scalar and string key, and the number of leaves and keys whose
// text changed. n itself is never modified.
//
// A scalar whose new text is not a valid literal of its kind keeps its
// original text and is not counted. A renamed key that collides with another
// key overwrites it, as assignment into an associative array would.
func Transform(n Node, fn LeafFunc) (Node, int) {
	switch v := n.(type) {
	case String:
		out := fn(v.Value)
		if out == v.Value {
			return v, 0
		}
		return String{Value: out}, 1
	case Scalar:
		out := fn(v.Raw)
		if out == v.Raw || !ValidScalar(v.Kind, out) {
			return v, 0
		}
		return Scalar{Kind: v.Kind, Raw: out}, 1
	case *Array:
		entries, count := transformEntries(v.Entries, fn)
		return &Array{Entries: entries}, count
	case *Object:
		entries, count := transformEntries(v.Entries, fn)
		return &Object{Class: v.Class, Entries: entries}, count
	default:
		// Null and Bool carry no text.
		return n, 0
	}
}

func transformEntries(entries []Entry, fn LeafFunc) ([]Entry, int) {
	var count int
	set := newEntrySet(len(entries))
	for _, e := range entries {
		k := e.Key
		if k.Kind == KeyString {
			if out := fn(k.Text); out != k.Text {
				k = Key{Kind: KeyString, Text: out}
				count++
			}
		}
		v, c := Transform(e.Value, fn)
		count += c
		set.set(k, v)
	}
	return set.entries, count
}

// Rewrite decodes s, applies fn with Transform and re-encodes the result.
// It returns a *DecodeError when s is not a complete encoded value.
func Rewrite(s string, fn LeafFunc) (string, int, error) {
	n, err := Decode(s)
	if err != nil {
		return s, 0, err
	}
	out, count := Transform(n, fn)
	if count == 0 {
		return s, 0, nil
	}
	return Encode(out), count, nil
}
