package serial

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// maxDepth bounds container nesting so hostile input cannot exhaust the stack.
const maxDepth = 512

// DecodeError reports malformed input and the byte offset where decoding
// stopped.
type DecodeError struct {
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("serial: %s at offset %d", e.Msg, e.Offset)
}

// Decode parses one complete encoded value. Trailing bytes after the value
// are an error, so a successful Decode always satisfies
// Encode(Decode(s)) == s for inputs without duplicate keys.
func Decode(s string) (Node, error) {
	d := decoder{data: s}
	n, err := d.value(0)
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, d.errf("trailing data (%d bytes)", len(d.data)-d.pos)
	}
	return n, nil
}

// LooksSerialized reports whether s starts with a complete type header,
// such as s:3: or i:-5; It is a prefix check, not a validation.
func LooksSerialized(s string) bool {
	if s == "N;" {
		return true
	}
	if len(s) < 4 || s[1] != ':' {
		return false
	}
	rest := s[2:]
	switch s[0] {
	case 'a', 'O', 's':
		return digitsThen(rest, ":")
	case 'b':
		return digitsThen(rest, ";")
	case 'i', 'r':
		return digitsThen(trimSign(rest), ";")
	case 'd':
		rest = trimSign(rest)
		if strings.HasPrefix(rest, "INF;") || strings.HasPrefix(rest, "NAN;") {
			return true
		}
		return digitsThen(rest, ".;Ee")
	}
	return false
}

// digitsThen reports whether s is one or more digits followed by a byte
// from next.
func digitsThen(s, next string) bool {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n > 0 && n < len(s) && strings.IndexByte(next, s[n]) >= 0
}

func trimSign(s string) string {
	if s != "" && (s[0] == '-' || s[0] == '+') {
		return s[1:]
	}
	return s
}

type decoder struct {
	data string
	pos  int
}

func (d *decoder) errf(format string, args ...any) error {
	return &DecodeError{Offset: d.pos, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) expect(c byte) error {
	if d.pos >= len(d.data) {
		return d.errf("unexpected end of input, want %q", c)
	}
	if d.data[d.pos] != c {
		return d.errf("found %q, want %q", d.data[d.pos], c)
	}
	d.pos++
	return nil
}

// until returns the text up to the next term byte and consumes the term.
func (d *decoder) until(term byte) (string, error) {
	start := d.pos
	for i := start; i < len(d.data); i++ {
		if d.data[i] == term {
			d.pos = i + 1
			return d.data[start:i], nil
		}
	}
	return "", d.errf("unterminated value, want %q", term)
}

// length reads a canonical non-negative decimal length followed by ':'.
func (d *decoder) length() (int, error) {
	start := d.pos
	text, err := d.until(':')
	if err != nil {
		return 0, err
	}
	if text == "" || !isDigits(text) {
		d.pos = start
		return 0, d.errf("invalid length %q", text)
	}
	// Encode writes lengths without leading zeros; accepting them would
	// break the round trip.
	if len(text) > 1 && text[0] == '0' {
		d.pos = start
		return 0, d.errf("non-canonical length %q", text)
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		d.pos = start
		return 0, d.errf("invalid length %q", text)
	}
	return n, nil
}

// quoted reads "<n bytes>" where n was already decoded.
func (d *decoder) quoted(n int) (string, error) {
	if err := d.expect('"'); err != nil {
		return "", err
	}
	if n > len(d.data)-d.pos {
		return "", d.errf("declared length %d exceeds remaining %d bytes", n, len(d.data)-d.pos)
	}
	s := d.data[d.pos : d.pos+n]
	d.pos += n
	if err := d.expect('"'); err != nil {
		return "", err
	}
	return s, nil
}

func (d *decoder) value(depth int) (Node, error) {
	if depth > maxDepth {
		return nil, d.errf("nesting deeper than %d", maxDepth)
	}
	if d.pos >= len(d.data) {
		return nil, d.errf("unexpected end of input")
	}
	tag := d.data[d.pos]
	d.pos++

	if tag == 'N' {
		if err := d.expect(';'); err != nil {
			return nil, err
		}
		return Null{}, nil
	}
	if err := d.expect(':'); err != nil {
		return nil, err
	}

	switch tag {
	case 'b':
		text, err := d.until(';')
		if err != nil {
			return nil, err
		}
		switch text {
		case "0":
			return Bool{Value: false}, nil
		case "1":
			return Bool{Value: true}, nil
		}
		return nil, d.errf("invalid boolean %q", text)

	case 'i', 'd', 'r':
		start := d.pos
		text, err := d.until(';')
		if err != nil {
			return nil, err
		}
		kind := ScalarKind(tag)
		if !ValidScalar(kind, text) {
			d.pos = start
			return nil, d.errf("invalid %s literal %q", kind, text)
		}
		return Scalar{Kind: kind, Raw: text}, nil

	case 's':
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		s, err := d.quoted(n)
		if err != nil {
			return nil, err
		}
		if err := d.expect(';'); err != nil {
			return nil, err
		}
		return String{Value: s}, nil

	case 'a':
		entries, err := d.entries(depth)
		if err != nil {
			return nil, err
		}
		return &Array{Entries: entries}, nil

	case 'O':
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		class, err := d.quoted(n)
		if err != nil {
			return nil, err
		}
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		entries, err := d.entries(depth)
		if err != nil {
			return nil, err
		}
		return &Object{Class: class, Entries: entries}, nil
	}

	d.pos -= 2
	return nil, d.errf("unknown type tag %q", tag)
}

// entries reads <count>:{<key><value>...}.
func (d *decoder) entries(depth int) ([]Entry, error) {
	count, err := d.length()
	if err != nil {
		return nil, err
	}
	if err := d.expect('{'); err != nil {
		return nil, err
	}
	// Each pair takes at least 8 bytes (i:0;N;), which bounds the allocation.
	capacity := count
	if limit := (len(d.data) - d.pos) / 8; capacity > limit {
		capacity = limit
	}
	set := newEntrySet(capacity)
	for i := 0; i < count; i++ {
		k, err := d.key(depth)
		if err != nil {
			return nil, err
		}
		v, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		set.set(k, v)
	}
	if err := d.expect('}'); err != nil {
		return nil, err
	}
	return set.entries, nil
}

func (d *decoder) key(depth int) (Key, error) {
	start := d.pos
	n, err := d.value(depth + 1)
	if err != nil {
		return Key{}, err
	}
	switch v := n.(type) {
	case String:
		return Key{Kind: KeyString, Text: v.Value}, nil
	case Scalar:
		if v.Kind == KindInt {
			return Key{Kind: KeyInt, Text: v.Raw}, nil
		}
	}
	d.pos = start
	return Key{}, d.errf("invalid key type")
}

// ValidScalar reports whether text is a well-formed literal for kind.
func ValidScalar(kind ScalarKind, text string) bool {
	switch kind {
	case KindInt, KindReference:
		t := text
		if len(t) > 0 && (t[0] == '-' || t[0] == '+') {
			t = t[1:]
		}
		return t != "" && isDigits(t)
	case KindFloat:
		switch text {
		case "INF", "-INF", "NAN":
			return true
		}
		if text == "" || !isFloatChars(text) {
			return false
		}
		_, err := strconv.ParseFloat(text, 64)
		if err == nil {
			return true
		}
		// Out-of-range values are still well formed.
		return errors.Is(err, strconv.ErrRange)
	}
	return false
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isFloatChars rejects forms strconv accepts but the format never produces
// (hex floats, underscores, "Inf").
func isFloatChars(s string) bool {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c == '.', c == '-', c == '+', c == 'e', c == 'E':
		default:
			return false
		}
	}
	return true
}
