package serial

import "strconv"

// Encode returns the canonical encoding of n. String and class-name lengths
// are taken from the current byte content.
func Encode(n Node) string {
	return string(n.appendTo(nil))
}

func (Null) appendTo(buf []byte) []byte {
	return append(buf, 'N', ';')
}

func (b Bool) appendTo(buf []byte) []byte {
	if b.Value {
		return append(buf, "b:1;"...)
	}
	return append(buf, "b:0;"...)
}

func (s Scalar) appendTo(buf []byte) []byte {
	buf = append(buf, byte(s.Kind), ':')
	buf = append(buf, s.Raw...)
	return append(buf, ';')
}

func (s String) appendTo(buf []byte) []byte {
	return appendQuoted(append(buf, 's', ':'), s.Value, ';')
}

func (a *Array) appendTo(buf []byte) []byte {
	buf = append(buf, 'a', ':')
	return appendEntries(buf, a.Entries)
}

func (o *Object) appendTo(buf []byte) []byte {
	buf = append(buf, 'O', ':')
	buf = appendQuoted(buf, o.Class, ':')
	return appendEntries(buf, o.Entries)
}

func (k Key) appendTo(buf []byte) []byte {
	if k.Kind == KeyInt {
		buf = append(buf, 'i', ':')
		buf = append(buf, k.Text...)
		return append(buf, ';')
	}
	return appendQuoted(append(buf, 's', ':'), k.Text, ';')
}

// appendQuoted writes <len>:"<s>" followed by term.
func appendQuoted(buf []byte, s string, term byte) []byte {
	buf = strconv.AppendInt(buf, int64(len(s)), 10)
	buf = append(buf, ':', '"')
	buf = append(buf, s...)
	return append(buf, '"', term)
}

func appendEntries(buf []byte, entries []Entry) []byte {
	buf = strconv.AppendInt(buf, int64(len(entries)), 10)
	buf = append(buf, ':', '{')
	for _, e := range entries {
		buf = e.Key.appendTo(buf)
		buf = e.Value.appendTo(buf)
	}
	return append(buf, '}')
}
