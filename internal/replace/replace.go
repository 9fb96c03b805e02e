// Package replace implements the text substitution applied to column values
// and to the leaves of decoded serialized structures.
package replace

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmptySearch is returned when no usable search text is configured.
var ErrEmptySearch = errors.New("search string is empty")

// ErrMultiplePatterns is returned when pattern mode gets more than one
// search or replacement.
var ErrMultiplePatterns = errors.New("pattern mode takes exactly one search and at most one replacement")

// Replacer rewrites a subject and reports how many matches it replaced.
type Replacer interface {
	Replace(subject string) (string, int)
}

// Func adapts a Replacer to a plain string mapping, dropping the count.
func Func(r Replacer) func(string) string {
	return func(s string) string {
		out, _ := r.Replace(s)
		return out
	}
}

// Literal replaces fixed strings. Pairs are applied in order, each over the
// output of the previous one.
type Literal struct {
	searches     []string
	replacements []string
}

// NewLiteral builds a literal replacer. A replacement list shorter than the
// search list is padded with empty strings. Empty search strings are
// ignored; at least one non-empty search is required.
func NewLiteral(searches, replacements []string) (*Literal, error) {
	l := &Literal{}
	for i, s := range searches {
		if s == "" {
			continue
		}
		var r string
		if i < len(replacements) {
			r = replacements[i]
		}
		l.searches = append(l.searches, s)
		l.replacements = append(l.replacements, r)
	}
	if len(l.searches) == 0 {
		return nil, ErrEmptySearch
	}
	return l, nil
}

// Replace implements Replacer. For valid UTF-8 search text, matches always
// start and end on character boundaries of valid UTF-8 subjects, so
// multi-byte characters are never split.
func (l *Literal) Replace(subject string) (string, int) {
	var total int
	for i, search := range l.searches {
		n := strings.Count(subject, search)
		if n == 0 {
			continue
		}
		total += n
		subject = strings.ReplaceAll(subject, search, l.replacements[i])
	}
	return subject, total
}

// Pattern replaces matches of a regular expression. The replacement may
// reference groups as $1, ${1} or \1.
type Pattern struct {
	re          *regexp.Regexp
	replacement string
}

// NewPattern compiles a delimiter-bound expression such as /foo(\d+)/i.
// Supported flags are i, m, s and U; u is accepted and ignored since
// matching is always UTF-8 aware.
func NewPattern(expr, replacement string) (*Pattern, error) {
	if expr == "" {
		return nil, ErrEmptySearch
	}
	body, flags, err := splitDelimited(expr)
	if err != nil {
		return nil, err
	}
	var prefix strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's', 'U':
			prefix.WriteRune(f)
		case 'u':
		default:
			return nil, fmt.Errorf("pattern %q: unsupported modifier %q", expr, f)
		}
	}
	if prefix.Len() > 0 {
		body = "(?" + prefix.String() + ")" + body
	}
	re, err := regexp.Compile(body)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", expr, err)
	}
	return &Pattern{re: re, replacement: convertBackrefs(replacement)}, nil
}

// Replace implements Replacer.
func (p *Pattern) Replace(subject string) (string, int) {
	matches := p.re.FindAllStringSubmatchIndex(subject, -1)
	if len(matches) == 0 {
		return subject, 0
	}
	var buf []byte
	last := 0
	for _, m := range matches {
		buf = append(buf, subject[last:m[0]]...)
		buf = p.re.ExpandString(buf, p.replacement, subject, m)
		last = m[1]
	}
	buf = append(buf, subject[last:]...)
	return string(buf), len(matches)
}

var closingDelimiter = map[byte]byte{'(': ')', '[': ']', '{': '}', '<': '>'}

// splitDelimited separates /body/flags into body and flags.
func splitDelimited(expr string) (string, string, error) {
	open := expr[0]
	if isAlnum(open) || open == '\\' || open == ' ' {
		return "", "", fmt.Errorf("pattern %q: delimiter must not be alphanumeric, backslash or space", expr)
	}
	closing := open
	if c, ok := closingDelimiter[open]; ok {
		closing = c
	}
	end := strings.LastIndexByte(expr, closing)
	if end <= 0 {
		return "", "", fmt.Errorf("pattern %q: no ending delimiter %q", expr, closing)
	}
	return expr[1:end], expr[end+1:], nil
}

// convertBackrefs rewrites \N references to ${N} and escapes literal $
// signs that are not followed by a group reference.
func convertBackrefs(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && isDigit(s[i+1]):
			j := i + 1
			for j < len(s) && isDigit(s[j]) && j-i <= 2 {
				j++
			}
			b.WriteString("${" + s[i+1:j] + "}")
			i = j - 1
		case c == '$' && i+1 < len(s) && isDigit(s[i+1]):
			j := i + 1
			for j < len(s) && isDigit(s[j]) && j-i <= 2 {
				j++
			}
			b.WriteString("${" + s[i+1:j] + "}")
			i = j - 1
		case c == '$' && i+1 < len(s) && s[i+1] == '{':
			b.WriteByte(c)
		case c == '$':
			b.WriteString("$$")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// New selects the literal or pattern replacer. Pattern mode takes a single
// search/replacement pair.
func New(searches, replacements []string, regex bool) (Replacer, error) {
	if !regex {
		return NewLiteral(searches, replacements)
	}
	if len(searches) == 0 {
		return nil, ErrEmptySearch
	}
	if len(searches) > 1 || len(replacements) > 1 {
		return nil, fmt.Errorf("%w: got %d searches, %d replacements", ErrMultiplePatterns, len(searches), len(replacements))
	}
	var repl string
	if len(replacements) > 0 {
		repl = replacements[0]
	}
	return NewPattern(searches[0], repl)
}
