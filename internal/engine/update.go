package engine

import (
	"strings"

	"github.com/ppiankov/dbreplace/internal/backend"
)

// updateStmt builds UPDATE <table> SET <sets> WHERE <pk> = <value> [AND ...].
func updateStmt(b backend.Backend, table string, sets []string, lay layout, keyVals map[string]backend.Value) string {
	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.QuoteIdent(table))
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(sets, ", "))
	sb.WriteString(" WHERE ")
	for i, k := range lay.keys {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString(b.QuoteIdent(k))
		v := keyVals[k]
		if v.Null {
			sb.WriteString(" IS NULL")
			continue
		}
		sb.WriteString(" = ")
		sb.WriteString(keyLiteral(b, lay.types[k], v.Data))
	}
	return sb.String()
}

// keyLiteral emits whole-number keys of integer columns bare and everything
// else as an escaped literal.
func keyLiteral(b backend.Backend, colType, value string) string {
	if backend.IsIntegerType(colType) && isInteger(value) {
		return value
	}
	return b.QuoteLiteral(value)
}

func isInteger(s string) bool {
	if strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
