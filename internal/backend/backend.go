// Package backend defines the database contract the replacement engine runs
// against. Concrete drivers live in the mysql and postgres packages.
package backend

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupportedCharset marks tables whose character set cannot be read and
// rewritten safely.
var ErrUnsupportedCharset = errors.New("unsupported character set")

// Config holds connection settings shared by all drivers.
type Config struct {
	DSN     string
	Charset string // initial connection charset, optional
	Schema  string // postgres schema, defaults to public
}

// TableInfo describes a base table from information_schema.
type TableInfo struct {
	Name      string `json:"name"`
	Engine    string `json:"engine,omitempty"`
	Collation string `json:"collation,omitempty"`
	Charset   string `json:"charset,omitempty"`
	Rows      int64  `json:"rows"` // estimate from the catalog
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primaryKey"`
}

// Value is one column value of a fetched row.
type Value struct {
	Data string
	Null bool
}

// Cursor iterates over one page of rows. It must be closed before the next
// query is issued on the same connection.
type Cursor interface {
	Columns() []string
	Next() bool
	// Row returns the current row aligned with Columns. The slice is only
	// valid until the next call to Next.
	Row() []Value
	Err() error
	Close() error
}

// Backend is a single open database connection.
type Backend interface {
	// Tables lists base tables; views are excluded.
	Tables(ctx context.Context) ([]TableInfo, error)
	// Columns describes the columns of table in ordinal order.
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)
	CountRows(ctx context.Context, table string) (int64, error)
	// SelectPage reads up to limit rows starting at offset, ordered by orderBy.
	SelectPage(ctx context.Context, table string, orderBy []string, offset, limit int64) (Cursor, error)
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, stmt string) (int64, error)
	SetCharset(ctx context.Context, charset string) error
	// Engines lists the storage engines the server supports.
	Engines(ctx context.Context) ([]string, error)
	QuoteIdent(name string) string
	QuoteLiteral(value string) string
	Close() error
}

// SchemaAlterer is implemented by backends that can change table storage
// engines and collations.
type SchemaAlterer interface {
	AlterEngineStmt(table, engine string) string
	ConvertCollationStmt(table, charset, collation string) string
}

// unsupportedCharsets are wide encodings whose data cannot round-trip through
// a byte-oriented connection.
var unsupportedCharsets = map[string]bool{
	"utf16":   true,
	"utf16le": true,
	"utf32":   true,
	"ucs2":    true,
}

// CheckCharset returns ErrUnsupportedCharset for wide encodings.
func CheckCharset(charset string) error {
	if unsupportedCharsets[strings.ToLower(charset)] {
		return ErrUnsupportedCharset
	}
	return nil
}

// IsIntegerType reports whether a column type holds whole numbers.
func IsIntegerType(colType string) bool {
	t := strings.ToLower(colType)
	for _, p := range []string{"tinyint", "smallint", "mediumint", "bigint", "int", "integer", "serial", "bigserial", "smallserial"} {
		if t == p || strings.HasPrefix(t, p+"(") || strings.HasPrefix(t, p+" ") {
			return true
		}
	}
	return false
}
