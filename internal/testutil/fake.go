package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/dbreplace/internal/backend"
)

// ErrCursorOpen is returned when a query is issued while a page cursor is
// still open.
var ErrCursorOpen = errors.New("fake: cursor still open")

// FakeTable is an in-memory table served by FakeBackend.
type FakeTable struct {
	Info    backend.TableInfo
	Columns []backend.ColumnInfo
	Rows    [][]backend.Value
}

// Page records one SelectPage call.
type Page struct {
	Table   string
	OrderBy []string
	Offset  int64
	Limit   int64
}

// FakeBackend is an in-memory backend.Backend that records every statement
// and supports injected failures. It also implements backend.SchemaAlterer
// with MySQL statement shapes.
type FakeBackend struct {
	Schema     []*FakeTable
	EngineList []string

	// Injected failures.
	TablesErr  error
	ColumnsErr map[string]error
	CountErr   map[string]error
	SelectErr  map[string]error
	ExecErr    func(stmt string) error

	// Quoting, backtick identifiers and doubled quotes when nil.
	Ident   func(string) string
	Literal func(string) string

	// Recorded calls.
	Statements []string
	Charsets   []string
	Pages      []Page
	Closed     bool

	open int
}

var _ backend.Backend = (*FakeBackend)(nil)
var _ backend.SchemaAlterer = (*FakeBackend)(nil)

// Table returns the fake table called name, or nil.
func (f *FakeBackend) Table(name string) *FakeTable {
	for _, t := range f.Schema {
		if t.Info.Name == name {
			return t
		}
	}
	return nil
}

func (f *FakeBackend) busy() error {
	if f.open > 0 {
		return ErrCursorOpen
	}
	return nil
}

func (f *FakeBackend) Tables(context.Context) ([]backend.TableInfo, error) {
	if err := f.busy(); err != nil {
		return nil, err
	}
	if f.TablesErr != nil {
		return nil, f.TablesErr
	}
	out := make([]backend.TableInfo, len(f.Schema))
	for i, t := range f.Schema {
		out[i] = t.Info
	}
	return out, nil
}

func (f *FakeBackend) Columns(_ context.Context, table string) ([]backend.ColumnInfo, error) {
	if err := f.busy(); err != nil {
		return nil, err
	}
	if err := f.ColumnsErr[table]; err != nil {
		return nil, err
	}
	t := f.Table(table)
	if t == nil {
		return nil, fmt.Errorf("describe %s: table does not exist", table)
	}
	return t.Columns, nil
}

func (f *FakeBackend) CountRows(_ context.Context, table string) (int64, error) {
	if err := f.busy(); err != nil {
		return 0, err
	}
	if err := f.CountErr[table]; err != nil {
		return 0, err
	}
	t := f.Table(table)
	if t == nil {
		return 0, fmt.Errorf("count %s: table does not exist", table)
	}
	return int64(len(t.Rows)), nil
}

func (f *FakeBackend) SelectPage(_ context.Context, table string, orderBy []string, offset, limit int64) (backend.Cursor, error) {
	if err := f.busy(); err != nil {
		return nil, err
	}
	f.Pages = append(f.Pages, Page{Table: table, OrderBy: orderBy, Offset: offset, Limit: limit})
	if err := f.SelectErr[table]; err != nil {
		return nil, err
	}
	t := f.Table(table)
	if t == nil {
		return nil, fmt.Errorf("select %s: table does not exist", table)
	}
	end := offset + limit
	if end > int64(len(t.Rows)) {
		end = int64(len(t.Rows))
	}
	var rows [][]backend.Value
	if offset < end {
		rows = t.Rows[offset:end]
	}
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c.Name
	}
	f.open++
	return &fakeCursor{f: f, cols: cols, rows: rows, pos: -1}, nil
}

func (f *FakeBackend) Exec(_ context.Context, stmt string) (int64, error) {
	if err := f.busy(); err != nil {
		return 0, err
	}
	if f.ExecErr != nil {
		if err := f.ExecErr(stmt); err != nil {
			return 0, err
		}
	}
	f.Statements = append(f.Statements, stmt)
	return 1, nil
}

func (f *FakeBackend) SetCharset(_ context.Context, charset string) error {
	if err := f.busy(); err != nil {
		return err
	}
	f.Charsets = append(f.Charsets, charset)
	return nil
}

func (f *FakeBackend) Engines(context.Context) ([]string, error) {
	return f.EngineList, nil
}

func (f *FakeBackend) QuoteIdent(name string) string {
	if f.Ident != nil {
		return f.Ident(name)
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (f *FakeBackend) QuoteLiteral(value string) string {
	if f.Literal != nil {
		return f.Literal(value)
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (f *FakeBackend) AlterEngineStmt(table, engine string) string {
	return "ALTER TABLE " + f.QuoteIdent(table) + " ENGINE = " + engine
}

func (f *FakeBackend) ConvertCollationStmt(table, charset, collation string) string {
	return "ALTER TABLE " + f.QuoteIdent(table) + " CONVERT TO CHARACTER SET " + charset + " COLLATE " + collation
}

func (f *FakeBackend) Close() error {
	f.Closed = true
	return nil
}

type fakeCursor struct {
	f      *FakeBackend
	cols   []string
	rows   [][]backend.Value
	pos    int
	closed bool
}

func (c *fakeCursor) Columns() []string { return c.cols }

func (c *fakeCursor) Next() bool {
	if c.closed || c.pos+1 >= len(c.rows) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Row() []backend.Value {
	row := make([]backend.Value, len(c.rows[c.pos]))
	copy(row, c.rows[c.pos])
	return row
}

func (c *fakeCursor) Err() error { return nil }

func (c *fakeCursor) Close() error {
	if !c.closed {
		c.closed = true
		c.f.open--
	}
	return nil
}

// Text is shorthand for a non-NULL value.
func Text(s string) backend.Value {
	return backend.Value{Data: s}
}

// Null is a NULL value.
var Null = backend.Value{Null: true}
