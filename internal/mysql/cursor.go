package mysql

import (
	"database/sql"

	"github.com/ppiankov/dbreplace/internal/backend"
)

type cursor struct {
	rows *sql.Rows
	cols []string
	vals []sql.NullString
	ptrs []any
	row  []backend.Value
	err  error
}

func newCursor(rows *sql.Rows, cols []string) *cursor {
	c := &cursor{
		rows: rows,
		cols: cols,
		vals: make([]sql.NullString, len(cols)),
		ptrs: make([]any, len(cols)),
		row:  make([]backend.Value, len(cols)),
	}
	for i := range c.vals {
		c.ptrs[i] = &c.vals[i]
	}
	return c
}

func (c *cursor) Columns() []string { return c.cols }

func (c *cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	if err := c.rows.Scan(c.ptrs...); err != nil {
		c.err = err
		return false
	}
	for i, v := range c.vals {
		c.row[i] = backend.Value{Data: v.String, Null: !v.Valid}
	}
	return true
}

func (c *cursor) Row() []backend.Value { return c.row }

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *cursor) Close() error { return c.rows.Close() }
