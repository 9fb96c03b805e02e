// Package postgres implements backend.Backend for PostgreSQL using pgx.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ppiankov/dbreplace/internal/backend"
)

const (
	defaultSchema  = "public"
	clientEncoding = "UTF8"
)

// DB is a single PostgreSQL connection with search_path set to one schema.
type DB struct {
	conn   *pgx.Conn
	schema string
}

var _ backend.Backend = (*DB)(nil)

// Open connects to PostgreSQL and verifies the connection, retrying
// transient failures.
func Open(ctx context.Context, cfg backend.Config) (*DB, error) {
	return backend.ConnectWithRetry(ctx, func(ctx context.Context) (*DB, error) {
		return openOnce(ctx, cfg)
	})
}

func openOnce(ctx context.Context, cfg backend.Config) (*DB, error) {
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("ping: %w", err)
	}

	schema := cfg.Schema
	if schema == "" {
		schema = defaultSchema
	}
	if _, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize()); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("set search_path: %w", err)
	}

	p := &DB{conn: conn, schema: schema}
	if cfg.Charset != "" {
		if err := p.SetCharset(ctx, cfg.Charset); err != nil {
			_ = conn.Close(ctx)
			return nil, err
		}
	}
	return p, nil
}

// Close releases the connection.
func (p *DB) Close() error {
	return p.conn.Close(context.Background())
}

// ServerVersion returns the PostgreSQL server version string.
func (p *DB) ServerVersion(ctx context.Context) (string, error) {
	var version string
	err := p.conn.QueryRow(ctx, "SHOW server_version").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("server version: %w", err)
	}
	return version, nil
}

// Tables lists base tables of the schema. PostgreSQL has no per-table
// engine; collation and charset come from the database.
func (p *DB) Tables(ctx context.Context) ([]backend.TableInfo, error) {
	query := `
		SELECT
			t.table_name,
			GREATEST(COALESCE(c.reltuples::bigint, 0), 0) AS estimated_rows,
			d.datcollate,
			pg_catalog.pg_encoding_to_char(d.encoding)
		FROM information_schema.tables t
		LEFT JOIN pg_catalog.pg_class c
			ON c.relname = t.table_name
			AND c.relnamespace = (
				SELECT oid FROM pg_catalog.pg_namespace WHERE nspname = t.table_schema
			)
		CROSS JOIN pg_catalog.pg_database d
		WHERE d.datname = current_database()
			AND t.table_schema = $1
			AND t.table_type = 'BASE TABLE'
		ORDER BY t.table_name`

	rows, err := p.conn.Query(ctx, query, p.schema)
	if err != nil {
		return nil, fmt.Errorf("get tables: %w", err)
	}
	defer rows.Close()

	var tables []backend.TableInfo
	for rows.Next() {
		var t backend.TableInfo
		if err := rows.Scan(&t.Name, &t.Rows, &t.Collation, &t.Charset); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// Columns returns the columns of table, marking primary key members.
func (p *DB) Columns(ctx context.Context, table string) ([]backend.ColumnInfo, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			pk.column_name IS NOT NULL AS primary_key
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON kcu.constraint_name = tc.constraint_name
				AND kcu.table_schema = tc.table_schema
				AND kcu.table_name = tc.table_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = $1
				AND tc.table_name = $2
		) pk ON pk.column_name = c.column_name
		WHERE c.table_schema = $1
			AND c.table_name = $2
		ORDER BY c.ordinal_position`

	rows, err := p.conn.Query(ctx, query, p.schema, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var columns []backend.ColumnInfo
	for rows.Next() {
		var c backend.ColumnInfo
		if err := rows.Scan(&c.Name, &c.Type, &c.PrimaryKey); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("describe %s: table not found in schema %s", table, p.schema)
	}
	return columns, nil
}

// CountRows returns SELECT COUNT(*) for table.
func (p *DB) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := p.conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+p.QuoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// SelectPage reads one page with LIMIT/OFFSET. Rows come back in text
// format via the simple protocol so every value reaches the caller as the
// server renders it.
func (p *DB) SelectPage(ctx context.Context, table string, orderBy []string, offset, limit int64) (backend.Cursor, error) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(p.QuoteIdent(table))
	if len(orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, col := range orderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.QuoteIdent(col))
		}
	}
	fmt.Fprintf(&b, " LIMIT %d OFFSET %d", limit, offset)

	rows, err := p.conn.Query(ctx, b.String(), pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	return &cursor{rows: rows, cols: cols, row: make([]backend.Value, len(cols))}, nil
}

// Exec runs stmt and returns the affected row count.
func (p *DB) Exec(ctx context.Context, stmt string) (int64, error) {
	tag, err := p.conn.Exec(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var encodingName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// SetCharset validates the encoding name but leaves client_encoding at
// UTF8. The server converts from the database encoding, and pgx rejects
// simple-protocol queries under any other client encoding.
func (p *DB) SetCharset(_ context.Context, charset string) error {
	if charset == "" {
		return nil
	}
	if !encodingName.MatchString(charset) {
		return fmt.Errorf("set client_encoding: invalid encoding %q", charset)
	}
	if !strings.EqualFold(charset, clientEncoding) {
		slog.Debug("keeping client_encoding", "client_encoding", clientEncoding, "database_encoding", charset)
	}
	return nil
}

// Engines returns nil: PostgreSQL has a single storage engine.
func (p *DB) Engines(context.Context) ([]string, error) {
	return nil, nil
}

// QuoteIdent quotes an identifier.
func (p *DB) QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QuoteLiteral returns value as a PostgreSQL string literal. Values with
// backslashes use the E'' form so the result does not depend on
// standard_conforming_strings.
func (p *DB) QuoteLiteral(value string) string {
	return QuoteLiteral(value)
}

// QuoteLiteral returns value as a PostgreSQL string literal.
func QuoteLiteral(value string) string {
	quoted := strings.ReplaceAll(value, "'", "''")
	if strings.Contains(value, `\`) {
		return "E'" + strings.ReplaceAll(quoted, `\`, `\\`) + "'"
	}
	return "'" + quoted + "'"
}

type cursor struct {
	rows pgx.Rows
	cols []string
	row  []backend.Value
}

func (c *cursor) Columns() []string { return c.cols }

func (c *cursor) Next() bool {
	if !c.rows.Next() {
		return false
	}
	for i, raw := range c.rows.RawValues() {
		c.row[i] = backend.Value{Data: string(raw), Null: raw == nil}
	}
	return true
}

func (c *cursor) Row() []backend.Value { return c.row }

func (c *cursor) Err() error { return c.rows.Err() }

func (c *cursor) Close() error {
	c.rows.Close()
	return c.rows.Err()
}
