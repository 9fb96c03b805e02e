// Package mysql implements backend.Backend for MySQL and MariaDB on top of
// database/sql and github.com/go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/ppiankov/dbreplace/internal/backend"
)

// DB is a MySQL connection. All statements run on one pinned connection so
// session settings such as SET NAMES apply to every later query.
type DB struct {
	db      *sql.DB
	conn    *sql.Conn
	schema  string
	charset string // character_set_client of the pinned connection
}

var _ backend.Backend = (*DB)(nil)
var _ backend.SchemaAlterer = (*DB)(nil)

// Open connects to MySQL, retrying transient failures.
func Open(ctx context.Context, cfg backend.Config) (*DB, error) {
	return backend.ConnectWithRetry(ctx, func(ctx context.Context) (*DB, error) {
		return openOnce(ctx, cfg)
	})
}

func openOnce(ctx context.Context, cfg backend.Config) (*DB, error) {
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if dsn.DBName == "" {
		return nil, fmt.Errorf("connect: invalid DSN: no database name")
	}

	connector, err := mysql.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	m := &DB{db: db, conn: conn, schema: dsn.DBName}
	if err := conn.QueryRowContext(ctx, "SELECT @@character_set_client").Scan(&m.charset); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("client charset: %w", err)
	}
	if cfg.Charset != "" {
		if err := m.SetCharset(ctx, cfg.Charset); err != nil {
			_ = m.Close()
			return nil, err
		}
	}
	return m, nil
}

// Close releases the pinned connection and the pool.
func (m *DB) Close() error {
	cerr := m.conn.Close()
	if err := m.db.Close(); err != nil {
		return err
	}
	return cerr
}

// ServerVersion returns the server version string.
func (m *DB) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := m.conn.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", fmt.Errorf("server version: %w", err)
	}
	return version, nil
}

// Tables lists base tables of the current schema with engine, collation and
// character set.
func (m *DB) Tables(ctx context.Context) ([]backend.TableInfo, error) {
	query := `
		SELECT
			t.TABLE_NAME,
			COALESCE(t.ENGINE, ''),
			COALESCE(t.TABLE_COLLATION, ''),
			COALESCE(c.CHARACTER_SET_NAME, ''),
			COALESCE(t.TABLE_ROWS, 0)
		FROM information_schema.TABLES t
		LEFT JOIN information_schema.COLLATION_CHARACTER_SET_APPLICABILITY c
			ON t.TABLE_COLLATION = c.COLLATION_NAME
		WHERE t.TABLE_SCHEMA = ?
			AND t.TABLE_TYPE = 'BASE TABLE'
		ORDER BY t.TABLE_NAME`

	rows, err := m.conn.QueryContext(ctx, query, m.schema)
	if err != nil {
		return nil, fmt.Errorf("get tables: %w", err)
	}
	defer rows.Close()

	var tables []backend.TableInfo
	for rows.Next() {
		var t backend.TableInfo
		if err := rows.Scan(&t.Name, &t.Engine, &t.Collation, &t.Charset, &t.Rows); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// Columns runs DESCRIBE on table.
func (m *DB) Columns(ctx context.Context, table string) ([]backend.ColumnInfo, error) {
	rows, err := m.conn.QueryContext(ctx, "DESCRIBE "+m.QuoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var columns []backend.ColumnInfo
	for rows.Next() {
		var (
			field, typ, null, key string
			def, extra            sql.NullString
		)
		if err := rows.Scan(&field, &typ, &null, &key, &def, &extra); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, backend.ColumnInfo{
			Name:       field,
			Type:       typ,
			PrimaryKey: key == "PRI",
		})
	}
	return columns, rows.Err()
}

// CountRows returns SELECT COUNT(*) for table.
func (m *DB) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := m.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+m.QuoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// SelectPage reads one page of table with LIMIT offset, limit.
func (m *DB) SelectPage(ctx context.Context, table string, orderBy []string, offset, limit int64) (backend.Cursor, error) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(m.QuoteIdent(table))
	if len(orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, col := range orderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(m.QuoteIdent(col))
		}
	}
	fmt.Fprintf(&b, " LIMIT %d, %d", offset, limit)

	rows, err := m.conn.QueryContext(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return newCursor(rows, cols), nil
}

// Exec runs stmt and returns the affected row count.
func (m *DB) Exec(ctx context.Context, stmt string) (int64, error) {
	res, err := m.conn.ExecContext(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var charsetName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// SetCharset switches the connection character set with SET NAMES.
func (m *DB) SetCharset(ctx context.Context, charset string) error {
	if charset == "" {
		return nil
	}
	if !charsetName.MatchString(charset) {
		return fmt.Errorf("set names: invalid charset %q", charset)
	}
	if _, err := m.conn.ExecContext(ctx, "SET NAMES "+charset); err != nil {
		return fmt.Errorf("set names %s: %w", charset, err)
	}
	m.charset = charset
	return nil
}

// Engines lists engines reported by SHOW ENGINES with Support YES or DEFAULT.
func (m *DB) Engines(ctx context.Context) ([]string, error) {
	rows, err := m.conn.QueryContext(ctx, "SHOW ENGINES")
	if err != nil {
		return nil, fmt.Errorf("show engines: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("show engines: %w", err)
	}
	engineIdx, supportIdx := -1, -1
	for i, c := range cols {
		switch strings.ToLower(c) {
		case "engine":
			engineIdx = i
		case "support":
			supportIdx = i
		}
	}
	if engineIdx < 0 || supportIdx < 0 {
		return nil, fmt.Errorf("show engines: unexpected columns %v", cols)
	}

	var engines []string
	vals := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan engine: %w", err)
		}
		switch strings.ToUpper(vals[supportIdx].String) {
		case "YES", "DEFAULT":
			engines = append(engines, vals[engineIdx].String)
		}
	}
	return engines, rows.Err()
}

// QuoteIdent quotes an identifier with backticks.
func (m *DB) QuoteIdent(name string) string {
	return QuoteIdent(name)
}

// QuoteLiteral quotes value for the current connection character set.
func (m *DB) QuoteLiteral(value string) string {
	return QuoteLiteral(value, m.charset)
}

// AlterEngineStmt implements backend.SchemaAlterer.
func (m *DB) AlterEngineStmt(table, engine string) string {
	return "ALTER TABLE " + QuoteIdent(table) + " ENGINE = " + engine
}

// ConvertCollationStmt implements backend.SchemaAlterer.
func (m *DB) ConvertCollationStmt(table, charset, collation string) string {
	return "ALTER TABLE " + QuoteIdent(table) + " CONVERT TO CHARACTER SET " + charset + " COLLATE " + collation
}

// QuoteIdent quotes a MySQL identifier.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteLiteral returns value as a MySQL string literal that reads back as
// the same bytes under any connection charset and sql_mode. Printable ASCII
// without backslashes is single-quoted with quotes doubled. Anything else is
// written as a hex literal with a charset introducer, e.g. _sjis X'955C27',
// so a multi-byte character ending in 0x5C is never mistaken for an escape.
// An empty charset leaves a bare hex literal.
func QuoteLiteral(value, charset string) string {
	if isPlain(value) {
		return "'" + strings.ReplaceAll(value, "'", "''") + "'"
	}
	var b strings.Builder
	b.Grow(len(value)*2 + len(charset) + 4)
	if charset != "" {
		b.WriteByte('_')
		b.WriteString(charset)
		b.WriteByte(' ')
	}
	b.WriteString("X'")
	b.WriteString(strings.ToUpper(hex.EncodeToString([]byte(value))))
	b.WriteByte('\'')
	return b.String()
}

func isPlain(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 0x20 || c > 0x7e || c == '\\' {
			return false
		}
	}
	return true
}
