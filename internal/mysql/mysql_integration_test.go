//go:build integration

package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/ppiankov/dbreplace/internal/backend"
	"github.com/ppiankov/dbreplace/internal/testutil"
)

func TestIntegration_Backend(t *testing.T) {
	dsn, cleanup := testutil.SetupMySQL(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, err := Open(ctx, backend.Config{DSN: dsn, Charset: "utf8mb4"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ver, err := db.ServerVersion(ctx)
	if err != nil {
		t.Fatalf("ServerVersion: %v", err)
	}
	t.Logf("MySQL version: %s", ver)

	tables, err := db.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	byName := make(map[string]backend.TableInfo)
	for _, tbl := range tables {
		byName[tbl.Name] = tbl
	}
	legacy, ok := byName["wp_legacy"]
	if !ok {
		t.Fatal("Tables: missing wp_legacy")
	}
	if legacy.Engine != "MyISAM" || legacy.Charset != "latin1" {
		t.Errorf("wp_legacy = %+v, want MyISAM latin1", legacy)
	}
	if opts := byName["wp_options"]; opts.Collation != "utf8mb4_general_ci" || opts.Charset != "utf8mb4" {
		t.Errorf("wp_options = %+v", opts)
	}

	cols, err := db.Columns(ctx, "wp_posts")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	if len(cols) != 3 || cols[0].Name != "ID" || !cols[0].PrimaryKey || !backend.IsIntegerType(cols[0].Type) {
		t.Errorf("wp_posts columns = %+v", cols)
	}

	n, err := db.CountRows(ctx, "wp_options")
	if err != nil || n != 4 {
		t.Fatalf("CountRows = %d, %v; want 4", n, err)
	}

	cur, err := db.SelectPage(ctx, "wp_options", []string{"option_id"}, 3, 10)
	if err != nil {
		t.Fatalf("SelectPage: %v", err)
	}
	var rows [][]backend.Value
	for cur.Next() {
		rows = append(rows, append([]backend.Value(nil), cur.Row()...))
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor: %v", err)
	}
	_ = cur.Close()
	if len(rows) != 1 || !rows[0][2].Null {
		t.Errorf("expected one row with NULL option_value, got %+v", rows)
	}

	value := "quote ' double \" backslash \\ nul \x00 end"
	affected, err := db.Exec(ctx, "UPDATE `wp_legacy` SET `note` = "+db.QuoteLiteral(value)+" WHERE `id` = 1")
	if err != nil || affected != 1 {
		t.Fatalf("Exec = %d, %v", affected, err)
	}
	cur, err = db.SelectPage(ctx, "wp_legacy", []string{"id"}, 0, 1)
	if err != nil {
		t.Fatalf("SelectPage: %v", err)
	}
	if !cur.Next() || cur.Row()[1].Data != value {
		t.Error("escaped literal did not round-trip")
	}
	_ = cur.Close()

	engines, err := db.Engines(ctx)
	if err != nil {
		t.Fatalf("Engines: %v", err)
	}
	found := false
	for _, e := range engines {
		if e == "InnoDB" {
			found = true
		}
	}
	if !found {
		t.Errorf("InnoDB missing from %v", engines)
	}

	if err := db.SetCharset(ctx, "latin1"); err != nil {
		t.Errorf("SetCharset: %v", err)
	}
	if err := db.SetCharset(ctx, "latin1; DROP TABLE x"); err == nil {
		t.Error("expected invalid charset error")
	}
}

func TestIntegration_MultibyteLiteralRoundTrip(t *testing.T) {
	dsn, cleanup := testutil.SetupMySQL(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, err := Open(ctx, backend.Config{DSN: dsn})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(ctx, "CREATE TABLE sjis_note (id INT PRIMARY KEY, note VARCHAR(32)) CHARACTER SET sjis"); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _, _ = db.Exec(ctx, "DROP TABLE sjis_note") }()

	if err := db.SetCharset(ctx, "sjis"); err != nil {
		t.Fatalf("SetCharset: %v", err)
	}
	// 表 in SJIS is 0x95 0x5C; its trail byte is a backslash.
	value := "\x95\x5c'"
	if _, err := db.Exec(ctx, "INSERT INTO sjis_note VALUES (1, "+db.QuoteLiteral(value)+")"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	cur, err := db.SelectPage(ctx, "sjis_note", []string{"id"}, 0, 1)
	if err != nil {
		t.Fatalf("SelectPage: %v", err)
	}
	defer cur.Close()
	if !cur.Next() {
		t.Fatalf("no row: %v", cur.Err())
	}
	if got := cur.Row()[1].Data; got != value {
		t.Errorf("stored % x, want % x", got, value)
	}
}
