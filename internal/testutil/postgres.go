package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PostgresSeedSQL creates tables holding plain and serialized values, one of
// them without a primary key.
const PostgresSeedSQL = `
CREATE TABLE wp_options (
	option_id BIGSERIAL PRIMARY KEY,
	option_name TEXT NOT NULL UNIQUE,
	option_value TEXT
);

CREATE TABLE wp_posts (
	id BIGSERIAL PRIMARY KEY,
	guid TEXT NOT NULL,
	post_content TEXT
);

CREATE TABLE wp_log (
	message TEXT
);

INSERT INTO wp_options (option_name, option_value) VALUES
	('siteurl', 'http://old.example'),
	('widget', 'a:2:{s:3:"url";s:18:"http://old.example";s:5:"title";s:4:"Home";}'),
	('broken', 's:99:"http://old.example";'),
	('empty', NULL);

INSERT INTO wp_posts (guid, post_content) VALUES
	('http://old.example/?p=1', 'Visit http://old.example today'),
	('http://old.example/?p=2', 'Nothing here');

INSERT INTO wp_log (message) VALUES ('http://old.example');
`

const pgDSNEnv = "DBREPLACE_TEST_PG_DSN"

// runPostgresContainer starts a PG container, recovering from panics if Docker is unavailable.
func runPostgresContainer(ctx context.Context) (container *postgres.PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
	)
}

func seedPostgres(ctx context.Context, connStr string) error {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return fmt.Errorf("seed connect: %w", err)
	}
	reset := "DROP TABLE IF EXISTS wp_options, wp_posts, wp_log;"
	if _, err := conn.Exec(ctx, reset+PostgresSeedSQL); err != nil {
		_ = conn.Close(ctx)
		return fmt.Errorf("seed: %w", err)
	}
	return conn.Close(ctx)
}

// SetupPostgresDSN starts a PostgreSQL container, seeds it, and returns the
// connection string and a cleanup function. If DBREPLACE_TEST_PG_DSN is set,
// it seeds that database instead of starting Docker.
func SetupPostgresDSN() (string, func(), error) {
	ctx := context.Background()

	if connStr := os.Getenv(pgDSNEnv); connStr != "" {
		if err := seedPostgres(ctx, connStr); err != nil {
			return "", nil, fmt.Errorf("seed %s: %w", pgDSNEnv, err)
		}
		return connStr, func() {}, nil
	}

	container, err := runPostgresContainer(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("docker not available: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, fmt.Errorf("connection string: %w", err)
	}

	if err := seedPostgres(ctx, connStr); err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}

	cleanup := func() {
		_ = container.Terminate(ctx)
	}
	return connStr, cleanup, nil
}

// SetupPostgres is a test helper around SetupPostgresDSN that skips the test
// if Docker is not available.
func SetupPostgres(t *testing.T) (string, func()) {
	t.Helper()
	connStr, cleanup, err := SetupPostgresDSN()
	if err != nil {
		t.Skipf("skipping: %v", err)
	}
	return connStr, cleanup
}
