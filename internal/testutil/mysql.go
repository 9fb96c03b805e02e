package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
)

// MySQLSeedSQL mirrors PostgresSeedSQL for MySQL, plus a MyISAM table for
// engine alteration.
const MySQLSeedSQL = `
DROP TABLE IF EXISTS wp_options, wp_posts, wp_log, wp_legacy;

CREATE TABLE wp_options (
	option_id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	option_name VARCHAR(191) NOT NULL UNIQUE,
	option_value LONGTEXT
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;

CREATE TABLE wp_posts (
	ID BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	guid VARCHAR(255) NOT NULL,
	post_content LONGTEXT
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;

CREATE TABLE wp_log (
	message TEXT
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE wp_legacy (
	id INT NOT NULL PRIMARY KEY,
	note TEXT
) ENGINE=MyISAM DEFAULT CHARSET=latin1;

INSERT INTO wp_options (option_name, option_value) VALUES
	('siteurl', 'http://old.example'),
	('widget', 'a:2:{s:3:"url";s:18:"http://old.example";s:5:"title";s:4:"Home";}'),
	('broken', 's:99:"http://old.example";'),
	('empty', NULL);

INSERT INTO wp_posts (guid, post_content) VALUES
	('http://old.example/?p=1', 'Visit http://old.example today'),
	('http://old.example/?p=2', 'Nothing here');

INSERT INTO wp_log (message) VALUES ('http://old.example');

INSERT INTO wp_legacy (id, note) VALUES (1, 'legacy');
`

const mysqlDSNEnv = "DBREPLACE_TEST_MYSQL_DSN"

// runMySQLContainer starts a MySQL container, recovering from panics if Docker is unavailable.
func runMySQLContainer(ctx context.Context) (container *tcmysql.MySQLContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("testdb"),
		tcmysql.WithUsername("test"),
		tcmysql.WithPassword("test"),
	)
}

func seedMySQL(ctx context.Context, dsn string) error {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("mysql", dsn+sep+"multiStatements=true")
	if err != nil {
		return fmt.Errorf("seed connect: %w", err)
	}
	if _, err := db.ExecContext(ctx, MySQLSeedSQL); err != nil {
		_ = db.Close()
		return fmt.Errorf("seed: %w", err)
	}
	return db.Close()
}

// SetupMySQLDSN starts a MySQL container, seeds it, and returns the DSN and
// a cleanup function. If DBREPLACE_TEST_MYSQL_DSN is set, it seeds that
// database instead of starting Docker.
func SetupMySQLDSN() (string, func(), error) {
	ctx := context.Background()

	if dsn := os.Getenv(mysqlDSNEnv); dsn != "" {
		if err := seedMySQL(ctx, dsn); err != nil {
			return "", nil, fmt.Errorf("seed %s: %w", mysqlDSNEnv, err)
		}
		return dsn, func() {}, nil
	}

	container, err := runMySQLContainer(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("docker not available: %w", err)
	}

	dsn, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, fmt.Errorf("connection string: %w", err)
	}

	if err := seedMySQL(ctx, dsn); err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}

	cleanup := func() {
		_ = container.Terminate(ctx)
	}
	return dsn, cleanup, nil
}

// SetupMySQL is a test helper around SetupMySQLDSN that skips the test if
// Docker is not available.
func SetupMySQL(t *testing.T) (string, func()) {
	t.Helper()
	dsn, cleanup, err := SetupMySQLDSN()
	if err != nil {
		t.Skipf("skipping: %v", err)
	}
	return dsn, cleanup
}
