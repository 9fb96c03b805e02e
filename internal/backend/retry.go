package backend

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	maxRetries = 3
	baseDelay  = 1 * time.Second
	maxJitter  = 500 * time.Millisecond
)

// Postgres SQLSTATE codes that never succeed on retry.
var pgFatalCodes = map[string]bool{
	"28P01": true, // invalid_password
	"28000": true, // invalid_authorization_specification
	"3D000": true, // invalid_catalog_name
}

// MySQL server error numbers that never succeed on retry.
var mysqlFatalCodes = map[uint16]bool{
	1044: true, // ER_DBACCESS_DENIED_ERROR
	1045: true, // ER_ACCESS_DENIED_ERROR
	1049: true, // ER_BAD_DB_ERROR
	1698: true, // ER_ACCESS_DENIED_NO_PASSWORD_ERROR
}

// ConnectWithRetry calls connect with exponential backoff.
// Retries on transient errors (connection refused, timeout).
// Fails fast on auth and configuration errors.
func ConnectWithRetry[T any](ctx context.Context, connect func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := range maxRetries {
		conn, err := connect(ctx)
		if err == nil {
			if attempt > 0 {
				slog.Info("connected after retry", "attempt", attempt+1)
			}
			return conn, nil
		}

		if !IsRetryable(err) {
			return zero, err
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}
		delay := backoffDelay(attempt)

		slog.Warn("connection failed, retrying",
			"attempt", attempt+1,
			"error", err,
			"retry_in", delay)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}

// IsRetryable classifies connection errors as retryable or fail-fast.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var parseErr *pgconn.ParseConfigError
	if errors.As(err, &parseErr) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return !pgFatalCodes[pgErr.Code]
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return !mysqlFatalCodes[myErr.Number]
	}

	msg := err.Error()
	for _, fatal := range []string{
		"password authentication failed",
		"no pg_hba.conf entry",
		"Access denied for user",
		"invalid DSN",
		"no such host",
	} {
		if strings.Contains(msg, fatal) {
			return false
		}
	}

	// Network errors are retried.
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}

	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "i/o timeout") ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Default: retry (unknown errors may be transient)
	return true
}

// backoffDelay returns exponential backoff with jitter.
func backoffDelay(attempt int) time.Duration {
	delay := baseDelay << uint(attempt) // 1s, 2s, 4s
	jitter := time.Duration(rand.Int64N(int64(maxJitter)))
	return delay + jitter
}
