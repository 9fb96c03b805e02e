package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsRetryable_ConnectionRefused(t *testing.T) {
	err := fmt.Errorf("dial tcp: connection refused")
	if !IsRetryable(err) {
		t.Error("connection refused should be retryable")
	}
}

func TestIsRetryable_ConnectionReset(t *testing.T) {
	err := fmt.Errorf("read: connection reset by peer")
	if !IsRetryable(err) {
		t.Error("connection reset should be retryable")
	}
}

func TestIsRetryable_IOTimeout(t *testing.T) {
	err := fmt.Errorf("dial tcp: i/o timeout")
	if !IsRetryable(err) {
		t.Error("i/o timeout should be retryable")
	}
}

func TestIsRetryable_DeadlineExceeded(t *testing.T) {
	if !IsRetryable(context.DeadlineExceeded) {
		t.Error("deadline exceeded should be retryable")
	}
}

func TestIsRetryable_Canceled(t *testing.T) {
	if IsRetryable(context.Canceled) {
		t.Error("canceled context should NOT be retryable")
	}
}

func TestIsRetryable_PgAuthFailed(t *testing.T) {
	err := &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
	if IsRetryable(err) {
		t.Error("auth failure should NOT be retryable")
	}
}

func TestIsRetryable_PgInvalidCatalogName(t *testing.T) {
	err := &pgconn.PgError{Code: "3D000", Message: "database does not exist"}
	if IsRetryable(err) {
		t.Error("invalid catalog name should NOT be retryable")
	}
}

func TestIsRetryable_PgTooManyConnections(t *testing.T) {
	err := &pgconn.PgError{Code: "53300", Message: "too many connections"}
	if !IsRetryable(err) {
		t.Error("too many connections should be retryable")
	}
}

func TestIsRetryable_PgParseConfigError(t *testing.T) {
	err := pgconn.NewParseConfigError("not-a-url", "failed to parse as keyword/value", errors.New("invalid keyword/value"))
	if IsRetryable(err) {
		t.Error("parse config errors should NOT be retryable")
	}
}

func TestIsRetryable_MySQLAccessDenied(t *testing.T) {
	err := fmt.Errorf("ping: %w", &mysql.MySQLError{Number: 1045, Message: "Access denied for user 'x'@'localhost'"})
	if IsRetryable(err) {
		t.Error("mysql access denied should NOT be retryable")
	}
}

func TestIsRetryable_MySQLUnknownDatabase(t *testing.T) {
	err := &mysql.MySQLError{Number: 1049, Message: "Unknown database 'nope'"}
	if IsRetryable(err) {
		t.Error("mysql unknown database should NOT be retryable")
	}
}

func TestIsRetryable_MySQLTooManyConnections(t *testing.T) {
	err := &mysql.MySQLError{Number: 1040, Message: "Too many connections"}
	if !IsRetryable(err) {
		t.Error("mysql too many connections should be retryable")
	}
}

func TestIsRetryable_InvalidDSN(t *testing.T) {
	err := errors.New("invalid DSN: missing the slash separating the database name")
	if IsRetryable(err) {
		t.Error("invalid DSN should NOT be retryable")
	}
}

func TestIsRetryable_NoSuchHost(t *testing.T) {
	err := fmt.Errorf("lookup invalid: no such host")
	if IsRetryable(err) {
		t.Error("no such host should NOT be retryable")
	}
}

func TestIsRetryable_NetOpError(t *testing.T) {
	err := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	if !IsRetryable(err) {
		t.Error("net.OpError should be retryable")
	}
}

func TestIsRetryable_UnknownError(t *testing.T) {
	err := fmt.Errorf("something unexpected")
	if !IsRetryable(err) {
		t.Error("unknown errors should be retryable by default")
	}
}

func TestBackoffDelay(t *testing.T) {
	d0 := backoffDelay(0)
	d1 := backoffDelay(1)
	d2 := backoffDelay(2)

	// Base delays: 1s, 2s, 4s (plus jitter up to 500ms)
	if d0 < 1*time.Second || d0 > 1500*time.Millisecond {
		t.Errorf("attempt 0: got %v, want ~1s", d0)
	}
	if d1 < 2*time.Second || d1 > 2500*time.Millisecond {
		t.Errorf("attempt 1: got %v, want ~2s", d1)
	}
	if d2 < 4*time.Second || d2 > 4500*time.Millisecond {
		t.Errorf("attempt 2: got %v, want ~4s", d2)
	}
}

func TestConnectWithRetry_FailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	calls := 0
	start := time.Now()
	_, err := ConnectWithRetry(ctx, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("invalid DSN: bad")
	})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if elapsed >= baseDelay {
		t.Fatalf("expected fail-fast without retry delay, took %v", elapsed)
	}
}

func TestConnectWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := ConnectWithRetry(ctx, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("dial tcp: connection refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestConnectWithRetry_SucceedsAfterRetry(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for one backoff interval")
	}
	calls := 0
	got, err := ConnectWithRetry(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("dial tcp: connection refused")
		}
		return "conn", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "conn" || calls != 2 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}
