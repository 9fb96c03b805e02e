package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ppiankov/dbreplace/internal/backend"
	"github.com/ppiankov/dbreplace/internal/report"
)

// AlterJob configures a schema alteration. Engine takes precedence when both
// Engine and Collation are set.
type AlterJob struct {
	Engine        string
	Collation     string
	Tables        []string
	ExcludeTables []string
}

var collationName = regexp.MustCompile(`^[A-Za-z0-9]+_[A-Za-z0-9_]+$`)

// CollationCharset returns the character set a collation belongs to.
func CollationCharset(collation string) (string, error) {
	if !collationName.MatchString(collation) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCollation, collation)
	}
	charset, _, _ := strings.Cut(collation, "_")
	return charset, nil
}

// Alter changes the storage engine or the collation of the selected tables.
// Tables that already match are left alone. Configuration problems, such as
// an engine the server does not support, fail before any ALTER is issued.
func Alter(ctx context.Context, b backend.Backend, job AlterJob) (*report.Alter, error) {
	rep := &report.Alter{Start: now()}
	defer func() { rep.End = now() }()

	fail := func(bucket report.Bucket, err error) (*report.Alter, error) {
		rep.Errors.Add(bucket, report.Entry{Message: err.Error()})
		return rep, err
	}

	var (
		stmt    func(table string) string
		current func(t backend.TableInfo) string
	)
	alterer, ok := b.(backend.SchemaAlterer)

	switch {
	case job.Engine != "":
		rep.Mode, rep.Target = report.AlterEngine, job.Engine
		if !ok {
			return fail(report.BucketSearch, ErrAlterUnsupported)
		}
		engines, err := b.Engines(ctx)
		if err != nil {
			return fail(report.BucketDB, fmt.Errorf("list engines: %w", err))
		}
		engine, found := matchEngine(engines, job.Engine)
		if !found {
			return fail(report.BucketResults, fmt.Errorf("%w: %s (available: %s)",
				ErrUnsupportedEngine, job.Engine, strings.Join(engines, ", ")))
		}
		rep.Target = engine
		stmt = func(table string) string { return alterer.AlterEngineStmt(table, engine) }
		current = func(t backend.TableInfo) string { return t.Engine }

	case job.Collation != "":
		rep.Mode, rep.Target = report.AlterCollation, job.Collation
		if !ok {
			return fail(report.BucketSearch, ErrAlterUnsupported)
		}
		charset, err := CollationCharset(job.Collation)
		if err != nil {
			return fail(report.BucketSearch, err)
		}
		stmt = func(table string) string { return alterer.ConvertCollationStmt(table, charset, job.Collation) }
		current = func(t backend.TableInfo) string { return t.Collation }

	default:
		return fail(report.BucketSearch, ErrNothingToAlter)
	}

	tables, err := resolveTables(ctx, b, job.Tables, job.ExcludeTables, &rep.Errors)
	if err != nil {
		return rep, err
	}

	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return fail(report.BucketDB, err)
		}
		res := report.AlterResult{Table: t.Name}
		if strings.EqualFold(current(t), rep.Target) {
			res.Unchanged = true
			rep.Tables = append(rep.Tables, res)
			slog.Debug("already matches", "table", t.Name, "target", rep.Target)
			continue
		}
		q := stmt(t.Name)
		slog.Debug("alter", "table", t.Name, "sql", q)
		if _, err := b.Exec(ctx, q); err != nil {
			res.Error = err.Error()
			rep.Errors.Add(report.BucketResults, report.Entry{Table: t.Name, Message: fmt.Sprintf("alter failed: %v", err)})
			slog.Warn("alter failed", "table", t.Name, "error", err)
		} else {
			res.Converted = true
		}
		rep.Tables = append(rep.Tables, res)
	}

	slog.Info("alter complete", "mode", rep.Mode, "target", rep.Target,
		"tables", len(rep.Tables), "converted", rep.Converted())
	return rep, nil
}

// matchEngine finds name in engines case-insensitively and returns the
// server's spelling.
func matchEngine(engines []string, name string) (string, bool) {
	for _, e := range engines {
		if strings.EqualFold(e, name) {
			return e, true
		}
	}
	return "", false
}
