package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/dbreplace/internal/backend"
	"github.com/ppiankov/dbreplace/internal/replace"
	"github.com/ppiankov/dbreplace/internal/report"
	"github.com/ppiankov/dbreplace/internal/serial"
)

// now is the clock used for report timestamps.
var now = time.Now

// Run walks the selected tables of b and rewrites every matching value.
// It always returns a report. The error is non-nil only for configuration
// errors (wrapping ErrConfig), a failure to list tables, or cancellation;
// per-table and per-row problems are recorded in the report instead.
func Run(ctx context.Context, b backend.Backend, job Job) (*report.Run, error) {
	rep := report.NewRun(job.DryRun, now())
	defer func() { rep.Finish(now()) }()

	if err := job.Validate(); err != nil {
		rep.Errors.Add(report.BucketSearch, report.Entry{Message: err.Error()})
		return rep, err
	}
	repl, err := job.Replacer()
	if err != nil {
		rep.Errors.Add(report.BucketSearch, report.Entry{Message: err.Error()})
		return rep, err
	}

	tables, err := resolveTables(ctx, b, job.Tables, job.ExcludeTables, &rep.Errors)
	if err != nil {
		return rep, err
	}

	w := &walker{
		b:      b,
		job:    job,
		rep:    rep,
		repl:   repl,
		leaf:   replace.Func(repl),
		filter: backend.NewColumnFilter(job.IncludeColumns, job.ExcludeColumns),
	}
	for _, t := range tables {
		if err := w.table(ctx, t); err != nil {
			rep.Errors.Add(report.BucketDB, report.Entry{Table: t.Name, Message: err.Error()})
			return rep, err
		}
	}

	verb := "were"
	if job.DryRun {
		verb = "would have been"
		slog.Warn("dry run: no changes were written to the database")
	}
	slog.Info("run complete",
		"tables", rep.Tables,
		"rows", rep.Rows,
		"changes", rep.Changes,
		"updates", rep.Updates,
		"elapsed", now().Sub(rep.Start).Round(time.Millisecond),
		"summary", fmt.Sprintf("%d changes %s made", rep.Changes, verb),
	)
	return rep, nil
}

// resolveTables lists base tables and applies the explicit and excluded
// lists. Listing failures are fatal only when no explicit list is given.
func resolveTables(ctx context.Context, b backend.Backend, explicit, exclude []string, errs *report.Errors) ([]backend.TableInfo, error) {
	explicit = backend.ResolveNames(explicit)
	all, err := b.Tables(ctx)
	if err != nil {
		errs.Add(report.BucketTables, report.Entry{Message: fmt.Sprintf("list tables: %v", err)})
		if len(explicit) == 0 {
			return nil, fmt.Errorf("list tables: %w", err)
		}
	}
	return backend.SelectTables(all, explicit, exclude), nil
}

type walker struct {
	b      backend.Backend
	job    Job
	rep    *report.Run
	repl   replace.Replacer
	leaf   serial.LeafFunc
	filter backend.ColumnFilter

	charset string // current connection charset
}

// layout describes how fetched rows map to primary key and candidate
// columns.
type layout struct {
	keys   []string
	keySet map[string]bool
	types  map[string]string
}

// table processes one table. Schema problems skip the table; only
// cancellation is returned.
func (w *walker) table(ctx context.Context, t backend.TableInfo) error {
	tr := w.rep.StartTable(t.Name, now())
	defer func() {
		w.rep.FinishTable(tr, now())
		if !tr.Skipped {
			slog.Info("table done",
				"table", t.Name,
				"rows", tr.Rows,
				"changes", tr.Changes,
				"updates", tr.Updates,
				"elapsed", tr.Duration().Round(time.Millisecond),
			)
		}
	}()

	skip := func(b report.Bucket, msg string) {
		tr.Skipped = true
		w.rep.Errors.Add(b, report.Entry{Table: t.Name, Message: msg})
		slog.Warn("table skipped", "table", t.Name, "reason", msg)
	}

	if err := backend.CheckCharset(t.Charset); err != nil {
		skip(report.BucketResults, fmt.Sprintf("%v %s, table skipped", err, t.Charset))
		return nil
	}

	cols, err := w.b.Columns(ctx, t.Name)
	if err != nil {
		skip(report.BucketTables, err.Error())
		return nil
	}
	lay := layout{keySet: make(map[string]bool), types: make(map[string]string, len(cols))}
	for _, c := range cols {
		lay.types[c.Name] = c.Type
		if c.PrimaryKey {
			lay.keys = append(lay.keys, c.Name)
			lay.keySet[c.Name] = true
		}
	}
	if len(lay.keys) == 0 {
		skip(report.BucketResults, fmt.Sprintf("%v, table skipped", ErrNoPrimaryKey))
		return nil
	}

	if t.Charset != "" && !strings.EqualFold(t.Charset, w.charset) {
		if err := w.b.SetCharset(ctx, t.Charset); err != nil {
			skip(report.BucketDB, err.Error())
			return nil
		}
		w.charset = t.Charset
	}

	count, err := w.b.CountRows(ctx, t.Name)
	if err != nil {
		skip(report.BucketTables, err.Error())
		return nil
	}
	slog.Debug("processing table", "table", t.Name, "rows", count, "pages", pages(count, w.job.PageSize))

	for offset := int64(0); offset < count; offset += w.job.PageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		names, rows, err := w.page(ctx, t.Name, lay.keys, offset)
		if err != nil {
			w.rep.Errors.Add(report.BucketResults, report.Entry{Table: t.Name, Message: fmt.Sprintf("page at offset %d: %v", offset, err)})
			slog.Warn("page read failed", "table", t.Name, "offset", offset, "error", err)
			return nil
		}
		for _, row := range rows {
			w.row(ctx, tr, t.Name, lay, names, row)
		}
	}
	return nil
}

func pages(count, size int64) int64 {
	return (count + size - 1) / size
}

// page reads one page into memory and closes the cursor before returning,
// so updates can run on the same connection.
func (w *walker) page(ctx context.Context, table string, orderBy []string, offset int64) ([]string, [][]backend.Value, error) {
	cur, err := w.b.SelectPage(ctx, table, orderBy, offset, w.job.PageSize)
	if err != nil {
		return nil, nil, err
	}
	cols := cur.Columns()
	var rows [][]backend.Value
	for cur.Next() {
		row := make([]backend.Value, len(cols))
		copy(row, cur.Row())
		rows = append(rows, row)
	}
	if err := cur.Err(); err != nil {
		_ = cur.Close()
		return nil, nil, fmt.Errorf("read %s: %w", table, err)
	}
	if err := cur.Close(); err != nil {
		return nil, nil, fmt.Errorf("close %s: %w", table, err)
	}
	return cols, rows, nil
}

// row rewrites one row and issues its UPDATE.
func (w *walker) row(ctx context.Context, tr *report.TableReport, table string, lay layout, cols []string, row []backend.Value) {
	tr.Rows++

	keyVals := make(map[string]backend.Value, len(lay.keys))
	for i, name := range cols {
		if lay.keySet[name] {
			keyVals[name] = row[i]
		}
	}
	id := rowID(lay.keys, keyVals)

	var sets []string
	for i, name := range cols {
		if lay.keySet[name] || !w.filter.Allows(name) || row[i].Null {
			continue
		}
		from := row[i].Data
		to := w.rewrite(tr, table, id, name, from)
		if to == from {
			continue
		}
		tr.Changes++
		tr.AddSample(report.Change{Row: id, Column: name, From: from, To: to}, w.job.SampleCap)
		sets = append(sets, w.b.QuoteIdent(name)+" = "+w.b.QuoteLiteral(to))
	}

	if len(sets) == 0 || w.job.DryRun {
		return
	}

	stmt := updateStmt(w.b, table, sets, lay, keyVals)
	slog.Debug("update", "table", table, "row", id, "sql", stmt)
	if _, err := w.b.Exec(ctx, stmt); err != nil {
		w.rep.Errors.Add(report.BucketResults, report.Entry{
			Table:   table,
			Row:     id,
			Message: fmt.Sprintf("update failed: %v", err),
		})
		slog.Warn("update failed", "table", table, "row", id, "error", err)
		return
	}
	tr.Updates++
}

// rewrite applies the replacement to one value, through the codec when the
// value decodes and directly otherwise.
func (w *walker) rewrite(tr *report.TableReport, table, row, column, value string) string {
	out, _, err := serial.Rewrite(value, w.leaf)
	if err == nil {
		return out
	}

	tr.DecodeFallbacks++
	var de *serial.DecodeError
	if errors.As(err, &de) && serial.LooksSerialized(value) {
		w.rep.Errors.Add(report.BucketResults, report.Entry{
			Table:   table,
			Row:     row,
			Column:  column,
			Message: fmt.Sprintf("malformed serialized value, replaced as plain text: %v", de),
			Warning: true,
		})
	}
	out, _ = w.repl.Replace(value)
	return out
}

func rowID(keys []string, vals map[string]backend.Value) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := vals[k]
		if v.Null {
			parts[i] = "NULL"
			continue
		}
		parts[i] = v.Data
	}
	return strings.Join(parts, ",")
}
