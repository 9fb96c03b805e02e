// Package report holds the statistics and categorized errors produced by a
// replacement run or a schema alteration.
package report

import "time"

// Bucket categorizes a recorded problem.
type Bucket string

const (
	BucketSearch  Bucket = "search"  // job configuration
	BucketDB      Bucket = "db"      // connection and query failures
	BucketTables  Bucket = "tables"  // schema access failures
	BucketResults Bucket = "results" // anything met during the walk or alter
)

// Buckets lists all buckets in display order.
var Buckets = []Bucket{BucketSearch, BucketDB, BucketTables, BucketResults}

// Entry is a single recorded problem. A warning is reported but does not
// fail the run.
type Entry struct {
	Table   string `json:"table,omitempty"`
	Row     string `json:"row,omitempty"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
	Warning bool   `json:"warning,omitempty"`
}

// Errors holds append-only entry lists per bucket.
type Errors struct {
	Search  []Entry `json:"search"`
	DB      []Entry `json:"db"`
	Tables  []Entry `json:"tables"`
	Results []Entry `json:"results"`
}

// Add appends e to bucket b.
func (e *Errors) Add(b Bucket, entry Entry) {
	switch b {
	case BucketSearch:
		e.Search = append(e.Search, entry)
	case BucketDB:
		e.DB = append(e.DB, entry)
	case BucketTables:
		e.Tables = append(e.Tables, entry)
	default:
		e.Results = append(e.Results, entry)
	}
}

// Get returns the entries of bucket b.
func (e *Errors) Get(b Bucket) []Entry {
	switch b {
	case BucketSearch:
		return e.Search
	case BucketDB:
		return e.DB
	case BucketTables:
		return e.Tables
	default:
		return e.Results
	}
}

// Len returns the total number of entries across buckets.
func (e *Errors) Len() int {
	return len(e.Search) + len(e.DB) + len(e.Tables) + len(e.Results)
}

// Failures returns the number of results entries that are not warnings.
func (e *Errors) Failures() int {
	n := 0
	for _, r := range e.Results {
		if !r.Warning {
			n++
		}
	}
	return n
}

// Change is one sampled value rewrite.
type Change struct {
	Row    string `json:"row"`
	Column string `json:"column"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// TableReport holds the statistics of one table.
type TableReport struct {
	Table           string    `json:"table"`
	Rows            int64     `json:"rows"`
	Changes         int64     `json:"changes"`
	Updates         int64     `json:"updates"`
	DecodeFallbacks int64     `json:"decodeFallbacks"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Samples         []Change  `json:"samples,omitempty"`
	Skipped         bool      `json:"skipped,omitempty"`
}

// AddSample records c unless the table already holds limit samples.
// A limit of zero or less disables sampling.
func (t *TableReport) AddSample(c Change, limit int) bool {
	if limit <= 0 || len(t.Samples) >= limit {
		return false
	}
	t.Samples = append(t.Samples, c)
	return true
}

// Duration returns the time spent on the table.
func (t *TableReport) Duration() time.Duration {
	if t.End.IsZero() {
		return 0
	}
	return t.End.Sub(t.Start)
}

// Run is the report of one replacement invocation.
type Run struct {
	DryRun  bool           `json:"dryRun"`
	Tables  int64          `json:"tables"`
	Rows    int64          `json:"rows"`
	Changes int64          `json:"changes"`
	Updates int64          `json:"updates"`
	Start   time.Time      `json:"start"`
	End     time.Time      `json:"end"`
	Table   []*TableReport `json:"tableReports"`
	Errors  Errors         `json:"errors"`
}

// NewRun returns an empty report started at now.
func NewRun(dryRun bool, now time.Time) *Run {
	return &Run{DryRun: dryRun, Start: now}
}

// StartTable appends and returns a report for table.
func (r *Run) StartTable(table string, now time.Time) *TableReport {
	t := &TableReport{Table: table, Start: now}
	r.Table = append(r.Table, t)
	return t
}

// FinishTable closes t and folds its counters into the run totals. Skipped
// tables do not count as processed.
func (r *Run) FinishTable(t *TableReport, now time.Time) {
	t.End = now
	if t.Skipped {
		return
	}
	r.Tables++
	r.Rows += t.Rows
	r.Changes += t.Changes
	r.Updates += t.Updates
}

// Finish stamps the end time.
func (r *Run) Finish(now time.Time) {
	r.End = now
}

// Duration returns the wall time of the run.
func (r *Run) Duration() time.Duration {
	if r.End.IsZero() {
		return 0
	}
	return r.End.Sub(r.Start)
}

// Lookup returns the report for table, or nil.
func (r *Run) Lookup(table string) *TableReport {
	for _, t := range r.Table {
		if t.Table == table {
			return t
		}
	}
	return nil
}

// AlterMode selects what a schema alteration changes.
type AlterMode string

const (
	AlterEngine    AlterMode = "engine"
	AlterCollation AlterMode = "collation"
)

// AlterResult is the outcome for one table.
type AlterResult struct {
	Table     string `json:"table"`
	Converted bool   `json:"converted"`
	// Unchanged is set when the table already had the target value.
	Unchanged bool   `json:"unchanged,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Alter is the report of one schema alteration.
type Alter struct {
	Mode   AlterMode     `json:"mode"`
	Target string        `json:"target"`
	Tables []AlterResult `json:"tables"`
	Start  time.Time     `json:"start"`
	End    time.Time     `json:"end"`
	Errors Errors        `json:"errors"`
}

// Converted returns the number of tables altered.
func (a *Alter) Converted() int {
	n := 0
	for _, t := range a.Tables {
		if t.Converted {
			n++
		}
	}
	return n
}

// ExitCode maps a finished report to a CLI exit code: 2 when a live run
// recorded results-bucket failures, 0 otherwise. Warnings never fail a run.
func ExitCode(errs Errors, dryRun bool) int {
	if !dryRun && errs.Failures() > 0 {
		return 2
	}
	return 0
}
