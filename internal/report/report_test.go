package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_AddAndGet(t *testing.T) {
	var e Errors
	e.Add(BucketSearch, Entry{Message: "empty search"})
	e.Add(BucketDB, Entry{Message: "gone"})
	e.Add(BucketTables, Entry{Table: "a", Message: "denied"})
	e.Add(BucketResults, Entry{Table: "b", Row: "1", Column: "c", Message: "update failed"})
	e.Add(Bucket("unknown"), Entry{Message: "lands in results"})

	for _, b := range Buckets {
		assert.NotEmpty(t, e.Get(b), "bucket %s", b)
	}
	assert.Len(t, e.Results, 2)
	assert.Equal(t, 5, e.Len())
}

func TestTableReport_AddSample(t *testing.T) {
	tr := &TableReport{Table: "wp_options"}
	for i := 0; i < 5; i++ {
		tr.AddSample(Change{Row: "1", Column: "option_value"}, 3)
	}
	assert.Len(t, tr.Samples, 3)

	tr = &TableReport{}
	assert.False(t, tr.AddSample(Change{}, 0))
	assert.Empty(t, tr.Samples)
}

func TestRun_FinishTable(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewRun(false, start)

	a := r.StartTable("a", start)
	a.Rows, a.Changes, a.Updates = 10, 4, 3
	r.FinishTable(a, start.Add(time.Second))

	b := r.StartTable("b", start)
	b.Skipped = true
	b.Rows = 99
	r.FinishTable(b, start.Add(2*time.Second))

	r.Finish(start.Add(3 * time.Second))

	assert.Equal(t, int64(1), r.Tables)
	assert.Equal(t, int64(10), r.Rows)
	assert.Equal(t, int64(4), r.Changes)
	assert.Equal(t, int64(3), r.Updates)
	assert.Equal(t, time.Second, a.Duration())
	assert.Equal(t, 3*time.Second, r.Duration())
	require.Len(t, r.Table, 2)
	assert.Same(t, b, r.Lookup("b"))
	assert.Nil(t, r.Lookup("missing"))
}

func TestAlter_Converted(t *testing.T) {
	a := &Alter{Mode: AlterEngine, Target: "InnoDB", Tables: []AlterResult{
		{Table: "a", Converted: true},
		{Table: "b", Unchanged: true},
		{Table: "c", Error: "lock wait timeout"},
		{Table: "d", Converted: true},
	}}
	assert.Equal(t, 2, a.Converted())
}

func TestErrors_Failures(t *testing.T) {
	var e Errors
	e.Add(BucketResults, Entry{Table: "a", Message: "update failed"})
	e.Add(BucketResults, Entry{Table: "a", Message: "malformed", Warning: true})
	e.Add(BucketDB, Entry{Message: "gone"})
	assert.Equal(t, 1, e.Failures())
	assert.Equal(t, 3, e.Len())
}

func TestExitCode(t *testing.T) {
	withResults := Errors{Results: []Entry{{Table: "a", Message: "no primary key"}}}
	warningsOnly := Errors{Results: []Entry{{Table: "a", Row: "1", Message: "malformed serialized value", Warning: true}}}
	tests := []struct {
		name   string
		errs   Errors
		dryRun bool
		want   int
	}{
		{"clean", Errors{}, false, 0},
		{"results on live run", withResults, false, 2},
		{"results on dry run", withResults, true, 0},
		{"tables only", Errors{Tables: []Entry{{Message: "x"}}}, false, 0},
		{"warnings on live run", warningsOnly, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.errs, tt.dryRun))
		})
	}
}
