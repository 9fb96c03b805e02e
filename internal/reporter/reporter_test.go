package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/dbreplace/internal/report"
)

func testRun(dryRun bool) *report.Run {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := report.NewRun(dryRun, start)

	opts := r.StartTable("wp_options", start)
	opts.Rows, opts.Changes, opts.Updates = 4, 2, 2
	opts.AddSample(report.Change{
		Row:    "2",
		Column: "option_value",
		From:   `a:1:{s:3:"url";s:18:"http://old.example";}`,
		To:     `a:1:{s:3:"url";s:19:"https://new.example";}`,
	}, 30)
	r.FinishTable(opts, start.Add(15*time.Millisecond))

	log := r.StartTable("wp_log", start)
	log.Skipped = true
	r.FinishTable(log, start)
	r.Errors.Add(report.BucketResults, report.Entry{Table: "wp_log", Message: "no primary key, table skipped"})

	r.Finish(start.Add(time.Second))
	return r
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "text": FormatText, "json": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("sarif")
	assert.Error(t, err)
}

func TestWriteRun_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, NewMetadata("replace", "test"), testRun(false), FormatText))

	out := buf.String()
	assert.Contains(t, out, "TABLE")
	assert.Contains(t, out, "wp_options")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "wp_options row 2, column option_value")
	assert.Contains(t, out, `- a:1:{s:3:"url";s:18:"http://old.example";}`)
	assert.Contains(t, out, `+ a:1:{s:3:"url";s:19:"https://new.example";}`)
	assert.Contains(t, out, "[results] wp_log: no primary key, table skipped")
	assert.Contains(t, out, "Summary: 1 tables, 4 rows, 2 changes, 2 updates made in 1s")
}

func TestWriteRun_TextDryRun(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, NewMetadata("replace", "test"), testRun(true), FormatText))
	assert.Contains(t, buf.String(), "would have been made (dry run)")
}

func TestWriteRun_NoColor(t *testing.T) {
	var buf bytes.Buffer
	// bytes.Buffer is not a TTY, so color is auto-disabled
	require.NoError(t, WriteRun(&buf, NewMetadata("replace", "test"), testRun(false), FormatText))
	assert.NotContains(t, buf.String(), "\033[")
}

func TestWriteRun_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, NewMetadata("replace", "1.2.3"), testRun(false), FormatJSON))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "dbreplace", doc.Metadata.Tool)
	assert.Equal(t, "replace", doc.Metadata.Command)
	assert.Equal(t, "1.2.3", doc.Metadata.Version)
	require.NotNil(t, doc.Run)
	assert.Nil(t, doc.Alter)
	assert.Equal(t, int64(2), doc.Run.Updates)
	require.Len(t, doc.Run.Table, 2)
	assert.Len(t, doc.Run.Table[0].Samples, 1)
	assert.Len(t, doc.Run.Errors.Results, 1)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	errs, ok := raw["run"]["errors"].(map[string]any)
	require.True(t, ok)
	for _, b := range report.Buckets {
		assert.Contains(t, errs, string(b))
	}
}

func TestWriteAlter_Text(t *testing.T) {
	a := &report.Alter{
		Mode:   report.AlterEngine,
		Target: "InnoDB",
		Tables: []report.AlterResult{
			{Table: "wp_options", Unchanged: true},
			{Table: "wp_legacy", Converted: true},
			{Table: "wp_big", Error: "lock wait timeout"},
		},
	}
	a.Errors.Add(report.BucketResults, report.Entry{Table: "wp_big", Message: "alter failed: lock wait timeout"})

	var buf bytes.Buffer
	require.NoError(t, WriteAlter(&buf, NewMetadata("alter", "test"), a, FormatText))

	out := buf.String()
	assert.Contains(t, out, "wp_options: already InnoDB")
	assert.Contains(t, out, "wp_legacy: altered to InnoDB")
	assert.Contains(t, out, "wp_big: failed: lock wait timeout")
	assert.Contains(t, out, "Summary: 1 of 3 tables altered (engine InnoDB)")
}

func TestWriteAlter_JSON(t *testing.T) {
	a := &report.Alter{Mode: report.AlterCollation, Target: "utf8mb4_unicode_ci",
		Tables: []report.AlterResult{{Table: "wp_posts", Converted: true}}}

	var buf bytes.Buffer
	require.NoError(t, WriteAlter(&buf, NewMetadata("alter", "test"), a, FormatJSON))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.NotNil(t, doc.Alter)
	assert.Nil(t, doc.Run)
	assert.Equal(t, report.AlterCollation, doc.Alter.Mode)
	assert.True(t, doc.Alter.Tables[0].Converted)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "日本...", truncate("日本語です", 2))
	long := strings.Repeat("x", SampleWidth+5)
	assert.Equal(t, SampleWidth+3, len(truncate(long, SampleWidth)))
}
