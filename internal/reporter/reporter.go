// Package reporter renders run and alteration reports as text or JSON.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ppiankov/dbreplace/internal/report"
)

// Format controls report output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. Empty selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text or json)", s)
	}
}

// Metadata holds report context.
type Metadata struct {
	Tool      string `json:"tool"`
	Version   string `json:"version,omitempty"`
	Command   string `json:"command"`
	Timestamp string `json:"timestamp"`
}

// Document is the JSON envelope around a report.
type Document struct {
	Metadata Metadata      `json:"metadata"`
	Run      *report.Run   `json:"run,omitempty"`
	Alter    *report.Alter `json:"alter,omitempty"`
}

// NewMetadata stamps metadata for command.
func NewMetadata(command, version string) Metadata {
	return Metadata{
		Tool:      "dbreplace",
		Version:   version,
		Command:   command,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// SampleWidth bounds sampled values in text output.
const SampleWidth = 120

// WriteRun outputs a replacement report in the given format.
func WriteRun(w io.Writer, meta Metadata, run *report.Run, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, Document{Metadata: meta, Run: run})
	}
	return writeRunText(w, run, newPalette(w))
}

// WriteAlter outputs an alteration report in the given format.
func WriteAlter(w io.Writer, meta Metadata, alter *report.Alter, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, Document{Metadata: meta, Alter: alter})
	}
	return writeAlterText(w, alter, newPalette(w))
}

func writeJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeRunText(w io.Writer, run *report.Run, p palette) error {
	if len(run.Table) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TABLE\tROWS\tCHANGES\tUPDATES\tTIME\t")
		for _, t := range run.Table {
			if t.Skipped {
				fmt.Fprintf(tw, "%s\t-\t-\t-\tskipped\t\n", t.Table)
				continue
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t\n",
				t.Table, t.Rows, t.Changes, t.Updates, t.Duration().Round(time.Millisecond))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	var sampled bool
	for _, t := range run.Table {
		if len(t.Samples) == 0 {
			continue
		}
		if !sampled {
			if _, err := p.header.Fprintln(w, "\nChanges"); err != nil {
				return err
			}
			sampled = true
		}
		for _, c := range t.Samples {
			if _, err := fmt.Fprintf(w, "  %s row %s, column %s\n", t.Table, c.Row, c.Column); err != nil {
				return err
			}
			if _, err := p.removed.Fprintf(w, "    - %s\n", truncate(c.From, SampleWidth)); err != nil {
				return err
			}
			if _, err := p.added.Fprintf(w, "    + %s\n", truncate(c.To, SampleWidth)); err != nil {
				return err
			}
		}
	}

	if err := writeErrors(w, &run.Errors, p); err != nil {
		return err
	}

	verb := "made"
	if run.DryRun {
		verb = "would have been made (dry run)"
	}
	_, err := p.header.Fprintf(w, "\nSummary: %d tables, %d rows, %d changes, %d updates %s in %s\n",
		run.Tables, run.Rows, run.Changes, run.Updates, verb, run.Duration().Round(time.Millisecond))
	return err
}

func writeAlterText(w io.Writer, alter *report.Alter, p palette) error {
	for _, t := range alter.Tables {
		var err error
		switch {
		case t.Converted:
			_, err = p.added.Fprintf(w, "%s: altered to %s\n", t.Table, alter.Target)
		case t.Unchanged:
			_, err = fmt.Fprintf(w, "%s: already %s\n", t.Table, alter.Target)
		default:
			_, err = p.removed.Fprintf(w, "%s: failed: %s\n", t.Table, t.Error)
		}
		if err != nil {
			return err
		}
	}
	if err := writeErrors(w, &alter.Errors, p); err != nil {
		return err
	}
	_, err := p.header.Fprintf(w, "\nSummary: %d of %d tables altered (%s %s)\n",
		alter.Converted(), len(alter.Tables), alter.Mode, alter.Target)
	return err
}

func writeErrors(w io.Writer, errs *report.Errors, p palette) error {
	if errs.Len() == 0 {
		return nil
	}
	if _, err := p.header.Fprintln(w, "\nErrors"); err != nil {
		return err
	}
	for _, b := range report.Buckets {
		for _, e := range errs.Get(b) {
			label := string(b)
			if e.Warning {
				label += " warning"
			}
			if _, err := p.errLabel.Fprintf(w, "  [%s] ", label); err != nil {
				return err
			}
			if _, err := fmt.Fprintln(w, location(e)+e.Message); err != nil {
				return err
			}
		}
	}
	return nil
}

func location(e report.Entry) string {
	loc := e.Table
	if e.Row != "" {
		loc += " row " + e.Row
	}
	if e.Column != "" {
		loc += " column " + e.Column
	}
	if loc == "" {
		return ""
	}
	return loc + ": "
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
