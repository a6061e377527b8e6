package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jbweber/dragon/internal/engine"
	"github.com/jbweber/dragon/internal/record"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatRecords formats a list of VM records as a table.
func (f *TableFormatter) FormatRecords(records []*record.Record) (string, error) {
	if len(records) == 0 {
		return "No records found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tIMAGE\tCURRENT\tLATEST\tVM\tPHASE")
	}

	for _, r := range records {
		latest := r.LatestTag
		if latest == "" {
			latest = "-"
		}
		phase := string(r.Phase)
		if phase == "" {
			phase = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name, r.ImageReference, r.CurrentTag, latest, r.VMIdentifier, phase)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to format table: %w", err)
	}
	return buf.String(), nil
}

// FormatDrift formats a drift report as a table.
func (f *TableFormatter) FormatDrift(items []engine.DriftItem) (string, error) {
	if len(items) == 0 {
		return "No drift detected\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tVM\tDRIFT")
	}

	for _, item := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", item.Name, item.VMIdentifier, item.Kind)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to format table: %w", err)
	}
	return buf.String(), nil
}
