package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/dragon/internal/engine"
	"github.com/jbweber/dragon/internal/record"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

// FormatRecords formats a list of VM records as a JSON array.
func (f *JSONFormatter) FormatRecords(records []*record.Record) (string, error) {
	if len(records) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal records to JSON: %w", err)
	}
	return string(data) + "\n", nil
}

// FormatDrift formats a drift report as a JSON array.
func (f *JSONFormatter) FormatDrift(items []engine.DriftItem) (string, error) {
	if len(items) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal drift report to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
