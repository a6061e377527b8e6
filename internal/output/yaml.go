package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/dragon/internal/engine"
	"github.com/jbweber/dragon/internal/record"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatRecords formats a list of VM records as YAML.
func (f *YAMLFormatter) FormatRecords(records []*record.Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	data, err := yaml.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to marshal records to YAML: %w", err)
	}
	return string(data), nil
}

// FormatDrift formats a drift report as YAML.
func (f *YAMLFormatter) FormatDrift(items []engine.DriftItem) (string, error) {
	if len(items) == 0 {
		return "", nil
	}

	data, err := yaml.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal drift report to YAML: %w", err)
	}
	return string(data), nil
}
