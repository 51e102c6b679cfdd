// Package quality validates normalized datasets against physical-range
// and business rules, detects outliers, and produces per-run quality
// reports.
package quality

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ColumnCompleteness describes null density for one column.
type ColumnCompleteness struct {
	NullCount    int     `json:"null_count"`
	NullPct      float64 `json:"null_percentage"`
	Completeness float64 `json:"completeness"`
}

// OutlierCounts holds per-method outlier counts for one column.
type OutlierCounts struct {
	IQR        int `json:"iqr_method"`
	ZScore     int `json:"zscore_method"`
	Winsorized int `json:"winsorized"`
}

// DuplicateStats counts exact full-row duplicates.
type DuplicateStats struct {
	Count int     `json:"count"`
	Pct   float64 `json:"percentage"`
}

// ProcessingStats tracks rows through normalization and validation.
type ProcessingStats struct {
	InitialRecords    int     `json:"initial_records"`
	FinalRecords      int     `json:"final_records"`
	RemovedInvalid    int     `json:"removed_invalid"`
	RemovalRatePct    float64 `json:"removal_rate_pct"`
	DroppedTimestamps int     `json:"dropped_timestamps"`
	CoercedValues     int     `json:"coerced_values"`
}

// Report is the quality report for one dataset in one pipeline run.
type Report struct {
	Dataset        string                        `json:"dataset"`
	GeneratedAt    time.Time                     `json:"generated_at"`
	TotalRecords   int                           `json:"total_records"`
	SchemaOK       bool                          `json:"schema_ok"`
	MissingColumns []string                      `json:"missing_columns,omitempty"`
	Completeness   map[string]ColumnCompleteness `json:"completeness"`
	Duplicates     DuplicateStats                `json:"duplicates"`
	Outliers       map[string]OutlierCounts      `json:"outliers"`
	Processing     ProcessingStats               `json:"processing"`
}

// RunReport aggregates the dataset reports of one pipeline execution.
type RunReport struct {
	ExecutedAt time.Time `json:"executed_at"`
	Status     string    `json:"status"`
	Datasets   []*Report `json:"datasets"`
}

// Write persists the run report as indented JSON under dir, named by
// execution timestamp, and returns the file path.
func (r *RunReport) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("quality: mkdir %s: %w", dir, err)
	}
	name := fmt.Sprintf("quality_report_%s.json", r.ExecutedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("quality: marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("quality: write report: %w", err)
	}
	return path, nil
}
