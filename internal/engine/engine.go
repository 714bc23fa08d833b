// Package engine delegates report generation to an external interpreter.
//
// Each call renders a small driver script, runs it in a child process and
// reads the outcome from tagged stdout lines:
//
//	SUCCESS:<output file name>
//	ERROR:<message>
//	YEARS:[2019, 2020, 2021]
//
// A SUCCESS line is authoritative over the exit status.
package engine

import (
	"context"
	"time"
)

// ReportGenerator produces report files for a dataset and year.
type ReportGenerator interface {
	// Generate runs one generation. A non-nil error means the engine could
	// not be run at all; engine-reported failures come back as a Result
	// with Success false.
	Generate(ctx context.Context, datasetID, year string) (Result, error)
	// AvailableYears lists the years present in the dataset's sources.
	AvailableYears(ctx context.Context, datasetID string) ([]int, error)
}

// Result is the outcome of one generation.
type Result struct {
	Success  bool          `json:"success"`
	Filename string        `json:"filename,omitempty"`
	Error    string        `json:"error,omitempty"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	Logs     []string      `json:"-"`
}
