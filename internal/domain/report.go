package domain

import (
	"fmt"
	"sort"
)

// RowError is a single validation failure attributed to one spreadsheet row.
type RowError struct {
	SaleNumber int64  `json:"sale_number"`
	Message    string `json:"message"`
}

// String renders the failure the way run reports list them.
func (e RowError) String() string {
	return fmt.Sprintf("%d: %s", e.SaleNumber, e.Message)
}

// Report accumulates field-validation failures keyed by source file. It is
// append-only and scoped to one pipeline run; create a fresh Report per run.
type Report struct {
	entries map[string][]RowError
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{entries: make(map[string][]RowError)}
}

// Record appends a failure under fileID, creating the bucket on first use.
func (r *Report) Record(fileID string, saleNumber int64, message string) {
	r.entries[fileID] = append(r.entries[fileID], RowError{SaleNumber: saleNumber, Message: message})
}

// Entries returns the accumulated failures keyed by source file. The returned
// map is the report's own storage; callers must treat it as read-only.
func (r *Report) Entries() map[string][]RowError {
	return r.entries
}

// Len returns the total number of recorded failures across all files.
func (r *Report) Len() int {
	n := 0
	for _, errs := range r.entries {
		n += len(errs)
	}
	return n
}

// Files returns the source files with at least one failure, sorted.
func (r *Report) Files() []string {
	files := make([]string, 0, len(r.entries))
	for f := range r.entries {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
