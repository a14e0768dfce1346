package engine

import (
	"fmt"
	"time"
)

// ToolStatus is the aggregated outcome for one tool within a sync.
type ToolStatus string

const (
	// StatusSuccess means every mapped file deployed (or was counted in
	// dry-run) without error.
	StatusSuccess ToolStatus = "success"
	// StatusSkipped means the tool was not installed or had no mappings.
	StatusSkipped ToolStatus = "skipped"
	// StatusPartial means at least one file deployed and at least one
	// error occurred.
	StatusPartial ToolStatus = "partial"
	// StatusFailed means no files deployed and at least one error
	// occurred.
	StatusFailed ToolStatus = "failed"
)

// ToolSyncResult is the per-tool line of a sync report.
type ToolSyncResult struct {
	Tool          string
	Status        ToolStatus
	FilesDeployed int
	FilesSkipped  int
	// Reason explains skipped and failed statuses.
	Reason string
}

// SyncError is one accumulated error. Recoverable errors degrade the
// report; they are never thrown.
type SyncError struct {
	Tool        string
	Path        string
	Recoverable bool
	Err         error
}

// Error formats the failure with its tool and path context.
func (e SyncError) Error() string {
	switch {
	case e.Tool != "" && e.Path != "":
		return fmt.Sprintf("%s: %s: %v", e.Tool, e.Path, e.Err)
	case e.Tool != "":
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	default:
		return e.Err.Error()
	}
}

// Unwrap returns the underlying error.
func (e SyncError) Unwrap() error {
	return e.Err
}

// SyncReport is the structured outcome of one sync call. Success is always
// derived from the constituents via Finalize, never set independently.
type SyncReport struct {
	Success    bool
	DryRun     bool
	StartTime  time.Time
	EndTime    time.Time
	Commit     string
	FromCache  bool
	TotalFiles int
	Results    []ToolSyncResult
	Errors     []SyncError
}

// NewSyncReport starts a report for a sync beginning now.
func NewSyncReport(dryRun bool) *SyncReport {
	return &SyncReport{DryRun: dryRun, StartTime: time.Now()}
}

// AddError accumulates an error.
func (r *SyncReport) AddError(err SyncError) {
	r.Errors = append(r.Errors, err)
}

// Finalize stamps the end time and derives Success: true iff there are
// zero errors and every tool result is success or skipped.
func (r *SyncReport) Finalize() {
	r.EndTime = time.Now()

	total := 0
	ok := len(r.Errors) == 0
	for _, res := range r.Results {
		total += res.FilesDeployed + res.FilesSkipped
		if res.Status == StatusFailed || res.Status == StatusPartial {
			ok = false
		}
	}
	r.TotalFiles = total
	r.Success = ok
}

// toolStatus derives the per-tool status from its aggregation: partial iff
// at least one file deployed and at least one error, failed iff zero files
// deployed and at least one error.
func toolStatus(deployed int, errors int) ToolStatus {
	switch {
	case errors == 0:
		return StatusSuccess
	case deployed > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}
