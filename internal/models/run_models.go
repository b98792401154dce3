package models

import "time"

// RunReport summarizes one reconciliation run. It is the sole surface for
// partial failures: a run with failed leaves or aborted adapters still
// completes, flagged with CompletedWithWarnings.
type RunReport struct {
	StartedAt             time.Time `json:"started_at"`
	LeavesProcessed       int       `json:"leaves_processed"`
	LeavesFailed          []string  `json:"leaves_failed"`
	AdaptersAborted       []string  `json:"adapters_aborted,omitempty"`
	SecuritiesConfirmed   int       `json:"securities_confirmed"`
	SecuritiesDemoted     int       `json:"securities_demoted"`
	WriteFailures         []string  `json:"write_failures,omitempty"`
	DurationMs            int64     `json:"duration_ms"`
	CompletedWithWarnings bool      `json:"completed_with_warnings"`
}
