package models

import "time"

// RunSummary reports what a single pipeline run computed and what it had to
// skip, so upstream data-health reporting can act on the counts.
type RunSummary struct {
	SnapshotDate      time.Time     `json:"snapshot_date"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	PairsComputed     int           `json:"pairs_computed"`
	InsufficientPairs int           `json:"insufficient_pairs"`
	BatchesScored     int           `json:"batches_scored"`
	ActionsProposed   int           `json:"actions_proposed"`
	SkippedRows       int           `json:"skipped_rows"`
	IntegrityWarnings int           `json:"integrity_warnings"`
}
