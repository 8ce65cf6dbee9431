package domain

import (
	"strings"
	"time"
)

// SyncStrategy decides how target names derive from source names.
type SyncStrategy string

// Sync strategies.
const (
	StrategyMirror        SyncStrategy = "mirror"
	StrategyCustomCatalog SyncStrategy = "custom_catalog"
	StrategyCustomSchema  SyncStrategy = "custom_schema"
)

// ParseSyncStrategy validates a strategy name; empty means mirror.
func ParseSyncStrategy(s string) (SyncStrategy, error) {
	switch st := SyncStrategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StrategyMirror, nil
	case StrategyMirror, StrategyCustomCatalog, StrategyCustomSchema:
		return st, nil
	default:
		return "", ErrValidation("unknown target sync strategy %q", s)
	}
}

// Source configuration keys understood by the naming strategies.
const (
	ConfigTargetCatalog = "target_catalog"
	ConfigTargetSchema  = "target_schema"
)

// SyncDefinition pairs a source identifier with the providers to sync between.
type SyncDefinition struct {
	Source              string            `yaml:"source" json:"source"`
	SourceProvider      string            `yaml:"source_provider" json:"source_provider"`
	TargetProvider      string            `yaml:"target_provider" json:"target_provider"`
	SourceConfiguration map[string]string `yaml:"source_configuration,omitempty" json:"source_configuration,omitempty"`
}

// SyncStatus is the outcome of a single work item.
type SyncStatus string

// Sync statuses.
const (
	StatusConverged SyncStatus = "converged"
	StatusSkipped   SyncStatus = "skipped"
	StatusFailed    SyncStatus = "failed"
)

// SyncResult reports the outcome for one source object.
type SyncResult struct {
	SourceName  string        `json:"source_name"`
	Target      string        `json:"target,omitempty"`
	Status      SyncStatus    `json:"status"`
	Action      Action        `json:"action,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

// SyncReport is the ordered result list of one run.
type SyncReport struct {
	RunID    string       `json:"run_id,omitempty"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Results  []SyncResult `json:"results"`
}

// Counts returns the number of results per status.
func (r *SyncReport) Counts() (converged, skipped, failed int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusConverged:
			converged++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return converged, skipped, failed
}

// HasFailures reports whether any result failed. The CLI exits non-zero
// exactly when this is true.
func (r *SyncReport) HasFailures() bool {
	_, _, failed := r.Counts()
	return failed > 0
}

// RunStatus summarizes a recorded run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is a persisted run summary.
type RunRecord struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Converged  int        `json:"converged"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
}
