package storage

import (
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/matcher"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one persisted reconciliation run
type Run struct {
	ID           string     `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DryRun       bool       `json:"dry_run"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`

	Transactions          int   `json:"transactions"`
	Receipts              int   `json:"receipts"`
	Candidates            int   `json:"candidates"`
	AutoAccepted          int   `json:"auto_accepted"`
	NeedsReview           int   `json:"needs_review"`
	UnmatchedReceipts     int   `json:"unmatched_receipts"`
	UnmatchedTransactions int   `json:"unmatched_transactions"`
	Skipped               int   `json:"skipped"`
	Conflicts             int   `json:"conflicts"`
	Learned               int   `json:"learned"`
	DurationMS            int64 `json:"duration_ms"`
}

// AssignmentRecord is an assignment stored against its run
type AssignmentRecord struct {
	RunID string `json:"run_id"`
	matcher.Assignment
}

// SkippedRecord is a malformed input record reported by a run
type SkippedRecord struct {
	RunID    string `json:"run_id"`
	Kind     string `json:"kind"`
	RecordID string `json:"record_id,omitempty"`
	Index    int    `json:"index"`
	Reason   string `json:"reason"`
}

// RunListResult contains paginated run results
type RunListResult struct {
	Runs       []Run `json:"runs"`
	TotalCount int   `json:"total_count"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
