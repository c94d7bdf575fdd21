package dto

import (
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/records"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/validator"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status       string `json:"status"`
	Timestamp    string `json:"timestamp"`
	RulesVersion string `json:"rules_version,omitempty"`
	Aliases      *int   `json:"aliases,omitempty"`
}

// ReconcileResponse is returned after a batch has been reconciled.
// Transactions and receipts are the updated copies the caller writes back.
type ReconcileResponse struct {
	RunID                 string                `json:"run_id"`
	DryRun                bool                  `json:"dry_run"`
	DurationMS            int64                 `json:"duration_ms"`
	Summary               reconcile.Summary     `json:"summary"`
	Assignments           []matcher.Assignment  `json:"assignments"`
	UnmatchedReceipts     []string              `json:"unmatched_receipts"`
	UnmatchedTransactions []string              `json:"unmatched_transactions"`
	Skipped               []validator.Skipped   `json:"skipped"`
	Transactions          []records.Transaction `json:"transactions"`
	Receipts              []records.Receipt     `json:"receipts"`
}

// RunResponse represents a stored run in API responses.
type RunResponse struct {
	ID                    string `json:"id"`
	StartedAt             string `json:"started_at"`
	CompletedAt           string `json:"completed_at,omitempty"`
	DryRun                bool   `json:"dry_run"`
	Status                string `json:"status"`
	ErrorMessage          string `json:"error_message,omitempty"`
	Transactions          int    `json:"transactions"`
	Receipts              int    `json:"receipts"`
	Candidates            int    `json:"candidates"`
	AutoAccepted          int    `json:"auto_accepted"`
	NeedsReview           int    `json:"needs_review"`
	UnmatchedReceipts     int    `json:"unmatched_receipts"`
	UnmatchedTransactions int    `json:"unmatched_transactions"`
	Skipped               int    `json:"skipped"`
	Conflicts             int    `json:"conflicts"`
	Learned               int    `json:"learned"`
	DurationMS            int64  `json:"duration_ms"`
}

// RunListResponse is returned when listing runs.
type RunListResponse struct {
	Runs       []RunResponse `json:"runs"`
	TotalCount int           `json:"total_count"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
}

// SkippedResponse is a malformed record reported by a run.
type SkippedResponse struct {
	Kind     string `json:"kind"`
	RecordID string `json:"record_id,omitempty"`
	Index    int    `json:"index"`
	Reason   string `json:"reason"`
}

// RunDetailResponse is a run with everything it decided.
type RunDetailResponse struct {
	RunResponse
	Assignments []matcher.Assignment `json:"assignments"`
	SkippedRows []SkippedResponse    `json:"skipped_records"`
}

// AliasListResponse is returned when listing learned aliases.
type AliasListResponse struct {
	Aliases    []merchant.MerchantAlias `json:"aliases"`
	TotalCount int                      `json:"total_count"`
	Limit      int                      `json:"limit"`
	Offset     int                      `json:"offset"`
}

// NormalizeResponse is returned by the normalize endpoint.
type NormalizeResponse struct {
	Query string `json:"query"`
	merchant.Result
}

// ClassifyResponse is returned by the classify endpoint.
type ClassifyResponse struct {
	Category     string   `json:"category"`
	BusinessType string   `json:"business_type"`
	Confidence   float64  `json:"confidence"`
	MatchedRules []string `json:"matched_rules"`
	RulesVersion string   `json:"rules_version"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
