package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ReconcileRequest is the request body for POST /api/reconcile.
// Records are decoded one at a time so a malformed record is skipped
// instead of failing the request.
type ReconcileRequest struct {
	Transactions []json.RawMessage `json:"transactions"`
	Receipts     []json.RawMessage `json:"receipts"`
	DryRun       bool              `json:"dry_run"`
	Workers      int               `json:"workers"` // 0 uses the configured pool size
}

// ClassifyRequest is the request body for POST /api/classify.
type ClassifyRequest struct {
	Merchant    string          `json:"merchant"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	At          *time.Time      `json:"at,omitempty"`
}

// RunListParams represents query parameters for listing runs.
type RunListParams struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// AliasListParams represents query parameters for listing aliases.
type AliasListParams struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// DefaultRunListParams returns default values for run list params.
func DefaultRunListParams() RunListParams {
	return RunListParams{
		Limit: 20,
	}
}

// DefaultAliasListParams returns default values for alias list params.
func DefaultAliasListParams() AliasListParams {
	return AliasListParams{
		Limit: 100,
	}
}
