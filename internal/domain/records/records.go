// Package records defines the transaction and receipt records exchanged with
// the bank-feed and receipt-store collaborators.
//
// Only the match fields (matched id, confidence, strategy, tier) and the
// enrichment fields (canonical merchant, category, business type) are ever
// written by the reconciler. Financial and extraction fields are read-only.
package records

import (
	"time"

	"github.com/shopspring/decimal"
)

// Business types assigned by the classifier
const (
	BusinessTypePersonal = "personal"
	BusinessTypeBusiness = "business"
)

// Transaction is a posted bank transaction
type Transaction struct {
	ID             string          `json:"id"`
	PostedDate     time.Time       `json:"posted_date"`
	Timestamp      *time.Time      `json:"timestamp,omitempty"` // Set only when the feed carries a time of day
	Amount         decimal.Decimal `json:"amount"`              // Signed; expenses are usually negative
	RawDescription string          `json:"raw_description"`
	AccountID      string          `json:"account_id"`

	// Owned by the reconciler
	MatchedReceiptID *string `json:"matched_receipt_id,omitempty"`
	MatchConfidence  float64 `json:"match_confidence"`
	MatchStrategy    string  `json:"match_strategy,omitempty"`
	MatchTier        string  `json:"match_tier,omitempty"`
	Category         string  `json:"category,omitempty"`
	BusinessType     string  `json:"business_type,omitempty"`
}

// IsMatched reports whether the transaction already has a receipt
func (t Transaction) IsMatched() bool {
	return t.MatchedReceiptID != nil && *t.MatchedReceiptID != ""
}

// Magnitude returns the absolute amount used for comparisons
func (t Transaction) Magnitude() decimal.Decimal {
	return t.Amount.Abs()
}

// Receipt is a receipt produced by an extraction collaborator
type Receipt struct {
	ID                   string          `json:"id"`
	RawMerchantText      string          `json:"raw_merchant_text"`
	Amount               decimal.Decimal `json:"amount"`
	Date                 time.Time       `json:"date"`
	Timestamp            *time.Time      `json:"timestamp,omitempty"`
	ExtractionConfidence float64         `json:"extraction_confidence"`
	SourceKind           string          `json:"source_kind"` // "email", "photo", "pdf", ...

	// Owned by the reconciler
	MatchedTransactionID *string `json:"matched_transaction_id,omitempty"`
	MatchConfidence      float64 `json:"match_confidence"`
	CanonicalMerchant    string  `json:"canonical_merchant,omitempty"`
	Category             string  `json:"category,omitempty"`
	BusinessType         string  `json:"business_type,omitempty"`
}

// IsMatched reports whether the receipt already has a transaction
func (r Receipt) IsMatched() bool {
	return r.MatchedTransactionID != nil && *r.MatchedTransactionID != ""
}

// Magnitude returns the absolute amount used for comparisons
func (r Receipt) Magnitude() decimal.Decimal {
	return r.Amount.Abs()
}

// DaysBetween returns the absolute number of calendar days between two dates.
// Only the date part (in UTC) is considered.
func DaysBetween(a, b time.Time) int {
	da := civilDate(a)
	db := civilDate(b)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
