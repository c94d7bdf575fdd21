package reconcile

import (
	"strings"
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/categorizer"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/records"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/validator"
)

// apply writes match and enrichment fields onto copies of the records
func (e *Engine) apply(valid *validator.BatchValidation, resolution matcher.Resolution, norm *merchant.Normalizer) *Result {
	receipts := make([]records.Receipt, len(valid.Receipts))
	copy(receipts, valid.Receipts)
	transactions := make([]records.Transaction, len(valid.Transactions))
	copy(transactions, valid.Transactions)

	receiptIdx := make(map[string]int, len(receipts))
	for i, r := range receipts {
		receiptIdx[r.ID] = i
	}
	txnIdx := make(map[string]int, len(transactions))
	for i, t := range transactions {
		txnIdx[t.ID] = i
	}

	result := &Result{
		Assignments:           make([]matcher.Assignment, 0, len(resolution.Assignments)),
		UnmatchedReceipts:     resolution.UnmatchedReceipts,
		UnmatchedTransactions: resolution.UnmatchedTransactions,
		Summary: Summary{
			Transactions:          len(transactions),
			Receipts:              len(receipts),
			UnmatchedReceipts:     len(resolution.UnmatchedReceipts),
			UnmatchedTransactions: len(resolution.UnmatchedTransactions),
			Skipped:               len(valid.Skipped),
			ByStrategy:            map[string]int{},
		},
	}

	for _, a := range resolution.Assignments {
		r := &receipts[receiptIdx[a.ReceiptID]]
		t := &transactions[txnIdx[a.TransactionID]]

		a.CanonicalMerchant = canonicalName(*r, *t, norm)
		class := e.classify(categorizer.Input{
			Merchant:    a.CanonicalMerchant,
			Description: r.RawMerchantText + " " + t.RawDescription,
			Amount:      r.Amount,
			At:          firstTime(r.Timestamp, t.Timestamp),
		})
		a.Category, a.BusinessType = class.Category, class.BusinessType
		if class.Uncategorized() && t.Category != "" {
			a.Category = t.Category
		}

		txnID, receiptID := t.ID, r.ID
		r.MatchedTransactionID = &txnID
		r.MatchConfidence = a.Confidence
		r.CanonicalMerchant = a.CanonicalMerchant
		r.Category = a.Category
		r.BusinessType = a.BusinessType

		t.MatchedReceiptID = &receiptID
		t.MatchConfidence = a.Confidence
		t.MatchStrategy = string(a.Strategy)
		t.MatchTier = string(a.Tier)
		t.Category = a.Category
		t.BusinessType = a.BusinessType

		switch a.Tier {
		case matcher.TierAutoAccept:
			result.Summary.AutoAccepted++
		case matcher.TierNeedsReview:
			result.Summary.NeedsReview++
		}
		result.Summary.ByStrategy[string(a.Strategy)]++
		result.Assignments = append(result.Assignments, a)
	}

	// Unmatched records are still enriched from their own text
	for _, id := range resolution.UnmatchedReceipts {
		r := &receipts[receiptIdx[id]]
		name := norm.Normalize(r.RawMerchantText)
		r.CanonicalMerchant = merchantName(name, r.RawMerchantText)
		class := e.classify(categorizer.Input{
			Merchant:    r.CanonicalMerchant,
			Description: r.RawMerchantText,
			Amount:      r.Amount,
			At:          r.Timestamp,
		})
		r.Category, r.BusinessType = class.Category, class.BusinessType
	}
	for _, id := range resolution.UnmatchedTransactions {
		t := &transactions[txnIdx[id]]
		name := norm.Normalize(t.RawDescription)
		class := e.classify(categorizer.Input{
			Merchant:    merchantName(name, t.RawDescription),
			Description: t.RawDescription,
			Amount:      t.Amount,
			At:          t.Timestamp,
		})
		if class.Uncategorized() && t.Category != "" {
			continue
		}
		t.Category, t.BusinessType = class.Category, class.BusinessType
	}

	result.Receipts = receipts
	result.Transactions = transactions
	return result
}

func (e *Engine) classify(in categorizer.Input) categorizer.Classification {
	if e.classifier == nil {
		return categorizer.Classification{
			Category:     categorizer.Uncategorized,
			BusinessType: categorizer.BusinessTypePersonal,
		}
	}
	return e.classifier.Classify(in)
}

// canonicalName prefers a learned name from either side, then a cleaned-up
// spelling of the bank description, then of the receipt text.
func canonicalName(r records.Receipt, t records.Transaction, norm *merchant.Normalizer) string {
	if rn := norm.Normalize(r.RawMerchantText); rn.Learned() {
		return rn.Name
	}
	if tn := norm.Normalize(t.RawDescription); tn.Learned() {
		return tn.Name
	}
	if name := merchant.DisplayName(t.RawDescription); name != "" {
		return name
	}
	return merchant.DisplayName(r.RawMerchantText)
}

func merchantName(res merchant.Result, raw string) string {
	if res.Learned() {
		return res.Name
	}
	if name := merchant.DisplayName(raw); name != "" {
		return name
	}
	return strings.TrimSpace(raw)
}

// observations are the alias updates for this run: auto-accepted,
// non-force assignments only
func observations(result *Result) []merchant.Observation {
	receipts := make(map[string]records.Receipt, len(result.Receipts))
	for _, r := range result.Receipts {
		receipts[r.ID] = r
	}

	var obs []merchant.Observation
	for _, a := range result.Assignments {
		if !a.AutoAccepted() || a.Strategy == matcher.StrategyForce {
			continue
		}
		r := receipts[a.ReceiptID]
		obs = append(obs, merchant.Observation{
			RawText:      r.RawMerchantText,
			Canonical:    a.CanonicalMerchant,
			BusinessType: a.BusinessType,
			Amount:       r.Amount,
			Date:         r.Date,
		})
	}
	return obs
}

func firstTime(times ...*time.Time) *time.Time {
	for _, t := range times {
		if t != nil {
			return t
		}
	}
	return nil
}
