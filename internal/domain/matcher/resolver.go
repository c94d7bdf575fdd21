package matcher

import (
	"sort"
)

// Resolution is the conflict-free outcome for a batch
type Resolution struct {
	Assignments           []Assignment `json:"assignments"`
	UnmatchedReceipts     []string     `json:"unmatched_receipts"`
	UnmatchedTransactions []string     `json:"unmatched_transactions"`
	Conflicts             int          `json:"conflicts"` // candidates lost to a better-ranked pairing
	Discarded             int          `json:"discarded"` // candidates below the review threshold
}

// Resolver performs greedy maximum-weight bipartite matching
type Resolver struct {
	config Config
}

// NewResolver creates a resolver
func NewResolver(config Config) *Resolver {
	return &Resolver{config: config}
}

// Resolve assigns candidates best-first, taking a candidate only when both
// its receipt and its transaction are still free. receiptIDs and
// transactionIDs are the batch universe used to report what stayed unmatched,
// in the order given.
func (r *Resolver) Resolve(candidates []Candidate, receiptIDs, transactionIDs []string) Resolution {
	res := Resolution{
		Assignments:           []Assignment{},
		UnmatchedReceipts:     []string{},
		UnmatchedTransactions: []string{},
	}

	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.FinalScore < r.config.ReviewThreshold {
			res.Discarded++
			continue
		}
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranksBefore(ranked[i], ranked[j])
	})

	receiptTaken := make(map[string]string) // receipt id -> transaction id
	txnTaken := make(map[string]bool)
	for _, c := range ranked {
		assigned, taken := receiptTaken[c.ReceiptID]
		if taken || txnTaken[c.TransactionID] {
			// Same pair proposed again by a lower-priority pass is not a conflict
			if assigned != c.TransactionID {
				res.Conflicts++
			}
			continue
		}
		receiptTaken[c.ReceiptID] = c.TransactionID
		txnTaken[c.TransactionID] = true
		res.Assignments = append(res.Assignments, Assignment{
			ReceiptID:     c.ReceiptID,
			TransactionID: c.TransactionID,
			Confidence:    c.FinalScore,
			Strategy:      c.Strategy,
			Tier:          c.Tier,
			DaysDiff:      c.Evidence.DaysDiff,
			AmountDiff:    c.Evidence.AmountDiff,
			Components:    c.Components,
		})
	}

	for _, id := range receiptIDs {
		if _, ok := receiptTaken[id]; !ok {
			res.UnmatchedReceipts = append(res.UnmatchedReceipts, id)
		}
	}
	for _, id := range transactionIDs {
		if !txnTaken[id] {
			res.UnmatchedTransactions = append(res.UnmatchedTransactions, id)
		}
	}
	return res
}

// ranksBefore orders by score, strategy priority, days apart, then ids
func ranksBefore(a, b Candidate) bool {
	if a.FinalScore != b.FinalScore {
		return a.FinalScore > b.FinalScore
	}
	if pa, pb := a.Strategy.Priority(), b.Strategy.Priority(); pa != pb {
		return pa < pb
	}
	if a.Evidence.DaysDiff != b.Evidence.DaysDiff {
		return a.Evidence.DaysDiff < b.Evidence.DaysDiff
	}
	if a.TransactionID != b.TransactionID {
		return a.TransactionID < b.TransactionID
	}
	return a.ReceiptID < b.ReceiptID
}
