// Package matcher proposes, scores and resolves receipt/transaction pairings.
//
// Candidate generation runs an ordered list of strategy passes over the pool
// of unmatched transactions:
//   - exact: amount within 1 cent, date within 3 days, same canonical merchant
//   - fuzzy: amount within max($5, 2%), date within 3 days, similar merchant text
//   - high_value: receipts over $200, amount within 1%, date within 1 day
//   - learned_pattern: a (merchant, whole amount) pair confirmed within the last
//     35 days, with the receipt and transaction within 35 days of each other
//   - force: only when nothing else qualified, the nearest amount within 10 days
//
// Amounts are compared by magnitude. With RequireDirection a purchase receipt
// only sees debits and a refund receipt only sees credits, in every pass.
//
// Every pass is a func(*pair) bool predicate driven by one loop, so a
// receipt may collect candidates from several passes. The Scorer turns the
// raw evidence into a weighted score and tier, and the Resolver picks a
// conflict-free one-to-one assignment for the whole batch.
//
// Example usage:
//
//	m := matcher.NewMatcher(matcher.DefaultConfig(), classifier)
//	norm := merchant.NewNormalizer(table.Snapshot(), merchant.DefaultConfig())
//	candidates := m.GenerateCandidates(receipt, transactions, norm)
//	resolution := matcher.NewResolver(matcher.DefaultConfig()).Resolve(candidates, receiptIDs, txnIDs)
package matcher

import (
	"github.com/eshaffer321/receipt-reconciler/internal/domain/categorizer"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/records"
	"github.com/shopspring/decimal"
)

// pass is one strategy in the ordered list
type pass struct {
	strategy Strategy
	match    func(p *pair) bool
}

// pair is a receipt/transaction combination with its precomputed raw values
type pair struct {
	receipt         *records.Receipt
	txn             *records.Transaction
	receiptName     merchant.Result
	txnName         merchant.Result
	receiptCategory string
	amountDiff      decimal.Decimal
	daysDiff        int
	similarity      float64
	pattern         float64
}

// Matcher generates candidates for receipts
type Matcher struct {
	config     Config
	scorer     *Scorer
	classifier *categorizer.Classifier
	passes     []pass
}

// NewMatcher creates a new matcher with the given config. The classifier is
// optional; without it category consistency is always neutral.
func NewMatcher(config Config, classifier *categorizer.Classifier) *Matcher {
	m := &Matcher{
		config:     config,
		scorer:     NewScorer(config),
		classifier: classifier,
	}
	m.passes = []pass{
		{StrategyExact, m.exact},
		{StrategyFuzzy, m.fuzzy},
		{StrategyHighValue, m.highValue},
		{StrategyLearned, m.learned},
	}
	return m
}

// Config returns the matcher configuration
func (m *Matcher) Config() Config {
	return m.config
}

// GenerateCandidates proposes scored candidates for one receipt against the
// unmatched transactions in the pool. Candidates below the review threshold
// are dropped here and never reach the resolver. The normalizer must be
// bound to the batch's alias snapshot; it is only read.
func (m *Matcher) GenerateCandidates(receipt records.Receipt, transactions []records.Transaction, norm *merchant.Normalizer) []Candidate {
	if receipt.IsMatched() {
		return nil
	}

	proposed := m.propose(receipt, transactions, norm)

	out := make([]Candidate, 0, len(proposed))
	for _, c := range proposed {
		scored := m.scorer.Score(c)
		if scored.Tier == TierReject {
			continue
		}
		out = append(out, scored)
	}
	return out
}

// propose runs the strategy passes and returns unscored candidates
func (m *Matcher) propose(receipt records.Receipt, transactions []records.Transaction, norm *merchant.Normalizer) []Candidate {
	receiptName := norm.Normalize(receipt.RawMerchantText)
	receiptCategory := m.classifyReceipt(receipt, receiptName)
	snapshot := norm.Snapshot()

	pairs := make([]*pair, 0, len(transactions))
	for i := range transactions {
		txn := &transactions[i]
		if txn.IsMatched() {
			continue
		}
		if m.config.RequireDirection && receipt.Amount.Sign()*txn.Amount.Sign() >= 0 {
			continue
		}
		txnName := norm.Normalize(txn.RawDescription)
		pairs = append(pairs, &pair{
			receipt:         &receipt,
			txn:             txn,
			receiptName:     receiptName,
			txnName:         txnName,
			receiptCategory: receiptCategory,
			amountDiff:      receipt.Magnitude().Sub(txn.Magnitude()).Abs(),
			daysDiff:        records.DaysBetween(receipt.Date, txn.PostedDate),
			similarity:      merchantSimilarity(receipt, *txn, receiptName, txnName),
			pattern:         patternConfidence(snapshot, receipt, *txn, receiptName, txnName, m.config.LearnedDateWindow),
		})
	}

	var proposed []Candidate
	for _, ps := range m.passes {
		for _, p := range pairs {
			if ps.match(p) {
				proposed = append(proposed, p.candidate(ps.strategy))
			}
		}
	}

	if len(proposed) == 0 {
		if p := m.nearest(pairs); p != nil {
			proposed = append(proposed, p.candidate(StrategyForce))
		}
	}
	return proposed
}

func (m *Matcher) exact(p *pair) bool {
	if p.daysDiff > m.config.ExactDateWindow {
		return false
	}
	if p.amountDiff.GreaterThan(decimal.NewFromFloat(m.config.ExactAmountTolerance)) {
		return false
	}
	return merchant.SameMerchant(p.receiptName, p.txnName)
}

func (m *Matcher) fuzzy(p *pair) bool {
	if p.daysDiff > m.config.FuzzyDateWindow {
		return false
	}
	if p.amountDiff.GreaterThan(m.config.gate(StrategyFuzzy, p.receipt.Magnitude())) {
		return false
	}
	return p.similarity >= m.config.FuzzySimilarityThreshold
}

func (m *Matcher) highValue(p *pair) bool {
	amount := p.receipt.Magnitude()
	if !amount.GreaterThan(decimal.NewFromFloat(m.config.HighValueMinAmount)) {
		return false
	}
	if p.daysDiff > m.config.HighValueDateWindow {
		return false
	}
	return !p.amountDiff.GreaterThan(m.config.gate(StrategyHighValue, amount))
}

func (m *Matcher) learned(p *pair) bool {
	if p.pattern <= 0 || p.daysDiff > m.config.LearnedDateWindow {
		return false
	}
	return merchant.RoundAmount(p.receipt.Amount).Equal(merchant.RoundAmount(p.txn.Amount))
}

// nearest picks the fallback pair: smallest amount difference within the
// force window, then fewer days apart, then lower transaction id.
func (m *Matcher) nearest(pairs []*pair) *pair {
	var best *pair
	for _, p := range pairs {
		if p.daysDiff > m.config.ForceDateWindow {
			continue
		}
		if best == nil {
			best = p
			continue
		}
		switch cmp := p.amountDiff.Cmp(best.amountDiff); {
		case cmp < 0:
			best = p
		case cmp == 0 && (p.daysDiff < best.daysDiff ||
			(p.daysDiff == best.daysDiff && p.txn.ID < best.txn.ID)):
			best = p
		}
	}
	return best
}

func (m *Matcher) classifyReceipt(receipt records.Receipt, name merchant.Result) string {
	if m.classifier == nil {
		return ""
	}
	result := m.classifier.Classify(categorizer.Input{
		Merchant:    name.Name,
		Description: receipt.RawMerchantText,
		Amount:      receipt.Amount,
		At:          receipt.Timestamp,
	})
	return result.Category
}

func (p *pair) candidate(strategy Strategy) Candidate {
	ev := Evidence{
		ReceiptAmount:       p.receipt.Magnitude(),
		AmountDiff:          p.amountDiff,
		DaysDiff:            p.daysDiff,
		Similarity:          p.similarity,
		ReceiptCategory:     p.receiptCategory,
		TransactionCategory: p.txn.Category,
	}
	if strategy == StrategyLearned {
		ev.PatternConfidence = p.pattern
	}
	if p.receipt.Timestamp != nil && p.txn.Timestamp != nil {
		gap := p.receipt.Timestamp.Sub(*p.txn.Timestamp)
		if gap < 0 {
			gap = -gap
		}
		ev.TimeGap = &gap
	}

	return Candidate{
		ReceiptID:           p.receipt.ID,
		TransactionID:       p.txn.ID,
		Strategy:            strategy,
		Evidence:            ev,
		ReceiptMerchant:     p.receiptName,
		TransactionMerchant: p.txnName,
	}
}

// merchantSimilarity compares both the raw texts and the resolved names
func merchantSimilarity(r records.Receipt, t records.Transaction, rn, tn merchant.Result) float64 {
	sim := merchant.Similarity(r.RawMerchantText, t.RawDescription)
	if rn.Name != "" && tn.Name != "" {
		sim = max(sim, merchant.Similarity(rn.Name, tn.Name))
	}
	return sim
}

// patternConfidence looks for a confirmed (merchant, whole amount) pair using
// the receipt's merchant first, then the transaction's. A pattern last
// confirmed more than window days from the receipt has stopped recurring.
func patternConfidence(s *merchant.Snapshot, r records.Receipt, t records.Transaction, rn, tn merchant.Result, window int) float64 {
	recurring := func(p merchant.AmountPattern) bool {
		return p.LastSeen.IsZero() || records.DaysBetween(r.Date, p.LastSeen) <= window
	}
	if p, ok := s.Pattern(rn.Name, r.Amount); ok && recurring(p) {
		return s.PatternConfidence(p)
	}
	if tn.Learned() {
		if p, ok := s.Pattern(tn.Name, t.Amount); ok && recurring(p) {
			return s.PatternConfidence(p)
		}
	}
	return 0
}
