package matcher

import (
	"strings"
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/categorizer"
	"github.com/shopspring/decimal"
)

// Scorer turns candidate evidence into a weighted score and tier
type Scorer struct {
	config Config
}

// NewScorer creates a scorer
func NewScorer(config Config) *Scorer {
	return &Scorer{config: config}
}

// Score fills in the component scores, final score and tier
func (s *Scorer) Score(c Candidate) Candidate {
	cfg := s.config
	ev := c.Evidence

	comp := Components{
		Amount:              linear(toFloat(ev.AmountDiff), toFloat(cfg.gate(c.Strategy, ev.ReceiptAmount))),
		Date:                linear(float64(ev.DaysDiff), float64(cfg.dateWindow(c.Strategy))),
		Merchant:            s.merchantScore(c),
		TimeOfDay:           s.timeOfDayScore(ev.TimeGap),
		CategoryConsistency: categoryScore(ev.ReceiptCategory, ev.TransactionCategory),
	}

	score := cfg.AmountWeight*comp.Amount +
		cfg.DateWeight*comp.Date +
		cfg.MerchantWeight*comp.Merchant +
		cfg.TimeOfDayWeight*comp.TimeOfDay +
		cfg.CategoryWeight*comp.CategoryConsistency

	if c.Strategy == StrategyForce {
		score = min(score, cfg.ForceScoreCap)
	}

	c.Components = comp
	c.FinalScore = clamp01(score)
	c.Tier = s.Tier(c.FinalScore)
	return c
}

// Tier maps a final score onto its confidence band
func (s *Scorer) Tier(score float64) Tier {
	switch {
	case score >= s.config.AutoAcceptThreshold:
		return TierAutoAccept
	case score >= s.config.ReviewThreshold:
		return TierNeedsReview
	default:
		return TierReject
	}
}

func (s *Scorer) merchantScore(c Candidate) float64 {
	switch c.Strategy {
	case StrategyHighValue:
		return s.config.HighValueMerchantScore
	case StrategyLearned:
		return clamp01(max(c.Evidence.Similarity, c.Evidence.PatternConfidence))
	default:
		return clamp01(c.Evidence.Similarity)
	}
}

func (s *Scorer) timeOfDayScore(gap *time.Duration) float64 {
	switch {
	case gap == nil:
		return 0.5
	case *gap <= s.config.TimeOfDayWindow:
		return 1
	default:
		return 0
	}
}

func categoryScore(receipt, txn string) float64 {
	if unset(receipt) || unset(txn) {
		return 0.5
	}
	if strings.EqualFold(receipt, txn) {
		return 1
	}
	return 0
}

func unset(category string) bool {
	return category == "" || category == categorizer.Uncategorized
}

// gate is the amount tolerance for a strategy. The same value qualifies a pair
// and scales its amount component.
func (c Config) gate(strategy Strategy, receiptAmount decimal.Decimal) decimal.Decimal {
	percentOf := func(pct float64) decimal.Decimal {
		return receiptAmount.Abs().Mul(decimal.NewFromFloat(pct))
	}

	switch strategy {
	case StrategyExact:
		return decimal.NewFromFloat(c.ExactAmountTolerance)
	case StrategyFuzzy, StrategyForce:
		return decimal.Max(decimal.NewFromFloat(c.FuzzyAmountTolerance), percentOf(c.FuzzyAmountPercent))
	case StrategyHighValue:
		return decimal.Max(decimal.NewFromFloat(c.ExactAmountTolerance), percentOf(c.HighValueAmountPercent))
	case StrategyLearned:
		return decimal.NewFromFloat(c.LearnedAmountTolerance)
	default:
		return decimal.NewFromFloat(c.ExactAmountTolerance)
	}
}

// dateWindow is the day span over which the date component falls to zero
func (c Config) dateWindow(strategy Strategy) int {
	switch strategy {
	case StrategyExact:
		return c.ExactDateWindow
	case StrategyFuzzy:
		return c.FuzzyDateWindow
	case StrategyHighValue:
		return c.HighValueScoreWindow
	case StrategyLearned:
		return c.LearnedDateWindow
	default:
		return c.ForceDateWindow
	}
}

// linear is max(0, 1 - diff/tolerance); a zero tolerance only rewards a zero diff
func linear(diff, tolerance float64) float64 {
	if tolerance <= 0 {
		if diff == 0 {
			return 1
		}
		return 0
	}
	return max(0, 1-diff/tolerance)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
