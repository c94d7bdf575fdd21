package matcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
	"github.com/shopspring/decimal"
)

// ErrInvalidConfig is returned by Config.Validate
var ErrInvalidConfig = errors.New("invalid matcher config")

// Config holds matcher configuration. Every threshold is tunable; the defaults
// are the documented starting point.
type Config struct {
	// Exact pass
	ExactAmountTolerance float64 // Default: 0.01
	ExactDateWindow      int     // Default: 3 days

	// Fuzzy pass
	FuzzyAmountTolerance     float64 // Default: 5.00
	FuzzyAmountPercent       float64 // Default: 0.02 (2% of receipt amount, whichever is larger)
	FuzzyDateWindow          int     // Default: 3 days
	FuzzySimilarityThreshold float64 // Default: 0.6

	// High-value amount-only pass
	HighValueMinAmount     float64 // Default: 200.00
	HighValueAmountPercent float64 // Default: 0.01 (1% of receipt amount)
	HighValueDateWindow    int     // Default: 1 day to qualify
	HighValueScoreWindow   int     // Default: 3 days for the date component
	HighValueMerchantScore float64 // Default: 0.4

	// Learned-pattern pass
	LearnedDateWindow      int     // Default: 35 days
	LearnedAmountTolerance float64 // Default: 1.00 for the amount component

	// Fallback pass
	ForceDateWindow int     // Default: 10 days
	ForceScoreCap   float64 // Default: 0.75

	TimeOfDayWindow time.Duration // Default: 2h

	// Purchase receipts pair only with debits (negative transactions) and
	// refund receipts only with credits. Default: true
	RequireDirection bool

	// Component weights, summing to 1
	AmountWeight    float64 // Default: 0.40
	DateWeight      float64 // Default: 0.30
	MerchantWeight  float64 // Default: 0.25
	TimeOfDayWeight float64 // Default: 0.03
	CategoryWeight  float64 // Default: 0.02

	AutoAcceptThreshold float64 // Default: 0.85
	ReviewThreshold     float64 // Default: 0.60
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		ExactAmountTolerance: 0.01,
		ExactDateWindow:      3,

		FuzzyAmountTolerance:     5.00,
		FuzzyAmountPercent:       0.02,
		FuzzyDateWindow:          3,
		FuzzySimilarityThreshold: 0.6,

		HighValueMinAmount:     200.00,
		HighValueAmountPercent: 0.01,
		HighValueDateWindow:    1,
		HighValueScoreWindow:   3,
		HighValueMerchantScore: 0.4,

		LearnedDateWindow:      35,
		LearnedAmountTolerance: 1.00,

		ForceDateWindow: 10,
		ForceScoreCap:   0.75,

		TimeOfDayWindow: 2 * time.Hour,

		RequireDirection: true,

		AmountWeight:    0.40,
		DateWeight:      0.30,
		MerchantWeight:  0.25,
		TimeOfDayWeight: 0.03,
		CategoryWeight:  0.02,

		AutoAcceptThreshold: 0.85,
		ReviewThreshold:     0.60,
	}
}

// Validate checks that thresholds are ordered and weights are usable
func (c Config) Validate() error {
	var errs []error
	if c.ReviewThreshold <= 0 || c.ReviewThreshold > c.AutoAcceptThreshold || c.AutoAcceptThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: need 0 < review (%v) <= auto-accept (%v) <= 1",
			ErrInvalidConfig, c.ReviewThreshold, c.AutoAcceptThreshold))
	}
	weights := c.AmountWeight + c.DateWeight + c.MerchantWeight + c.TimeOfDayWeight + c.CategoryWeight
	if weights < 0.999 || weights > 1.001 {
		errs = append(errs, fmt.Errorf("%w: component weights sum to %v, want 1", ErrInvalidConfig, weights))
	}
	for name, v := range map[string]float64{
		"exact amount tolerance":   c.ExactAmountTolerance,
		"fuzzy amount tolerance":   c.FuzzyAmountTolerance,
		"learned amount tolerance": c.LearnedAmountTolerance,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name))
		}
	}
	if c.ExactDateWindow < 0 || c.FuzzyDateWindow < 0 || c.HighValueDateWindow < 0 ||
		c.LearnedDateWindow < 0 || c.ForceDateWindow < 0 {
		errs = append(errs, fmt.Errorf("%w: date windows must not be negative", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// Strategy names the pass that produced a candidate
type Strategy string

const (
	StrategyExact     Strategy = "exact"
	StrategyFuzzy     Strategy = "fuzzy"
	StrategyHighValue Strategy = "high_value"
	StrategyLearned   Strategy = "learned_pattern"
	StrategyForce     Strategy = "force"
)

// Priority orders strategies for tie-breaks; lower wins
func (s Strategy) Priority() int {
	switch s {
	case StrategyExact:
		return 0
	case StrategyFuzzy:
		return 1
	case StrategyLearned:
		return 2
	case StrategyHighValue:
		return 3
	default:
		return 4
	}
}

// Tier is the confidence band of a scored candidate
type Tier string

const (
	TierAutoAccept  Tier = "auto_accept"
	TierNeedsReview Tier = "needs_review"
	TierReject      Tier = "reject"
)

// Evidence holds the raw values a pass observed for a pair
type Evidence struct {
	ReceiptAmount       decimal.Decimal `json:"receipt_amount"`
	AmountDiff          decimal.Decimal `json:"amount_diff"`
	DaysDiff            int             `json:"days_diff"`
	Similarity          float64         `json:"similarity"`
	PatternConfidence   float64         `json:"pattern_confidence,omitempty"`
	TimeGap             *time.Duration  `json:"time_gap,omitempty"` // nil when either side has no timestamp
	ReceiptCategory     string          `json:"receipt_category,omitempty"`
	TransactionCategory string          `json:"transaction_category,omitempty"`
}

// Components are the normalized [0,1] component scores
type Components struct {
	Amount              float64 `json:"amount"`
	Date                float64 `json:"date"`
	Merchant            float64 `json:"merchant"`
	TimeOfDay           float64 `json:"time_of_day"`
	CategoryConsistency float64 `json:"category_consistency"`
}

// Candidate is a proposed receipt/transaction pairing
type Candidate struct {
	ReceiptID           string          `json:"receipt_id"`
	TransactionID       string          `json:"transaction_id"`
	Strategy            Strategy        `json:"strategy"`
	Evidence            Evidence        `json:"evidence"`
	Components          Components      `json:"components"`
	FinalScore          float64         `json:"final_score"`
	Tier                Tier            `json:"tier"`
	ReceiptMerchant     merchant.Result `json:"receipt_merchant"`
	TransactionMerchant merchant.Result `json:"transaction_merchant"`
}

// Assignment binds exactly one receipt to exactly one transaction
type Assignment struct {
	ReceiptID         string          `json:"receipt_id"`
	TransactionID     string          `json:"transaction_id"`
	Confidence        float64         `json:"confidence"`
	Strategy          Strategy        `json:"strategy"`
	Tier              Tier            `json:"tier"`
	DaysDiff          int             `json:"days_diff"`
	AmountDiff        decimal.Decimal `json:"amount_diff"`
	Components        Components      `json:"components"`
	CanonicalMerchant string          `json:"canonical_merchant"`
	Category          string          `json:"category"`
	BusinessType      string          `json:"business_type"`
}

// AutoAccepted reports whether the assignment can be applied without review
func (a Assignment) AutoAccepted() bool {
	return a.Tier == TierAutoAccept
}
