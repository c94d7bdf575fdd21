// Package categorizer assigns an expense category and business type to a
// merchant/description pair by scanning a table of weighted rules.
package categorizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds classifier tuning
type Config struct {
	FullConfidenceWeight float64 // Default: 1.0, accumulated weight that counts as certain
	ContextWeight        float64 // Default: 0.5, weight of a full-strength business-context vote
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		FullConfidenceWeight: 1.0,
		ContextWeight:        0.5,
	}
}

// BusinessContext reports whether a moment falls inside a known business event.
// Strength is in [0,1]; ok is false when nothing is known about that time.
type BusinessContext interface {
	Strength(at time.Time) (strength float64, ok bool)
}

// Cache interface for classification results
type Cache interface {
	Get(key string) (Classification, bool)
	Set(key string, value Classification)
}

// Input is the text and amount being classified
type Input struct {
	Merchant    string          `json:"merchant"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	At          *time.Time      `json:"at,omitempty"`
}

// Classification is the winning (category, business type) pair
type Classification struct {
	Category     string   `json:"category"`
	BusinessType string   `json:"business_type"`
	Confidence   float64  `json:"confidence"`
	MatchedRules []string `json:"matched_rules,omitempty"`
}

// Uncategorized reports whether no rule matched
func (c Classification) Uncategorized() bool {
	return c.Category == Uncategorized
}

// Option configures a Classifier
type Option func(*Classifier)

// WithBusinessContext adds the business-context signal as an extra vote
func WithBusinessContext(bc BusinessContext) Option {
	return func(c *Classifier) {
		c.context = bc
	}
}

// WithCache memoises classifications
func WithCache(cache Cache) Option {
	return func(c *Classifier) {
		c.cache = cache
	}
}

// Classifier scores records against a rule table. It never mutates the table
// and is safe for concurrent use.
type Classifier struct {
	version string
	rules   []compiledRule
	config  Config
	context BusinessContext
	cache   Cache
}

// NewClassifier compiles a rule table
func NewClassifier(table RuleTable, config Config, opts ...Option) (*Classifier, error) {
	rules, err := compileRules(table.Rules)
	if err != nil {
		return nil, err
	}

	c := &Classifier{
		version: table.Version,
		rules:   rules,
		config:  config,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Version returns the rule table version
func (c *Classifier) Version() string {
	return c.version
}

// RuleCount returns the number of rules in the table
func (c *Classifier) RuleCount() int {
	return len(c.rules)
}

// pairScore accumulates votes for one (category, business type)
type pairScore struct {
	category     string
	businessType string
	weight       float64
	specificity  int
	firstIndex   int
	patterns     []string
}

// Classify returns the best (category, business type) for the input.
// Weight is summed per pair; ties go to the pair with the longest matching
// pattern, then to the pair whose first rule appears earliest in the table.
func (c *Classifier) Classify(in Input) Classification {
	key := c.cacheKey(in)
	if c.cache != nil {
		if cached, found := c.cache.Get(key); found {
			return cached
		}
	}

	result := c.classify(in)

	if c.cache != nil {
		c.cache.Set(key, result)
	}
	return result
}

func (c *Classifier) classify(in Input) Classification {
	text := strings.ToLower(strings.TrimSpace(in.Merchant + " " + in.Description))
	amount, _ := in.Amount.Abs().Float64()

	var pairs []*pairScore
	index := make(map[string]*pairScore)
	total := 0.0

	for _, rule := range c.rules {
		if !rule.matches(text, amount) {
			continue
		}
		pk := rule.Category + "\x00" + rule.BusinessType
		p, ok := index[pk]
		if !ok {
			p = &pairScore{
				category:     rule.Category,
				businessType: rule.BusinessType,
				firstIndex:   rule.index,
			}
			index[pk] = p
			pairs = append(pairs, p)
		}
		p.weight += rule.Weight
		p.specificity = max(p.specificity, len(rule.Pattern))
		p.patterns = append(p.patterns, rule.Pattern)
		total += rule.Weight
	}

	if len(pairs) == 0 {
		return Classification{
			Category:     Uncategorized,
			BusinessType: BusinessTypePersonal,
			Confidence:   0,
		}
	}

	if vote := c.contextVote(in.At); vote > 0 {
		for _, p := range pairs {
			if p.businessType == BusinessTypeBusiness {
				p.weight += vote
			}
		}
		total += vote
	}

	best := pairs[0]
	for _, p := range pairs[1:] {
		if better(p, best) {
			best = p
		}
	}

	denominator := max(total, c.config.FullConfidenceWeight)
	confidence := 0.0
	if denominator > 0 {
		confidence = best.weight / denominator
	}

	return Classification{
		Category:     best.category,
		BusinessType: best.businessType,
		Confidence:   clamp01(confidence),
		MatchedRules: best.patterns,
	}
}

func better(a, b *pairScore) bool {
	if a.weight != b.weight {
		return a.weight > b.weight
	}
	if a.specificity != b.specificity {
		return a.specificity > b.specificity
	}
	return a.firstIndex < b.firstIndex
}

func (c *Classifier) contextVote(at *time.Time) float64 {
	if c.context == nil || at == nil {
		return 0
	}
	strength, ok := c.context.Strength(*at)
	if !ok || strength <= 0 {
		return 0
	}
	return clamp01(strength) * c.config.ContextWeight
}

func (c *Classifier) cacheKey(in Input) string {
	at := ""
	if in.At != nil && c.context != nil {
		at = in.At.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s|%s|%s|%s",
		strings.ToLower(in.Merchant), strings.ToLower(in.Description), in.Amount.Abs().String(), at)
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
