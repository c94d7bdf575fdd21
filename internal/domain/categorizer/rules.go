package categorizer

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRule is returned when a rule table entry cannot be used
var ErrInvalidRule = errors.New("invalid category rule")

const (
	BusinessTypePersonal = "personal"
	BusinessTypeBusiness = "business"

	// Uncategorized is returned when no rule matches
	Uncategorized = "uncategorized"
)

// CategoryRule maps a text pattern to a (category, business type) vote
type CategoryRule struct {
	Pattern      string   `yaml:"pattern" json:"pattern"`
	Regex        bool     `yaml:"regex,omitempty" json:"regex,omitempty"`
	Category     string   `yaml:"category" json:"category"`
	BusinessType string   `yaml:"business_type" json:"business_type"`
	Weight       float64  `yaml:"weight" json:"weight"`
	MinAmount    *float64 `yaml:"min_amount,omitempty" json:"min_amount,omitempty"`
	MaxAmount    *float64 `yaml:"max_amount,omitempty" json:"max_amount,omitempty"`
}

// RuleTable is a versioned, externally maintained list of rules. Order matters:
// it is the final tie-break between equally weighted categories.
type RuleTable struct {
	Version string         `yaml:"version" json:"version"`
	Rules   []CategoryRule `yaml:"rules" json:"rules"`
}

// LoadRules reads a YAML rule table from disk
func LoadRules(path string) (RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleTable{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule table
func ParseRules(data []byte) (RuleTable, error) {
	var table RuleTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return RuleTable{}, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := table.Validate(); err != nil {
		return RuleTable{}, err
	}
	return table, nil
}

// Validate checks every rule and reports all problems at once
func (t RuleTable) Validate() error {
	var errs []error
	for i, rule := range t.Rules {
		if err := rule.validate(); err != nil {
			errs = append(errs, fmt.Errorf("rule %d (%q): %w", i, rule.Pattern, err))
		}
	}
	return errors.Join(errs...)
}

func (r CategoryRule) validate() error {
	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidRule)
	}
	if r.Category == "" {
		return fmt.Errorf("%w: empty category", ErrInvalidRule)
	}
	if r.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive, got %v", ErrInvalidRule, r.Weight)
	}
	switch r.BusinessType {
	case "", BusinessTypePersonal, BusinessTypeBusiness:
	default:
		return fmt.Errorf("%w: unknown business type %q", ErrInvalidRule, r.BusinessType)
	}
	if r.MinAmount != nil && r.MaxAmount != nil && *r.MinAmount > *r.MaxAmount {
		return fmt.Errorf("%w: min_amount %v exceeds max_amount %v", ErrInvalidRule, *r.MinAmount, *r.MaxAmount)
	}
	if r.Regex {
		if _, err := regexp.Compile("(?i)" + r.Pattern); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
	}
	return nil
}

// compiledRule is a validated rule ready for matching
type compiledRule struct {
	CategoryRule
	index   int
	lowered string
	re      *regexp.Regexp
}

func compileRules(rules []CategoryRule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, rule := range rules {
		if err := rule.validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, rule.Pattern, err)
		}
		if rule.BusinessType == "" {
			rule.BusinessType = BusinessTypePersonal
		}
		c := compiledRule{CategoryRule: rule, index: i, lowered: strings.ToLower(rule.Pattern)}
		if rule.Regex {
			c.re = regexp.MustCompile("(?i)" + rule.Pattern)
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}

func (r compiledRule) matches(text string, amount float64) bool {
	if r.MinAmount != nil && amount < *r.MinAmount {
		return false
	}
	if r.MaxAmount != nil && amount > *r.MaxAmount {
		return false
	}
	if r.re != nil {
		return r.re.MatchString(text)
	}
	return strings.Contains(text, r.lowered)
}

func amountPtr(v float64) *float64 {
	return &v
}

// DefaultRules is the built-in table used when no rules file is configured
func DefaultRules() RuleTable {
	return RuleTable{
		Version: "builtin-1",
		Rules: []CategoryRule{
			{Pattern: "starbucks", Category: "Coffee Shops", BusinessType: BusinessTypePersonal, Weight: 1.0},
			{Pattern: "coffee", Category: "Coffee Shops", BusinessType: BusinessTypePersonal, Weight: 0.6},
			{Pattern: `\b(cafe|espresso|roasters?)\b`, Regex: true, Category: "Coffee Shops", BusinessType: BusinessTypePersonal, Weight: 0.5},
			{Pattern: "whole foods", Category: "Groceries", BusinessType: BusinessTypePersonal, Weight: 1.0},
			{Pattern: "trader joe", Category: "Groceries", BusinessType: BusinessTypePersonal, Weight: 1.0},
			{Pattern: "safeway", Category: "Groceries", BusinessType: BusinessTypePersonal, Weight: 1.0},
			{Pattern: "kroger", Category: "Groceries", BusinessType: BusinessTypePersonal, Weight: 1.0},
			{Pattern: `\b(grocery|market)\b`, Regex: true, Category: "Groceries", BusinessType: BusinessTypePersonal, Weight: 0.4},
			{Pattern: `\b(restaurant|grill|pizza|taco|burger|sushi|kitchen)\b`, Regex: true, Category: "Restaurants", BusinessType: BusinessTypePersonal, Weight: 0.6},
			{Pattern: "doordash", Category: "Restaurants", BusinessType: BusinessTypePersonal, Weight: 0.8},
			{Pattern: `\b(airlines?|airways|delta|united|southwest|jetblue|alaska air)\b`, Regex: true, Category: "Travel", BusinessType: BusinessTypeBusiness, Weight: 1.0},
			{Pattern: `\b(hotel|marriott|hilton|hyatt|airbnb)\b`, Regex: true, Category: "Travel", BusinessType: BusinessTypeBusiness, Weight: 1.0},
			{Pattern: "uber", Category: "Transportation", BusinessType: BusinessTypePersonal, Weight: 0.8},
			{Pattern: "lyft", Category: "Transportation", BusinessType: BusinessTypePersonal, Weight: 0.8},
			{Pattern: `\b(parking|toll)\b`, Regex: true, Category: "Transportation", BusinessType: BusinessTypePersonal, Weight: 0.6},
			{Pattern: `\b(shell|chevron|exxon|mobil|arco|76)\b`, Regex: true, Category: "Gas", BusinessType: BusinessTypePersonal, Weight: 0.9, MaxAmount: amountPtr(250)},
			{Pattern: "home depot", Category: "Home Improvement", BusinessType: BusinessTypePersonal, Weight: 1.0},
			{Pattern: "lowes", Category: "Home Improvement", BusinessType: BusinessTypePersonal, Weight: 1.0},
			{Pattern: `\b(staples|office depot|officemax)\b`, Regex: true, Category: "Office Supplies", BusinessType: BusinessTypeBusiness, Weight: 1.0},
			{Pattern: `\b(aws|amazon web services|github|google cloud|digitalocean|heroku)\b`, Regex: true, Category: "Software & Hosting", BusinessType: BusinessTypeBusiness, Weight: 1.0},
			{Pattern: `\b(zoom|slack|notion|atlassian|dropbox)\b`, Regex: true, Category: "Software & Hosting", BusinessType: BusinessTypeBusiness, Weight: 0.8},
			{Pattern: `\b(netflix|spotify|hulu|disney)\b`, Regex: true, Category: "Subscriptions", BusinessType: BusinessTypePersonal, Weight: 1.0},
			{Pattern: "amazon", Category: "Shopping", BusinessType: BusinessTypePersonal, Weight: 0.5},
			{Pattern: "target", Category: "Shopping", BusinessType: BusinessTypePersonal, Weight: 0.5},
			{Pattern: "walmart", Category: "Shopping", BusinessType: BusinessTypePersonal, Weight: 0.5},
			{Pattern: "costco", Category: "Shopping", BusinessType: BusinessTypePersonal, Weight: 0.5},
			{Pattern: `\b(pharmacy|cvs|walgreens)\b`, Regex: true, Category: "Health", BusinessType: BusinessTypePersonal, Weight: 0.8},
		},
	}
}
