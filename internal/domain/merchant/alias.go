// Package merchant canonicalizes raw merchant strings and learns merchant
// aliases from confirmed receipt/transaction matches.
//
// The alias Table is the only mutable state. Readers never touch it directly:
// a batch takes an immutable Snapshot up front, and the single learn phase
// at the end of the batch writes all observations under one lock so the next
// snapshot sees either none or all of them.
//
//	table := merchant.NewTable(merchant.DefaultConfig())
//	norm := merchant.NewNormalizer(table.Snapshot(), merchant.DefaultConfig())
//	res := norm.Normalize("SQ *COFFEE SHOP")
package merchant

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidObservation is returned when an observation lacks raw text or a canonical name
var ErrInvalidObservation = errors.New("invalid alias observation")

// Config holds normalizer and learner tuning
type Config struct {
	AliasSimilarityThreshold float64 // Default: 0.75
	ProvisionalConfidence    float64 // Default: 0.3 (not yet learned)
	SmoothingK               float64 // Default: 5, confidence = n / (n + k)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		AliasSimilarityThreshold: 0.75,
		ProvisionalConfidence:    0.3,
		SmoothingK:               5,
	}
}

// AliasMapping is one canonical spelling observed for a raw key
type AliasMapping struct {
	CanonicalName    string  `json:"canonical_name"`
	BusinessTypeHint string  `json:"business_type_hint,omitempty"`
	ObservationCount int     `json:"observation_count"`
	Confidence       float64 `json:"confidence"`
}

// MerchantAlias maps a cleaned raw-text key to its canonical merchant.
// The primary mapping is the one with the most observations; competing
// spellings are kept as secondaries and never deleted.
type MerchantAlias struct {
	Key              string         `json:"key"`
	CanonicalName    string         `json:"canonical_name"`
	BusinessTypeHint string         `json:"business_type_hint,omitempty"`
	ObservationCount int            `json:"observation_count"`
	Confidence       float64        `json:"confidence"`
	Secondary        []AliasMapping `json:"secondary,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (a MerchantAlias) clone() MerchantAlias {
	c := a
	if len(a.Secondary) > 0 {
		c.Secondary = make([]AliasMapping, len(a.Secondary))
		copy(c.Secondary, a.Secondary)
	}
	return c
}

// Mapping returns the mapping for a canonical name, primary or secondary
func (a MerchantAlias) Mapping(canonical string) (AliasMapping, bool) {
	if a.CanonicalName == canonical {
		return AliasMapping{
			CanonicalName:    a.CanonicalName,
			BusinessTypeHint: a.BusinessTypeHint,
			ObservationCount: a.ObservationCount,
			Confidence:       a.Confidence,
		}, true
	}
	for _, s := range a.Secondary {
		if s.CanonicalName == canonical {
			return s, true
		}
	}
	return AliasMapping{}, false
}

// AmountPattern records that a canonical merchant was confirmed at a whole-unit
// amount. Recurring charges (subscriptions, rent) are found through these.
type AmountPattern struct {
	CanonicalKey     string          `json:"canonical_key"`
	CanonicalName    string          `json:"canonical_name"`
	RoundedAmount    decimal.Decimal `json:"rounded_amount"`
	ObservationCount int             `json:"observation_count"`
	LastSeen         time.Time       `json:"last_seen"`
}

// Observation is one confirmed (raw text -> canonical merchant) pairing
type Observation struct {
	RawText      string
	Canonical    string
	BusinessType string
	Amount       decimal.Decimal
	Date         time.Time
}

// Table is the shared alias store. It is written only by the learn phase.
type Table struct {
	mu       sync.RWMutex
	config   Config
	aliases  map[string]*MerchantAlias
	patterns map[string]*AmountPattern
	now      func() time.Time
}

// NewTable creates an empty alias table
func NewTable(config Config) *Table {
	return &Table{
		config:   config,
		aliases:  make(map[string]*MerchantAlias),
		patterns: make(map[string]*AmountPattern),
		now:      time.Now,
	}
}

// Clone returns a deep copy of the table. Learning into the copy leaves the
// original untouched until Commit.
func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := &Table{
		config:   t.config,
		aliases:  make(map[string]*MerchantAlias, len(t.aliases)),
		patterns: make(map[string]*AmountPattern, len(t.patterns)),
		now:      t.now,
	}
	for k, a := range t.aliases {
		cp := a.clone()
		c.aliases[k] = &cp
	}
	for k, p := range t.patterns {
		cp := *p
		c.patterns[k] = &cp
	}
	return c
}

// Commit replaces the table's contents with staged under one write lock.
// staged must not be used afterwards.
func (t *Table) Commit(staged *Table) {
	staged.mu.Lock()
	aliases, patterns := staged.aliases, staged.patterns
	staged.aliases, staged.patterns = nil, nil
	staged.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.aliases, t.patterns = aliases, patterns
}

// AliasConfidence is the smoothed confidence for an observation count
func AliasConfidence(count int, k float64) float64 {
	if count <= 0 {
		return 0
	}
	return float64(count) / (float64(count) + k)
}

// Learn records a single observation
func (t *Table) Learn(obs Observation) (MerchantAlias, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.learnLocked(obs)
}

// LearnAll commits a batch of observations under one write lock. Invalid
// observations are skipped and reported; the rest are still applied.
func (t *Table) LearnAll(observations []Observation) (int, []error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	learned := 0
	var errs []error
	for _, obs := range observations {
		if _, err := t.learnLocked(obs); err != nil {
			errs = append(errs, err)
			continue
		}
		learned++
	}
	return learned, errs
}

func (t *Table) learnLocked(obs Observation) (MerchantAlias, error) {
	key := Clean(obs.RawText)
	if key == "" || obs.Canonical == "" {
		return MerchantAlias{}, fmt.Errorf("%w: raw=%q canonical=%q", ErrInvalidObservation, obs.RawText, obs.Canonical)
	}

	now := t.now()
	alias, ok := t.aliases[key]
	switch {
	case !ok:
		alias = &MerchantAlias{
			Key:              key,
			CanonicalName:    obs.Canonical,
			BusinessTypeHint: obs.BusinessType,
			ObservationCount: 1,
		}
		t.aliases[key] = alias

	case alias.CanonicalName == obs.Canonical:
		alias.ObservationCount++
		if obs.BusinessType != "" {
			alias.BusinessTypeHint = obs.BusinessType
		}

	default:
		t.reinforceSecondary(alias, obs)
	}

	alias.UpdatedAt = now
	t.recompute(alias)

	if !obs.Amount.IsZero() {
		t.recordPattern(obs, now)
	}

	return alias.clone(), nil
}

// reinforceSecondary bumps (or adds) a competing spelling and promotes it
// once it has more observations than the current primary.
func (t *Table) reinforceSecondary(alias *MerchantAlias, obs Observation) {
	idx := -1
	for i := range alias.Secondary {
		if alias.Secondary[i].CanonicalName == obs.Canonical {
			idx = i
			break
		}
	}
	if idx < 0 {
		alias.Secondary = append(alias.Secondary, AliasMapping{CanonicalName: obs.Canonical})
		idx = len(alias.Secondary) - 1
	}

	sec := &alias.Secondary[idx]
	sec.ObservationCount++
	if obs.BusinessType != "" {
		sec.BusinessTypeHint = obs.BusinessType
	}

	if sec.ObservationCount > alias.ObservationCount {
		demoted := AliasMapping{
			CanonicalName:    alias.CanonicalName,
			BusinessTypeHint: alias.BusinessTypeHint,
			ObservationCount: alias.ObservationCount,
		}
		alias.CanonicalName = sec.CanonicalName
		alias.BusinessTypeHint = sec.BusinessTypeHint
		alias.ObservationCount = sec.ObservationCount
		alias.Secondary[idx] = demoted
	}
}

func (t *Table) recompute(alias *MerchantAlias) {
	k := t.config.SmoothingK
	alias.Confidence = AliasConfidence(alias.ObservationCount, k)
	for i := range alias.Secondary {
		alias.Secondary[i].Confidence = AliasConfidence(alias.Secondary[i].ObservationCount, k)
	}
	sort.SliceStable(alias.Secondary, func(i, j int) bool {
		a, b := alias.Secondary[i], alias.Secondary[j]
		if a.ObservationCount != b.ObservationCount {
			return a.ObservationCount > b.ObservationCount
		}
		return a.CanonicalName < b.CanonicalName
	})
}

func (t *Table) recordPattern(obs Observation, now time.Time) {
	canonicalKey := Clean(obs.Canonical)
	rounded := RoundAmount(obs.Amount)
	key := patternKey(canonicalKey, rounded)

	p, ok := t.patterns[key]
	if !ok {
		p = &AmountPattern{
			CanonicalKey:  canonicalKey,
			CanonicalName: obs.Canonical,
			RoundedAmount: rounded,
		}
		t.patterns[key] = p
	}
	p.ObservationCount++
	seen := obs.Date
	if seen.IsZero() {
		seen = now
	}
	if seen.After(p.LastSeen) {
		p.LastSeen = seen
	}
}

// Merge folds a persisted alias into the table. When both sides know the key
// the mapping with more observations stays primary and the other is kept as
// a secondary; nothing is dropped.
func (t *Table) Merge(incoming MerchantAlias) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if incoming.Key == "" {
		incoming.Key = Clean(incoming.CanonicalName)
	}
	existing, ok := t.aliases[incoming.Key]
	if !ok {
		a := incoming.clone()
		t.recompute(&a)
		t.aliases[a.Key] = &a
		return
	}

	mappings := map[string]AliasMapping{}
	add := func(m AliasMapping) {
		cur, seen := mappings[m.CanonicalName]
		if !seen || m.ObservationCount > cur.ObservationCount {
			mappings[m.CanonicalName] = m
		}
	}
	for _, a := range []MerchantAlias{*existing, incoming} {
		add(AliasMapping{CanonicalName: a.CanonicalName, BusinessTypeHint: a.BusinessTypeHint, ObservationCount: a.ObservationCount})
		for _, s := range a.Secondary {
			add(s)
		}
	}

	ordered := make([]AliasMapping, 0, len(mappings))
	for _, m := range mappings {
		ordered = append(ordered, m)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ObservationCount != ordered[j].ObservationCount {
			return ordered[i].ObservationCount > ordered[j].ObservationCount
		}
		// Existing primary wins a tie
		if (ordered[i].CanonicalName == existing.CanonicalName) != (ordered[j].CanonicalName == existing.CanonicalName) {
			return ordered[i].CanonicalName == existing.CanonicalName
		}
		return ordered[i].CanonicalName < ordered[j].CanonicalName
	})

	primary := ordered[0]
	existing.CanonicalName = primary.CanonicalName
	existing.BusinessTypeHint = primary.BusinessTypeHint
	existing.ObservationCount = primary.ObservationCount
	existing.Secondary = ordered[1:]
	if incoming.UpdatedAt.After(existing.UpdatedAt) {
		existing.UpdatedAt = incoming.UpdatedAt
	}
	t.recompute(existing)
}

// MergePattern folds a persisted amount pattern into the table
func (t *Table) MergePattern(p AmountPattern) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p.CanonicalKey == "" {
		p.CanonicalKey = Clean(p.CanonicalName)
	}
	key := patternKey(p.CanonicalKey, p.RoundedAmount)
	existing, ok := t.patterns[key]
	if !ok || p.ObservationCount > existing.ObservationCount {
		cp := p
		t.patterns[key] = &cp
	}
}

// Get returns a copy of the alias stored under a cleaned key
func (t *Table) Get(key string) (MerchantAlias, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	a, ok := t.aliases[key]
	if !ok {
		return MerchantAlias{}, false
	}
	return a.clone(), true
}

// Aliases returns all aliases ordered by key
func (t *Table) Aliases() []MerchantAlias {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]MerchantAlias, 0, len(t.aliases))
	for _, a := range t.aliases {
		out = append(out, a.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Patterns returns all amount patterns ordered by canonical key then amount
func (t *Table) Patterns() []AmountPattern {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]AmountPattern, 0, len(t.patterns))
	for _, p := range t.patterns {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CanonicalKey != out[j].CanonicalKey {
			return out[i].CanonicalKey < out[j].CanonicalKey
		}
		return out[i].RoundedAmount.LessThan(out[j].RoundedAmount)
	})
	return out
}

// Len returns the number of alias keys
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.aliases)
}

// RoundAmount rounds an amount magnitude to whole currency units
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Abs().Round(0)
}

func patternKey(canonicalKey string, rounded decimal.Decimal) string {
	return canonicalKey + "|" + rounded.String()
}
