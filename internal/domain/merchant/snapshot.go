package merchant

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Snapshot is an immutable view of the alias table for one batch. It is safe
// for concurrent use by any number of readers.
type Snapshot struct {
	config    Config
	aliases   map[string]MerchantAlias
	keys      []string
	canonical map[string]canonicalEntry // keyed by Clean(canonical name)
	spelled   map[string]canonicalEntry // keyed by the exact canonical spelling
	patterns  map[string]AmountPattern
}

type canonicalEntry struct {
	name             string
	confidence       float64
	businessTypeHint string
}

// EmptySnapshot returns a snapshot with no learned aliases
func EmptySnapshot(config Config) *Snapshot {
	return buildSnapshot(config, nil, nil)
}

// Snapshot copies the current table state
func (t *Table) Snapshot() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return buildSnapshot(t.config, t.aliases, t.patterns)
}

func buildSnapshot(config Config, aliases map[string]*MerchantAlias, patterns map[string]*AmountPattern) *Snapshot {
	s := &Snapshot{
		config:    config,
		aliases:   make(map[string]MerchantAlias, len(aliases)),
		keys:      make([]string, 0, len(aliases)),
		canonical: make(map[string]canonicalEntry),
		spelled:   make(map[string]canonicalEntry),
		patterns:  make(map[string]AmountPattern, len(patterns)),
	}

	for key, a := range aliases {
		s.aliases[key] = a.clone()
		s.keys = append(s.keys, key)
	}
	sort.Strings(s.keys)

	// Index canonical spellings so that normalizing a canonical name is a no-op
	for _, key := range s.keys {
		a := s.aliases[key]
		entry := canonicalEntry{
			name:             a.CanonicalName,
			confidence:       a.Confidence,
			businessTypeHint: a.BusinessTypeHint,
		}
		indexCanonical(s.spelled, a.CanonicalName, entry)
		if ck := Clean(a.CanonicalName); ck != "" {
			indexCanonical(s.canonical, ck, entry)
		}
	}

	for key, p := range patterns {
		s.patterns[key] = *p
	}

	return s
}

// indexCanonical keeps the most confident entry per index key
func indexCanonical(index map[string]canonicalEntry, key string, entry canonicalEntry) {
	cur, ok := index[key]
	if !ok || entry.confidence > cur.confidence ||
		(entry.confidence == cur.confidence && entry.name < cur.name) {
		index[key] = entry
	}
}

// Lookup returns the alias stored under a cleaned key
func (s *Snapshot) Lookup(key string) (MerchantAlias, bool) {
	a, ok := s.aliases[key]
	return a, ok
}

// Keys returns the alias keys in sorted order
func (s *Snapshot) Keys() []string {
	return s.keys
}

// Len returns the number of aliases in the snapshot
func (s *Snapshot) Len() int {
	return len(s.aliases)
}

// Pattern looks up a confirmed (canonical merchant, whole-unit amount) pair
func (s *Snapshot) Pattern(canonical string, amount decimal.Decimal) (AmountPattern, bool) {
	p, ok := s.patterns[patternKey(Clean(canonical), RoundAmount(amount))]
	return p, ok
}

// PatternConfidence is the smoothed confidence of a pattern
func (s *Snapshot) PatternConfidence(p AmountPattern) float64 {
	return AliasConfidence(p.ObservationCount, s.config.SmoothingK)
}
