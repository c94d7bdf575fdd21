package merchant

import "sync"

// Source describes how a canonical name was resolved
type Source string

const (
	SourceAlias       Source = "alias"
	SourceCanonical   Source = "canonical"
	SourceFuzzy       Source = "fuzzy"
	SourceProvisional Source = "provisional"
	SourceEmpty       Source = "empty"
)

// Result is the outcome of normalizing a raw merchant string
type Result struct {
	Name             string  `json:"canonical_name"`
	Confidence       float64 `json:"confidence"`
	Source           Source  `json:"source"`
	Key              string  `json:"key"`
	BusinessTypeHint string  `json:"business_type_hint,omitempty"`
}

// Learned reports whether the name came from the alias table
func (r Result) Learned() bool {
	return r.Source != SourceProvisional && r.Source != SourceEmpty
}

// Normalizer resolves raw merchant text against one alias snapshot.
// Results are memoised; the snapshot never changes, so neither do they.
type Normalizer struct {
	snapshot *Snapshot
	config   Config

	mu    sync.RWMutex
	cache map[string]Result
}

// NewNormalizer creates a normalizer bound to a snapshot
func NewNormalizer(snapshot *Snapshot, config Config) *Normalizer {
	if snapshot == nil {
		snapshot = EmptySnapshot(config)
	}
	return &Normalizer{
		snapshot: snapshot,
		config:   config,
		cache:    make(map[string]Result),
	}
}

// Snapshot returns the alias snapshot the normalizer reads from
func (n *Normalizer) Snapshot() *Snapshot {
	return n.snapshot
}

// Normalize returns the canonical merchant name for raw text and how sure it is
func (n *Normalizer) Normalize(raw string) Result {
	n.mu.RLock()
	res, found := n.cache[raw]
	n.mu.RUnlock()
	if found {
		return res
	}

	res = n.resolve(raw)

	n.mu.Lock()
	n.cache[raw] = res
	n.mu.Unlock()

	return res
}

func (n *Normalizer) resolve(raw string) Result {
	key := Clean(raw)
	if key == "" {
		return Result{Source: SourceEmpty}
	}

	if entry, ok := n.snapshot.spelled[raw]; ok {
		return entry.result(key)
	}

	if alias, ok := n.snapshot.Lookup(key); ok {
		return Result{
			Name:             alias.CanonicalName,
			Confidence:       alias.Confidence,
			Source:           SourceAlias,
			Key:              key,
			BusinessTypeHint: alias.BusinessTypeHint,
		}
	}

	if entry, ok := n.snapshot.canonical[key]; ok {
		return entry.result(key)
	}

	if best, sim, ok := n.closestAlias(key); ok {
		return Result{
			Name:             best.CanonicalName,
			Confidence:       clamp01(best.Confidence * sim),
			Source:           SourceFuzzy,
			Key:              key,
			BusinessTypeHint: best.BusinessTypeHint,
		}
	}

	return Result{
		Name:       key,
		Confidence: n.config.ProvisionalConfidence,
		Source:     SourceProvisional,
		Key:        key,
	}
}

// closestAlias scans alias keys in sorted order. Ties prefer the more
// confident alias, then the earlier key.
func (n *Normalizer) closestAlias(key string) (MerchantAlias, float64, bool) {
	var best MerchantAlias
	bestSim := 0.0
	found := false

	for _, candidate := range n.snapshot.Keys() {
		sim := similarityCleaned(key, candidate)
		if sim < n.config.AliasSimilarityThreshold {
			continue
		}
		alias := n.snapshot.aliases[candidate]
		if !found || sim > bestSim || (sim == bestSim && alias.Confidence > best.Confidence) {
			best = alias
			bestSim = sim
			found = true
		}
	}
	return best, bestSim, found
}

func (e canonicalEntry) result(key string) Result {
	return Result{
		Name:             e.name,
		Confidence:       e.confidence,
		Source:           SourceCanonical,
		Key:              key,
		BusinessTypeHint: e.businessTypeHint,
	}
}

// SameMerchant reports whether two resolved names refer to the same merchant
func SameMerchant(a, b Result) bool {
	if a.Name == "" || b.Name == "" {
		return false
	}
	return Clean(a.Name) == Clean(b.Name)
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
