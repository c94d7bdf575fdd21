package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu          sync.Mutex
	aliases     map[string]merchant.MerchantAlias
	patterns    map[string]merchant.AmountPattern
	runs        map[string]*Run
	assignments map[string][]AssignmentRecord
	skipped     map[string][]SkippedRecord

	// Hooks for test assertions
	SaveAliasesCalls     int
	SavePatternsCalls    int
	StartRunCalled       bool
	CompleteRunCalled    bool
	LastCompletedRun     *Run
	SaveAssignmentsCalls int

	// Error injection for testing error paths
	LoadAliasesErr     error
	LoadPatternsErr    error
	SaveAliasesErr     error
	SavePatternsErr    error
	StartRunErr        error
	CompleteRunErr     error
	SaveAssignmentsErr error
	SaveSkippedErr     error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		aliases:     make(map[string]merchant.MerchantAlias),
		patterns:    make(map[string]merchant.AmountPattern),
		runs:        make(map[string]*Run),
		assignments: make(map[string][]AssignmentRecord),
		skipped:     make(map[string][]SkippedRecord),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveAliases upserts aliases, keeping a stored alias with more observations
func (m *MockRepository) SaveAliases(aliases []merchant.MerchantAlias) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveAliasesCalls++
	if m.SaveAliasesErr != nil {
		return m.SaveAliasesErr
	}
	for _, a := range aliases {
		if cur, ok := m.aliases[a.Key]; ok && cur.ObservationCount > a.ObservationCount {
			continue
		}
		m.aliases[a.Key] = a
	}
	return nil
}

// LoadAliases returns stored aliases ordered by key
func (m *MockRepository) LoadAliases() ([]merchant.MerchantAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LoadAliasesErr != nil {
		return nil, m.LoadAliasesErr
	}
	out := make([]merchant.MerchantAlias, 0, len(m.aliases))
	for _, a := range m.aliases {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// SavePatterns upserts amount patterns, keeping a stored pattern with more observations
func (m *MockRepository) SavePatterns(patterns []merchant.AmountPattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SavePatternsCalls++
	if m.SavePatternsErr != nil {
		return m.SavePatternsErr
	}
	for _, p := range patterns {
		key := p.CanonicalKey + "|" + p.RoundedAmount.String()
		if cur, ok := m.patterns[key]; ok && cur.ObservationCount > p.ObservationCount {
			continue
		}
		m.patterns[key] = p
	}
	return nil
}

// LoadPatterns returns stored amount patterns
func (m *MockRepository) LoadPatterns() ([]merchant.AmountPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LoadPatternsErr != nil {
		return nil, m.LoadPatternsErr
	}
	out := make([]merchant.AmountPattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CanonicalKey != out[j].CanonicalKey {
			return out[i].CanonicalKey < out[j].CanonicalKey
		}
		return out[i].RoundedAmount.LessThan(out[j].RoundedAmount)
	})
	return out, nil
}

// StartRun records a run in memory
func (m *MockRepository) StartRun(run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartRunCalled = true
	if m.StartRunErr != nil {
		return m.StartRunErr
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

// CompleteRun replaces the stored run
func (m *MockRepository) CompleteRun(run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CompleteRunCalled = true
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}
	if _, ok := m.runs[run.ID]; !ok {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	copied := *run
	m.runs[run.ID] = &copied
	m.LastCompletedRun = &copied
	return nil
}

// SaveAssignments appends assignments for a run
func (m *MockRepository) SaveAssignments(runID string, assignments []AssignmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveAssignmentsCalls++
	if m.SaveAssignmentsErr != nil {
		return m.SaveAssignmentsErr
	}
	for _, a := range assignments {
		a.RunID = runID
		m.assignments[runID] = append(m.assignments[runID], a)
	}
	return nil
}

// SaveSkipped appends skipped records for a run
func (m *MockRepository) SaveSkipped(runID string, skipped []SkippedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveSkippedErr != nil {
		return m.SaveSkippedErr
	}
	for _, s := range skipped {
		s.RunID = runID
		m.skipped[runID] = append(m.skipped[runID], s)
	}
	return nil
}

// ListRuns returns runs, most recent first
func (m *MockRepository) ListRuns(limit, offset int) (*RunListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = defaultListLimit
	}
	all := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		all = append(all, *r)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].StartedAt.Equal(all[j].StartedAt) {
			return all[i].StartedAt.After(all[j].StartedAt)
		}
		return all[i].ID < all[j].ID
	})

	result := &RunListResult{Runs: []Run{}, TotalCount: len(all), Limit: limit, Offset: offset}
	if offset < len(all) {
		end := min(offset+limit, len(all))
		result.Runs = append(result.Runs, all[offset:end]...)
	}
	return result, nil
}

// GetRun retrieves a run by ID
func (m *MockRepository) GetRun(runID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	copied := *r
	return &copied, nil
}

// GetAssignments returns the assignments of a run ordered by receipt ID
func (m *MockRepository) GetAssignments(runID string) ([]AssignmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]AssignmentRecord(nil), m.assignments[runID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ReceiptID < out[j].ReceiptID })
	return out, nil
}

// GetSkipped returns the skipped records of a run
func (m *MockRepository) GetSkipped(runID string) ([]SkippedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]SkippedRecord(nil), m.skipped[runID]...), nil
}
