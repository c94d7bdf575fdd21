package storage

import (
	"errors"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	AliasRepository
	RunRepository
	Close() error
}

// AliasRepository persists the learned alias table
type AliasRepository interface {
	// SaveAliases upserts aliases; a stored row with more observations is kept
	SaveAliases(aliases []merchant.MerchantAlias) error

	// LoadAliases returns every stored alias ordered by key
	LoadAliases() ([]merchant.MerchantAlias, error)

	// SavePatterns upserts amount patterns; a stored row with more observations is kept
	SavePatterns(patterns []merchant.AmountPattern) error

	// LoadPatterns returns every stored amount pattern
	LoadPatterns() ([]merchant.AmountPattern, error)
}

// RunRepository handles reconciliation run tracking
type RunRepository interface {
	// StartRun records the start of a run
	StartRun(run *Run) error

	// CompleteRun records the final counts and status of a run
	CompleteRun(run *Run) error

	// SaveAssignments stores the assignments of a run
	SaveAssignments(runID string, assignments []AssignmentRecord) error

	// SaveSkipped stores the malformed records a run reported
	SaveSkipped(runID string, skipped []SkippedRecord) error

	// ListRuns returns runs, most recent first
	ListRuns(limit, offset int) (*RunListResult, error)

	// GetRun retrieves a run by ID
	GetRun(runID string) (*Run, error)

	// GetAssignments returns the assignments of a run ordered by receipt ID
	GetAssignments(runID string) ([]AssignmentRecord, error)

	// GetSkipped returns the skipped records of a run in input order
	GetSkipped(runID string) ([]SkippedRecord, error)
}
