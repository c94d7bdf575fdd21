package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
	_ "github.com/mattn/go-sqlite3"
)

const defaultListLimit = 50

// Storage provides SQLite database access for aliases and runs.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run all pending migrations
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Storage{db: db}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// ================================================================
// ALIASES
// ================================================================

// SaveAliases upserts aliases in one transaction
func (s *Storage) SaveAliases(aliases []merchant.MerchantAlias) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
	INSERT INTO merchant_aliases
	(alias_key, canonical_name, business_type_hint, observation_count, confidence, secondary_json, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(alias_key) DO UPDATE SET
		canonical_name = excluded.canonical_name,
		business_type_hint = excluded.business_type_hint,
		observation_count = excluded.observation_count,
		confidence = excluded.confidence,
		secondary_json = excluded.secondary_json,
		updated_at = excluded.updated_at
	WHERE excluded.observation_count >= merchant_aliases.observation_count
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare alias upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, a := range aliases {
		secondary := a.Secondary
		if secondary == nil {
			secondary = []merchant.AliasMapping{}
		}
		secondaryJSON, err := json.Marshal(secondary)
		if err != nil {
			return fmt.Errorf("failed to encode secondary mappings for %q: %w", a.Key, err)
		}
		if _, err := stmt.Exec(
			a.Key,
			a.CanonicalName,
			a.BusinessTypeHint,
			a.ObservationCount,
			a.Confidence,
			string(secondaryJSON),
			nullTime(a.UpdatedAt),
		); err != nil {
			return fmt.Errorf("failed to save alias %q: %w", a.Key, err)
		}
	}

	return tx.Commit()
}

// LoadAliases returns every stored alias ordered by key
func (s *Storage) LoadAliases() ([]merchant.MerchantAlias, error) {
	rows, err := s.db.Query(`
	SELECT alias_key, canonical_name, business_type_hint, observation_count, confidence, secondary_json, updated_at
	FROM merchant_aliases
	ORDER BY alias_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var aliases []merchant.MerchantAlias
	for rows.Next() {
		var (
			a             merchant.MerchantAlias
			secondaryJSON string
			updatedAt     sql.NullTime
		)
		if err := rows.Scan(
			&a.Key,
			&a.CanonicalName,
			&a.BusinessTypeHint,
			&a.ObservationCount,
			&a.Confidence,
			&secondaryJSON,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		if secondaryJSON != "" && secondaryJSON != "[]" {
			if err := json.Unmarshal([]byte(secondaryJSON), &a.Secondary); err != nil {
				return nil, fmt.Errorf("failed to decode secondary mappings for %q: %w", a.Key, err)
			}
		}
		if updatedAt.Valid {
			a.UpdatedAt = updatedAt.Time
		}
		aliases = append(aliases, a)
	}

	return aliases, rows.Err()
}

// SavePatterns upserts amount patterns in one transaction
func (s *Storage) SavePatterns(patterns []merchant.AmountPattern) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
	INSERT INTO amount_patterns
	(canonical_key, canonical_name, rounded_amount, observation_count, last_seen)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(canonical_key, rounded_amount) DO UPDATE SET
		canonical_name = excluded.canonical_name,
		observation_count = excluded.observation_count,
		last_seen = excluded.last_seen
	WHERE excluded.observation_count >= amount_patterns.observation_count
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare pattern upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range patterns {
		if _, err := stmt.Exec(
			p.CanonicalKey,
			p.CanonicalName,
			p.RoundedAmount.String(),
			p.ObservationCount,
			nullTime(p.LastSeen),
		); err != nil {
			return fmt.Errorf("failed to save pattern %q/%s: %w", p.CanonicalKey, p.RoundedAmount, err)
		}
	}

	return tx.Commit()
}

// LoadPatterns returns every stored amount pattern
func (s *Storage) LoadPatterns() ([]merchant.AmountPattern, error) {
	rows, err := s.db.Query(`
	SELECT canonical_key, canonical_name, rounded_amount, observation_count, last_seen
	FROM amount_patterns
	ORDER BY canonical_key, CAST(rounded_amount AS REAL)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []merchant.AmountPattern
	for rows.Next() {
		var (
			p        merchant.AmountPattern
			lastSeen sql.NullTime
		)
		if err := rows.Scan(&p.CanonicalKey, &p.CanonicalName, &p.RoundedAmount, &p.ObservationCount, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		if lastSeen.Valid {
			p.LastSeen = lastSeen.Time
		}
		patterns = append(patterns, p)
	}

	return patterns, rows.Err()
}

// ================================================================
// RUNS
// ================================================================

// StartRun records the start of a run
func (s *Storage) StartRun(run *Run) error {
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	_, err := s.db.Exec(`
	INSERT INTO reconcile_runs (id, started_at, dry_run, status, transactions, receipts)
	VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC(), run.DryRun, run.Status, run.Transactions, run.Receipts)
	if err != nil {
		return fmt.Errorf("failed to start run %s: %w", run.ID, err)
	}
	return nil
}

// CompleteRun records the final counts and status of a run
func (s *Storage) CompleteRun(run *Run) error {
	var completedAt any
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC()
	}

	res, err := s.db.Exec(`
	UPDATE reconcile_runs SET
		completed_at = ?,
		status = ?,
		error_message = ?,
		transactions = ?,
		receipts = ?,
		candidates = ?,
		auto_accepted = ?,
		needs_review = ?,
		unmatched_receipts = ?,
		unmatched_transactions = ?,
		skipped = ?,
		conflicts = ?,
		learned = ?,
		duration_ms = ?
	WHERE id = ?
	`,
		completedAt,
		run.Status,
		run.ErrorMessage,
		run.Transactions,
		run.Receipts,
		run.Candidates,
		run.AutoAccepted,
		run.NeedsReview,
		run.UnmatchedReceipts,
		run.UnmatchedTransactions,
		run.Skipped,
		run.Conflicts,
		run.Learned,
		run.DurationMS,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// SaveAssignments stores the assignments of a run in one transaction
func (s *Storage) SaveAssignments(runID string, assignments []AssignmentRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
	INSERT INTO assignments
	(run_id, receipt_id, transaction_id, confidence, strategy, tier, days_diff, amount_diff,
	 amount_score, date_score, merchant_score, time_of_day_score, category_score,
	 canonical_merchant, category, business_type)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare assignment insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, a := range assignments {
		if _, err := stmt.Exec(
			runID,
			a.ReceiptID,
			a.TransactionID,
			a.Confidence,
			string(a.Strategy),
			string(a.Tier),
			a.DaysDiff,
			a.AmountDiff.String(),
			a.Components.Amount,
			a.Components.Date,
			a.Components.Merchant,
			a.Components.TimeOfDay,
			a.Components.CategoryConsistency,
			a.CanonicalMerchant,
			a.Category,
			a.BusinessType,
		); err != nil {
			return fmt.Errorf("failed to save assignment %s->%s: %w", a.ReceiptID, a.TransactionID, err)
		}
	}

	return tx.Commit()
}

// SaveSkipped stores the malformed records a run reported
func (s *Storage) SaveSkipped(runID string, skipped []SkippedRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, sk := range skipped {
		if _, err := tx.Exec(`
		INSERT INTO skipped_records (run_id, kind, record_id, record_index, reason)
		VALUES (?, ?, ?, ?, ?)
		`, runID, sk.Kind, sk.RecordID, sk.Index, sk.Reason); err != nil {
			return fmt.Errorf("failed to save skipped record %d: %w", sk.Index, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns runs, most recent first
func (s *Storage) ListRuns(limit, offset int) (*RunListResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM reconcile_runs`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	rows, err := s.db.Query(`
	SELECT `+runColumns+`
	FROM reconcile_runs
	ORDER BY started_at DESC, id
	LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &RunListResult{Runs: []Run{}, TotalCount: total, Limit: limit, Offset: offset}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		result.Runs = append(result.Runs, *run)
	}

	return result, rows.Err()
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM reconcile_runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return run, err
}

// GetAssignments returns the assignments of a run ordered by receipt ID
func (s *Storage) GetAssignments(runID string) ([]AssignmentRecord, error) {
	rows, err := s.db.Query(`
	SELECT run_id, receipt_id, transaction_id, confidence, strategy, tier, days_diff, amount_diff,
	       amount_score, date_score, merchant_score, time_of_day_score, category_score,
	       canonical_merchant, category, business_type
	FROM assignments
	WHERE run_id = ?
	ORDER BY receipt_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AssignmentRecord
	for rows.Next() {
		var (
			a              AssignmentRecord
			strategy, tier string
		)
		if err := rows.Scan(
			&a.RunID,
			&a.ReceiptID,
			&a.TransactionID,
			&a.Confidence,
			&strategy,
			&tier,
			&a.DaysDiff,
			&a.AmountDiff,
			&a.Components.Amount,
			&a.Components.Date,
			&a.Components.Merchant,
			&a.Components.TimeOfDay,
			&a.Components.CategoryConsistency,
			&a.CanonicalMerchant,
			&a.Category,
			&a.BusinessType,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.Strategy = matcher.Strategy(strategy)
		a.Tier = matcher.Tier(tier)
		out = append(out, a)
	}

	return out, rows.Err()
}

// GetSkipped returns the skipped records of a run in input order
func (s *Storage) GetSkipped(runID string) ([]SkippedRecord, error) {
	rows, err := s.db.Query(`
	SELECT run_id, kind, record_id, record_index, reason
	FROM skipped_records
	WHERE run_id = ?
	ORDER BY kind DESC, record_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query skipped records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SkippedRecord
	for rows.Next() {
		var sk SkippedRecord
		if err := rows.Scan(&sk.RunID, &sk.Kind, &sk.RecordID, &sk.Index, &sk.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan skipped record: %w", err)
		}
		out = append(out, sk)
	}

	return out, rows.Err()
}

const runColumns = `id, started_at, completed_at, dry_run, status, error_message,
	transactions, receipts, candidates, auto_accepted, needs_review,
	unmatched_receipts, unmatched_transactions, skipped, conflicts, learned, duration_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run         Run
		completedAt sql.NullTime
	)
	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&completedAt,
		&run.DryRun,
		&run.Status,
		&run.ErrorMessage,
		&run.Transactions,
		&run.Receipts,
		&run.Candidates,
		&run.AutoAccepted,
		&run.NeedsReview,
		&run.UnmatchedReceipts,
		&run.UnmatchedTransactions,
		&run.Skipped,
		&run.Conflicts,
		&run.Learned,
		&run.DurationMS,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
