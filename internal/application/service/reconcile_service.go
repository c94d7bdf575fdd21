// Package service is the long-lived holder of reconciliation state.
//
// A ReconcileService owns the alias table, the classifier and the repository.
// It loads learned aliases at start-up, runs one batch at a time through the
// engine and persists the run, its assignments and the updated alias table.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/categorizer"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/metrics"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/storage"
	"github.com/google/uuid"
)

// ErrEmptyBatch is returned when a batch has neither transactions nor receipts
var ErrEmptyBatch = errors.New("empty batch")

// ReconcileRequest holds parameters for one run
type ReconcileRequest struct {
	Batch   reconcile.Batch
	DryRun  bool
	Workers int
}

// RunReport is the outcome of Reconcile
type RunReport struct {
	RunID  string            `json:"run_id"`
	Result *reconcile.Result `json:"result"`
}

// RunDetail is a stored run with its assignments and skipped records
type RunDetail struct {
	Run         *storage.Run               `json:"run"`
	Assignments []storage.AssignmentRecord `json:"assignments"`
	Skipped     []storage.SkippedRecord    `json:"skipped"`
}

// ReconcileService manages reconciliation runs
type ReconcileService struct {
	cfg        *config.Config
	storage    storage.Repository
	recorder   *metrics.Recorder
	logger     *slog.Logger
	aliases    *merchant.Table
	classifier *categorizer.Classifier
	engine     *reconcile.Engine

	// One batch at a time; Reconcile is the alias table's only writer
	runMu sync.Mutex

	now   func() time.Time
	newID func() string
}

// NewReconcileService builds the classifier from the configured rules and
// loads the persisted alias table. The recorder may be nil.
func NewReconcileService(
	cfg *config.Config,
	store storage.Repository,
	recorder *metrics.Recorder,
	logger *slog.Logger,
) (*ReconcileService, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	rules, err := cfg.Rules()
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	opts := []categorizer.Option{categorizer.WithCache(categorizer.NewMemoryCache(cfg.Classifier.CacheSize))}
	if len(cfg.Classifier.BusinessEvents) > 0 {
		opts = append(opts, categorizer.WithBusinessContext(categorizer.NewCalendar(cfg.Classifier.BusinessEvents)))
	}
	classifier, err := categorizer.NewClassifier(rules, cfg.CategorizerConfig(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}

	aliases, err := loadAliasTable(store, cfg.MerchantConfig())
	if err != nil {
		return nil, err
	}

	engineCfg := cfg.EngineConfig()
	s := &ReconcileService{
		cfg:        cfg,
		storage:    store,
		recorder:   recorder,
		logger:     logger,
		aliases:    aliases,
		classifier: classifier,
		engine:     reconcile.NewEngine(engineCfg, aliases, classifier, logger.With("system", "engine")),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	if recorder != nil {
		recorder.SetAliasCount(aliases.Len())
	}

	logger.Info("Reconcile service ready",
		"aliases", aliases.Len(),
		"patterns", len(aliases.Patterns()),
		"rules", classifier.RuleCount(),
		"rules_version", classifier.Version(),
	)
	return s, nil
}

func loadAliasTable(store storage.Repository, cfg merchant.Config) (*merchant.Table, error) {
	table := merchant.NewTable(cfg)

	aliases, err := store.LoadAliases()
	if err != nil {
		return nil, fmt.Errorf("failed to load aliases: %w", err)
	}
	for _, a := range aliases {
		table.Merge(a)
	}

	patterns, err := store.LoadPatterns()
	if err != nil {
		return nil, fmt.Errorf("failed to load amount patterns: %w", err)
	}
	for _, p := range patterns {
		table.MergePattern(p)
	}
	return table, nil
}

// Reconcile runs one batch and persists the outcome. Runs are serialised.
// A dry run is recorded but never writes aliases.
func (s *ReconcileService) Reconcile(ctx context.Context, req ReconcileRequest) (*RunReport, error) {
	if len(req.Batch.Transactions) == 0 && len(req.Batch.Receipts) == 0 {
		return nil, ErrEmptyBatch
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	run := &storage.Run{
		ID:           s.newID(),
		StartedAt:    s.now(),
		DryRun:       req.DryRun,
		Transactions: len(req.Batch.Transactions),
		Receipts:     len(req.Batch.Receipts),
	}
	if err := s.storage.StartRun(run); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	logger := s.logger.With("run_id", run.ID)

	result, err := s.engine.Run(ctx, req.Batch, reconcile.Options{
		DryRun:        req.DryRun,
		Workers:       req.Workers,
		DeferLearning: true,
	})
	if err != nil {
		s.fail(run, err)
		return nil, fmt.Errorf("reconciliation failed: %w", err)
	}

	staged, err := s.persist(run, result)
	if err != nil {
		s.fail(run, err)
		return nil, err
	}
	if staged != nil {
		s.aliases.Commit(staged)
	}

	s.observe(result)
	logger.Info("Run recorded",
		"assignments", len(result.Assignments),
		"learned", result.Summary.Learned,
		"dry_run", req.DryRun,
	)
	return &RunReport{RunID: run.ID, Result: result}, nil
}

// persist writes the run outcome. Observations are learned into a copy of
// the alias table; the copy is returned for the caller to commit once every
// write has succeeded, so a failed run leaves the live table untouched.
// Aliases are saved only when something was learned.
func (s *ReconcileService) persist(run *storage.Run, result *reconcile.Result) (*merchant.Table, error) {
	records := make([]storage.AssignmentRecord, len(result.Assignments))
	for i, a := range result.Assignments {
		records[i] = storage.AssignmentRecord{RunID: run.ID, Assignment: a}
	}
	if err := s.storage.SaveAssignments(run.ID, records); err != nil {
		return nil, fmt.Errorf("failed to save assignments: %w", err)
	}

	if len(result.Skipped) > 0 {
		skipped := make([]storage.SkippedRecord, len(result.Skipped))
		for i, sk := range result.Skipped {
			skipped[i] = storage.SkippedRecord{
				RunID:    run.ID,
				Kind:     string(sk.Kind),
				RecordID: sk.ID,
				Index:    sk.Index,
				Reason:   sk.Reason,
			}
		}
		if err := s.storage.SaveSkipped(run.ID, skipped); err != nil {
			return nil, fmt.Errorf("failed to save skipped records: %w", err)
		}
	}

	var staged *merchant.Table
	if !run.DryRun && len(result.Observations) > 0 {
		staged = s.aliases.Clone()
		result.Summary.Learned = s.engine.Learn(staged, result.Observations)
	}
	if result.Summary.Learned > 0 {
		if err := s.storage.SaveAliases(staged.Aliases()); err != nil {
			return nil, fmt.Errorf("failed to save aliases: %w", err)
		}
		if err := s.storage.SavePatterns(staged.Patterns()); err != nil {
			return nil, fmt.Errorf("failed to save amount patterns: %w", err)
		}
	} else {
		staged = nil
	}

	completed := s.now()
	sum := result.Summary
	run.CompletedAt = &completed
	run.Status = storage.RunStatusCompleted
	run.Candidates = sum.Candidates
	run.AutoAccepted = sum.AutoAccepted
	run.NeedsReview = sum.NeedsReview
	run.UnmatchedReceipts = sum.UnmatchedReceipts
	run.UnmatchedTransactions = sum.UnmatchedTransactions
	run.Skipped = sum.Skipped
	run.Conflicts = sum.Conflicts
	run.Learned = sum.Learned
	run.DurationMS = result.Duration.Milliseconds()
	if err := s.storage.CompleteRun(run); err != nil {
		return nil, fmt.Errorf("failed to complete run: %w", err)
	}
	return staged, nil
}

func (s *ReconcileService) fail(run *storage.Run, cause error) {
	completed := s.now()
	run.CompletedAt = &completed
	run.Status = storage.RunStatusFailed
	run.ErrorMessage = cause.Error()
	if err := s.storage.CompleteRun(run); err != nil {
		s.logger.Error("Failed to record run failure", "run_id", run.ID, "error", err)
	}
	if s.recorder != nil {
		s.recorder.ObserveFailure(run.DryRun)
	}
	s.logger.Error("Run failed", "run_id", run.ID, "error", cause)
}

func (s *ReconcileService) observe(result *reconcile.Result) {
	if s.recorder == nil {
		return
	}
	stats := metrics.RunStats{
		DryRun:                result.DryRun,
		Duration:              result.Duration,
		Candidates:            result.Summary.Candidates,
		Conflicts:             result.Summary.Conflicts,
		Learned:               result.Summary.Learned,
		UnmatchedReceipts:     result.Summary.UnmatchedReceipts,
		UnmatchedTransactions: result.Summary.UnmatchedTransactions,
		Skipped:               map[string]int{},
	}
	for _, sk := range result.Skipped {
		stats.Skipped[string(sk.Kind)]++
	}
	for _, a := range result.Assignments {
		stats.Assignments = append(stats.Assignments, metrics.AssignmentStat{Tier: string(a.Tier), Strategy: string(a.Strategy)})
	}
	s.recorder.ObserveRun(stats)
	s.recorder.SetAliasCount(s.aliases.Len())
}

// Normalize resolves raw merchant text against the current alias table
func (s *ReconcileService) Normalize(raw string) merchant.Result {
	norm := merchant.NewNormalizer(s.aliases.Snapshot(), s.cfg.MerchantConfig())
	return norm.Normalize(raw)
}

// Classify runs the category classifier on its own
func (s *ReconcileService) Classify(in categorizer.Input) categorizer.Classification {
	return s.classifier.Classify(in)
}

// Aliases returns the learned aliases ordered by key
func (s *ReconcileService) Aliases() []merchant.MerchantAlias {
	return s.aliases.Aliases()
}

// AliasCount returns the number of learned alias keys
func (s *ReconcileService) AliasCount() int {
	return s.aliases.Len()
}

// RulesVersion returns the version of the loaded rule table
func (s *ReconcileService) RulesVersion() string {
	return s.classifier.Version()
}

// ListRuns returns stored runs, most recent first
func (s *ReconcileService) ListRuns(limit, offset int) (*storage.RunListResult, error) {
	return s.storage.ListRuns(limit, offset)
}

// GetRun returns a stored run with its assignments and skipped records
func (s *ReconcileService) GetRun(runID string) (*RunDetail, error) {
	run, err := s.storage.GetRun(runID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.storage.GetAssignments(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	skipped, err := s.storage.GetSkipped(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load skipped records: %w", err)
	}
	if assignments == nil {
		assignments = []storage.AssignmentRecord{}
	}
	if skipped == nil {
		skipped = []storage.SkippedRecord{}
	}
	return &RunDetail{Run: run, Assignments: assignments, Skipped: skipped}, nil
}
