// Package reconcile runs one reconciliation batch end to end.
//
// A run moves through fixed phases and never interleaves them:
//
//	validate -> snapshot aliases -> generate candidates (parallel)
//	         -> resolve (single-threaded) -> apply -> learn (sole alias writer)
//
// Candidate generation only reads the transactions and an immutable alias
// snapshot, so receipts are fanned out across workers. Everything after that
// is sequential. Context cancellation is checked between phases. A caller
// that persists results can defer the learn phase and commit the
// observations itself once its writes succeed.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/categorizer"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/records"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/validator"
	"golang.org/x/sync/errgroup"
)

// Engine reconciles receipts against transactions
type Engine struct {
	config     Config
	aliases    *merchant.Table
	classifier *categorizer.Classifier
	matcher    *matcher.Matcher
	resolver   *matcher.Resolver
	logger     *slog.Logger
}

// NewEngine creates an engine. The alias table is shared across runs. With
// Options.DeferLearning the caller commits observations itself through Learn.
// The classifier may be nil.
func NewEngine(config Config, aliases *merchant.Table, classifier *categorizer.Classifier, logger *slog.Logger) *Engine {
	if aliases == nil {
		aliases = merchant.NewTable(config.Merchant)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		config:     config,
		aliases:    aliases,
		classifier: classifier,
		matcher:    matcher.NewMatcher(config.Matcher, classifier),
		resolver:   matcher.NewResolver(config.Matcher),
		logger:     logger,
	}
}

// Aliases returns the alias table the engine learns into
func (e *Engine) Aliases() *merchant.Table {
	return e.aliases
}

// Run reconciles one batch. Data problems never fail the run: malformed
// records are skipped and reported. The only error is a cancelled context.
func (e *Engine) Run(ctx context.Context, batch Batch, opts Options) (*Result, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 1: validate
	valid := validator.ValidateBatch(batch.Transactions, batch.Receipts)
	for _, s := range valid.Skipped {
		e.logger.Warn("Skipping malformed record", "kind", s.Kind, "id", s.ID, "index", s.Index, "reason", s.Reason)
	}

	// Phase 2: snapshot; nothing writes the table until the learn phase
	snapshot := e.aliases.Snapshot()
	norm := merchant.NewNormalizer(snapshot, e.config.Merchant)

	e.logger.Info("Starting reconciliation",
		"transactions", len(valid.Transactions),
		"receipts", len(valid.Receipts),
		"skipped", len(valid.Skipped),
		"aliases", snapshot.Len(),
		"dry_run", opts.DryRun,
	)

	// Phase 3: candidates
	candidates, err := e.generate(ctx, valid.Receipts, valid.Transactions, norm, e.workers(opts))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 4: resolve
	openReceipts, openTxns := openIDs(valid.Receipts, valid.Transactions)
	resolution := e.resolver.Resolve(candidates, openReceipts, openTxns)
	e.logger.Debug("Resolved assignments",
		"candidates", len(candidates),
		"assignments", len(resolution.Assignments),
		"conflicts", resolution.Conflicts,
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 5: apply
	result := e.apply(valid, resolution, norm)
	result.Skipped = valid.Skipped
	result.DryRun = opts.DryRun
	result.Summary.Candidates = len(candidates)
	result.Summary.Conflicts = resolution.Conflicts

	// Phase 6: learn
	result.Observations = observations(result)
	if !opts.DryRun && !opts.DeferLearning {
		result.Summary.Learned = e.Learn(e.aliases, result.Observations)
	}

	result.Duration = time.Since(start)
	e.logger.Info("Reconciliation complete",
		"auto_accepted", result.Summary.AutoAccepted,
		"needs_review", result.Summary.NeedsReview,
		"unmatched_receipts", result.Summary.UnmatchedReceipts,
		"unmatched_transactions", result.Summary.UnmatchedTransactions,
		"learned", result.Summary.Learned,
		"duration", result.Duration,
	)

	return result, nil
}

// Learn commits observations into table in one write and returns how many
// were applied. It does nothing when learning is disabled.
func (e *Engine) Learn(table *merchant.Table, observations []merchant.Observation) int {
	if !e.config.Learning || len(observations) == 0 {
		return 0
	}
	learned, errs := table.LearnAll(observations)
	for _, err := range errs {
		e.logger.Warn("Alias observation rejected", "error", err)
	}
	return learned
}

// generate fans candidate generation out across receipts. Results are slotted
// by receipt index so the flattened order does not depend on scheduling.
func (e *Engine) generate(
	ctx context.Context,
	receipts []records.Receipt,
	transactions []records.Transaction,
	norm *merchant.Normalizer,
	workers int,
) ([]matcher.Candidate, error) {
	perReceipt := make([][]matcher.Candidate, len(receipts))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := range receipts {
		g.Go(func() error {
			perReceipt[i] = e.matcher.GenerateCandidates(receipts[i], transactions, norm)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("candidate generation failed: %w", err)
	}

	var all []matcher.Candidate
	for i, cands := range perReceipt {
		if len(cands) == 0 && !receipts[i].IsMatched() {
			e.logger.Debug("No candidates for receipt", "receipt_id", receipts[i].ID)
		}
		all = append(all, cands...)
	}
	return all, ctx.Err()
}

func (e *Engine) workers(opts Options) int {
	switch {
	case opts.Workers > 0:
		return opts.Workers
	case e.config.Workers > 0:
		return e.config.Workers
	default:
		return runtime.GOMAXPROCS(0)
	}
}

// openIDs lists the records still eligible for matching, in input order
func openIDs(receipts []records.Receipt, transactions []records.Transaction) ([]string, []string) {
	receiptIDs := make([]string, 0, len(receipts))
	for _, r := range receipts {
		if !r.IsMatched() {
			receiptIDs = append(receiptIDs, r.ID)
		}
	}
	txnIDs := make([]string, 0, len(transactions))
	for _, t := range transactions {
		if !t.IsMatched() {
			txnIDs = append(txnIDs, t.ID)
		}
	}
	return receiptIDs, txnIDs
}
