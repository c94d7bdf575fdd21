package reconcile

import (
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/records"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/validator"
)

// Config holds engine configuration
type Config struct {
	Matcher  matcher.Config
	Merchant merchant.Config
	Learning bool // Feed auto-accepted assignments back into the alias table
	Workers  int  // Candidate generation parallelism; <= 0 means one per CPU
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Matcher:  matcher.DefaultConfig(),
		Merchant: merchant.DefaultConfig(),
		Learning: true,
	}
}

// Options holds per-run settings
type Options struct {
	DryRun  bool // Resolve and report, but do not learn aliases
	Workers int  // Overrides Config.Workers when > 0

	// DeferLearning leaves the alias table untouched; Result.Observations
	// still lists what would be learned
	DeferLearning bool
}

// Batch is one import cycle of records from the collaborators
type Batch struct {
	Transactions []records.Transaction `json:"transactions"`
	Receipts     []records.Receipt     `json:"receipts"`
}

// Summary holds result counts
type Summary struct {
	Transactions          int            `json:"transactions"`
	Receipts              int            `json:"receipts"`
	Candidates            int            `json:"candidates"`
	AutoAccepted          int            `json:"auto_accepted"`
	NeedsReview           int            `json:"needs_review"`
	UnmatchedReceipts     int            `json:"unmatched_receipts"`
	UnmatchedTransactions int            `json:"unmatched_transactions"`
	Skipped               int            `json:"skipped"`
	Conflicts             int            `json:"conflicts"`
	Learned               int            `json:"learned"`
	ByStrategy            map[string]int `json:"by_strategy"`
}

// Result holds reconciliation results. Records are updated copies; the
// batch passed to Run is left untouched.
type Result struct {
	Assignments           []matcher.Assignment   `json:"assignments"`
	Transactions          []records.Transaction  `json:"transactions"`
	Receipts              []records.Receipt      `json:"receipts"`
	UnmatchedReceipts     []string               `json:"unmatched_receipts"`
	UnmatchedTransactions []string               `json:"unmatched_transactions"`
	Skipped               []validator.Skipped    `json:"skipped"`
	Observations          []merchant.Observation `json:"-"` // What the learn phase committed, or would have on a dry or deferred run
	Summary               Summary                `json:"summary"`
	DryRun                bool                   `json:"dry_run"`
	Duration              time.Duration          `json:"duration_ns"`
}
