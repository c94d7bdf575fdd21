package cli

import (
	"github.com/spf13/cobra"

	"github.com/eshaffer321/receipt-reconciler/internal/adapters/feeds"
	"github.com/eshaffer321/receipt-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/receipt-reconciler/internal/application/service"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/validator"
)

func newRunCommand(global *GlobalFlags) *cobra.Command {
	flags := &RunFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile a transaction feed against a receipt export",
		Long: `Reconcile one batch and record the run.

This command:
1. Loads the transaction feed and the receipt export
2. Scores receipt/transaction candidates
3. Resolves them into one-to-one assignments
4. Learns merchant aliases from auto-accepted matches (unless --dry-run)
5. Records the run in SQLite

Example:
  reconciler run --transactions bank.csv --receipts receipts.json
  reconciler run -t bank.csv -r receipts.csv --dry-run --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.Validate(); err != nil {
				return err
			}
			return runReconcile(cmd, global, flags)
		},
	}

	flags.Bind(cmd)
	return cmd
}

func runReconcile(cmd *cobra.Command, global *GlobalFlags, flags *RunFlags) error {
	batch, feedSkipped, err := loadBatch(flags)
	if err != nil {
		return err
	}

	a, err := global.open(cmd.ErrOrStderr(), "cli")
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	report, err := a.service.Reconcile(cmd.Context(), service.ReconcileRequest{
		Batch:   batch,
		DryRun:  flags.DryRun,
		Workers: flags.Workers,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flags.JSON {
		return WriteJSON(out, runOutput{RunReport: report, FeedSkipped: feedSkipped})
	}
	PrintHeader(out, flags.DryRun)
	PrintRunSummary(out, report, feedSkipped)
	return nil
}

// loadBatch reads both feeds. Rows the feeds could not parse are returned
// separately; they never reach the engine.
func loadBatch(flags *RunFlags) (reconcile.Batch, []validator.Skipped, error) {
	var (
		batch   reconcile.Batch
		skipped []validator.Skipped
	)

	if flags.TransactionsPath != "" {
		txns, err := feeds.LoadTransactions(flags.TransactionsPath)
		if err != nil {
			return batch, nil, err
		}
		batch.Transactions = txns.Records
		skipped = append(skipped, txns.Skipped...)
	}

	if flags.ReceiptsPath != "" {
		receipts, err := feeds.LoadReceipts(flags.ReceiptsPath)
		if err != nil {
			return batch, nil, err
		}
		batch.Receipts = receipts.Records
		skipped = append(skipped, receipts.Skipped...)
	}

	return batch, skipped, nil
}
