// Package cli implements the reconciler command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree. Each call returns a fresh tree so
// tests can run commands in isolation.
func NewRootCommand() *cobra.Command {
	global := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "reconciler",
		Short: "Match receipts to bank transactions",
		Long: `reconciler pairs extracted receipts with posted bank transactions.

It supports:
- CSV and JSON feeds for transactions and receipts
- Learning merchant aliases from confirmed matches
- Run history in SQLite
- Dry-run mode for previewing matches
- An HTTP API with Prometheus metrics

Example:
  reconciler run --transactions bank.csv --receipts receipts.json
  reconciler run --transactions bank.csv --receipts receipts.json --dry-run --json
  reconciler serve --port 8085`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	global.Bind(root)

	root.AddCommand(
		newRunCommand(global),
		newServeCommand(global),
		newRunsCommand(global),
		newAliasesCommand(global),
		newNormalizeCommand(global),
		newClassifyCommand(global),
	)
	return root
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("Error:", err)
		return err
	}
	return nil
}
