package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// GlobalFlags are persistent flags shared by every command
type GlobalFlags struct {
	ConfigPath string
	DBPath     string
	Verbose    bool
}

// Bind registers the global flags on the root command
func (f *GlobalFlags) Bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.ConfigPath, "config", "", "Config file (default config.yaml, falling back to environment)")
	cmd.PersistentFlags().StringVar(&f.DBPath, "db", "", "SQLite database path (overrides config)")
	cmd.PersistentFlags().BoolVarP(&f.Verbose, "verbose", "v", false, "Verbose output")
}

// RunFlags are the flags of the run command
type RunFlags struct {
	TransactionsPath string
	ReceiptsPath     string
	DryRun           bool
	JSON             bool
	Workers          int
}

// Bind registers the run flags
func (f *RunFlags) Bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.TransactionsPath, "transactions", "t", "", "Transaction feed (.csv or .json)")
	cmd.Flags().StringVarP(&f.ReceiptsPath, "receipts", "r", "", "Receipt export (.csv or .json)")
	cmd.Flags().BoolVar(&f.DryRun, "dry-run", false, "Match and report without learning aliases")
	cmd.Flags().BoolVar(&f.JSON, "json", false, "Print the full result as JSON")
	cmd.Flags().IntVar(&f.Workers, "workers", 0, "Candidate workers (0 = configured default)")
}

// Validate checks flag combinations cobra cannot express
func (f RunFlags) Validate() error {
	if f.TransactionsPath == "" && f.ReceiptsPath == "" {
		return errors.New("at least one of --transactions or --receipts is required")
	}
	if f.Workers < 0 {
		return errors.New("--workers must not be negative")
	}
	return nil
}

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	Port int
}

// Bind registers the serve flags
func (f *ServeFlags) Bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.Port, "port", 0, "Port to listen on (0 = configured port)")
}

// ListFlags page through stored rows
type ListFlags struct {
	Limit  int
	Offset int
}

// Bind registers the list flags with the given default limit
func (f *ListFlags) Bind(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().IntVar(&f.Limit, "limit", defaultLimit, "Maximum rows to print")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "Rows to skip")
}
