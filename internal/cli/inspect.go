package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/categorizer"
)

func newRunsCommand(global *GlobalFlags) *cobra.Command {
	flags := &ListFlags{}
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := global.open(cmd.ErrOrStderr(), "cli")
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				detail, err := a.service.GetRun(args[0])
				if err != nil {
					return err
				}
				return WriteJSON(out, detail)
			}

			result, err := a.service.ListRuns(flags.Limit, flags.Offset)
			if err != nil {
				return err
			}
			if asJSON {
				return WriteJSON(out, result)
			}
			PrintRuns(out, result)
			return nil
		},
	}

	flags.Bind(cmd, 20)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newAliasesCommand(global *GlobalFlags) *cobra.Command {
	flags := &ListFlags{}

	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "Print the learned merchant alias table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := global.open(cmd.ErrOrStderr(), "cli")
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			all := a.service.Aliases()
			out := cmd.OutOrStdout()
			if len(all) == 0 {
				fmt.Fprintln(out, "No aliases learned yet.")
				return nil
			}

			start := min(max(flags.Offset, 0), len(all))
			end := len(all)
			if flags.Limit > 0 {
				end = min(start+flags.Limit, len(all))
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tCANONICAL\tSEEN\tCONFIDENCE\tALSO")
			for _, alias := range all[start:end] {
				also := make([]string, 0, len(alias.Secondary))
				for _, s := range alias.Secondary {
					also = append(also, fmt.Sprintf("%s (%d)", s.CanonicalName, s.ObservationCount))
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%s\n",
					alias.Key, alias.CanonicalName, alias.ObservationCount, alias.Confidence, strings.Join(also, ", "))
			}
			_ = tw.Flush()
			fmt.Fprintf(out, "Showing %d of %d aliases\n", end-start, len(all))
			return nil
		},
	}

	flags.Bind(cmd, 50)
	return cmd
}

func newNormalizeCommand(global *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <merchant text>",
		Short: "Resolve raw merchant text against the alias table",
		Example: `  reconciler normalize "SQ *BLUE BOTTLE"
  reconciler normalize AMZN MKTP US*2K3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := global.open(cmd.ErrOrStderr(), "cli")
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res := a.service.Normalize(strings.Join(args, " "))
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t(source=%s confidence=%.2f key=%q)\n", res.Name, res.Source, res.Confidence, res.Key)
			return nil
		},
	}
}

func newClassifyCommand(global *GlobalFlags) *cobra.Command {
	var (
		amount string
		at     string
	)

	cmd := &cobra.Command{
		Use:   "classify <merchant>",
		Short: "Classify a merchant into a category and business type",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := categorizer.Input{Merchant: strings.Join(args, " ")}
			if amount != "" {
				d, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("invalid --amount: %w", err)
				}
				in.Amount = d
			}
			if at != "" {
				ts, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at (want RFC3339): %w", err)
				}
				in.At = &ts
			}

			a, err := global.open(cmd.ErrOrStderr(), "cli")
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			c := a.service.Classify(in)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t(confidence=%.2f rules=%s version=%s)\n",
				c.Category, c.BusinessType, c.Confidence, strings.Join(c.MatchedRules, ","), a.service.RulesVersion())
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Transaction amount")
	cmd.Flags().StringVar(&at, "at", "", "When the purchase happened (RFC3339), for business calendar lookups")
	return cmd
}
