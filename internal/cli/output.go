package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/application/service"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/validator"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/storage"
)

// runOutput is the --json shape of the run command
type runOutput struct {
	*service.RunReport
	FeedSkipped []validator.Skipped `json:"feed_skipped,omitempty"`
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintHeader prints the application header
func PrintHeader(w io.Writer, dryRun bool) {
	mode := "PRODUCTION"
	if dryRun {
		mode = "DRY-RUN"
	}
	fmt.Fprintf(w, "reconciler (%s mode)\n", mode)
}

// PrintRunSummary prints the assignments and counts of a run
func PrintRunSummary(w io.Writer, report *service.RunReport, feedSkipped []validator.Skipped) {
	res := report.Result
	sum := res.Summary

	fmt.Fprintln(w, strings.Repeat("-", 60))
	if len(res.Assignments) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RECEIPT\tTRANSACTION\tMERCHANT\tSTRATEGY\tTIER\tSCORE")
		for _, a := range res.Assignments {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
				a.ReceiptID, a.TransactionID, a.CanonicalMerchant, a.Strategy, tierLabel(a.Tier), a.Confidence)
		}
		_ = tw.Flush()
		fmt.Fprintln(w, strings.Repeat("-", 60))
	}

	fmt.Fprintf(w, "Summary: Assigned=%d AutoAccepted=%d Review=%d Conflicts=%d Learned=%d\n",
		len(res.Assignments), sum.AutoAccepted, sum.NeedsReview, sum.Conflicts, sum.Learned)
	fmt.Fprintf(w, "Unmatched: Receipts=%d Transactions=%d\n", sum.UnmatchedReceipts, sum.UnmatchedTransactions)

	if len(sum.ByStrategy) > 0 {
		names := make([]string, 0, len(sum.ByStrategy))
		for name := range sum.ByStrategy {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s=%d", name, sum.ByStrategy[name])
		}
		fmt.Fprintf(w, "Strategies: %s\n", strings.Join(parts, " "))
	}

	skipped := append(append([]validator.Skipped(nil), feedSkipped...), res.Skipped...)
	if len(skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped:")
		for _, s := range skipped {
			fmt.Fprintf(w, "  - %s #%d %s: %s\n", s.Kind, s.Index, s.ID, s.Reason)
		}
	}

	fmt.Fprintf(w, "\nRun %s recorded in %s.\n", report.RunID, res.Duration.Round(time.Millisecond))
}

// PrintRuns prints a page of stored runs
func PrintRuns(w io.Writer, result *storage.RunListResult) {
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tDRY RUN\tAUTO\tREVIEW\tLEARNED")
	for _, r := range result.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status, r.DryRun, r.AutoAccepted, r.NeedsReview, r.Learned)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "Showing %d of %d runs\n", len(result.Runs), result.TotalCount)
}

func tierLabel(t matcher.Tier) string {
	if t == matcher.TierAutoAccept {
		return "auto"
	}
	return "review"
}
