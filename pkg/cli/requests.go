package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/commerce-it/mockserver/pkg/cli/internal/output"
	"github.com/commerce-it/mockserver/pkg/requestlog"
)

// requestsFlags holds all flags for the requests command.
type requestsFlags struct {
	method    string
	path      string
	ruleID    string
	unmatched bool
	limit     int
}

var requestsFlagVals requestsFlags

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Show the request journal of a running server, newest first",
	Example: `  # Requests no rule matched, with the closest rules
  mockserver requests --unmatched

  # The last 5 POSTs under /orders
  mockserver requests --method POST --path /orders --limit 5`,
	Args: cobra.NoArgs,
	RunE: runRequests,
}

var requestsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the request journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := newAdminClient().ClearRequests(cmd.Context()); err != nil {
			return err
		}
		return printResult(cmd, map[string]bool{"cleared": true}, func() {
			fmt.Fprintln(cmd.OutOrStdout(), "Request journal cleared")
		})
	},
}

func init() {
	f := &requestsFlagVals

	requestsCmd.Flags().StringVarP(&f.method, "method", "m", "", "Filter by HTTP method")
	requestsCmd.Flags().StringVar(&f.path, "path", "", "Filter by path prefix")
	requestsCmd.Flags().StringVar(&f.ruleID, "rule", "", "Filter by matched rule ID")
	requestsCmd.Flags().BoolVar(&f.unmatched, "unmatched", false, "Only requests no rule matched")
	requestsCmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "Maximum entries to show (0 = all)")

	requestsCmd.AddCommand(requestsClearCmd)
	rootCmd.AddCommand(requestsCmd)
}

func runRequests(cmd *cobra.Command, _ []string) error {
	f := &requestsFlagVals

	entries, err := newAdminClient().Requests(cmd.Context(), &requestlog.Filter{
		Method:        f.method,
		Path:          f.path,
		MatchedRuleID: f.ruleID,
		Unmatched:     f.unmatched,
		Limit:         f.limit,
	})
	if err != nil {
		return err
	}

	return printResult(cmd, entries, func() {
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No requests recorded")
			return
		}
		tw := output.Table(out)
		fmt.Fprintln(tw, "TIME\tMETHOD\tPATH\tSTATUS\tRULE\tDURATION")
		for _, e := range entries {
			path := e.Path
			if e.QueryString != "" {
				path += "?" + e.QueryString
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%dms\n",
				e.Timestamp.Format("15:04:05.000"), e.Method, path, e.Status, or(e.MatchedRule, "(unmatched)"), e.DurationMs)
		}
		_ = tw.Flush()

		for _, e := range entries {
			if e.Matched() || len(e.NearMisses) == 0 {
				continue
			}
			fmt.Fprintf(out, "\n%s %s matched no rule. Closest:\n", e.Method, e.Path)
			for _, nm := range e.NearMisses {
				fmt.Fprintf(out, "  %s: %s\n", nm.Rule, nm.Reason)
			}
		}
	})
}
