package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sdg-cli/internal/indicator"
	"github.com/sells-group/sdg-cli/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect stored indicator results",
	Long:  "Commands for listing and viewing indicator results saved by previous runs.",
}

// -- results list --

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored results by year",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		from, _ := cmd.Flags().GetInt("from")
		to, _ := cmd.Flags().GetInt("to")
		limit, _ := cmd.Flags().GetInt("limit")

		results, err := st.ListResults(ctx, store.ResultFilter{FromYear: from, ToYear: to, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "results list")
		}

		if len(results) == 0 {
			fmt.Fprintln(os.Stderr, "No results found.")
			return nil
		}

		formatResultsList(os.Stdout, results)
		return nil
	},
}

// -- results show --

var resultsShowCmd = &cobra.Command{
	Use:   "show <year>",
	Short: "Show the latest result for a year",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		year, err := strconv.Atoi(args[0])
		if err != nil {
			return eris.Wrapf(err, "results show: invalid year %q", args[0])
		}

		st, err := requireStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := st.GetResult(ctx, year)
		if err != nil {
			return eris.Wrap(err, "results show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	resultsListCmd.Flags().Int("from", 0, "first year to include")
	resultsListCmd.Flags().Int("to", 0, "last year to include")
	resultsListCmd.Flags().Int("limit", 50, "max number of results to display")

	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	rootCmd.AddCommand(resultsCmd)
}

// requireStore opens the configured store and fails when storage is disabled.
func requireStore(cmd *cobra.Command) (store.Store, error) {
	st, err := initStore(cmd.Context(), cfg.Store)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("result store is disabled (store.driver=none)")
	}
	return st, nil
}

// formatResultsList writes a tabular list of stored results to w.
func formatResultsList(out io.Writer, results []indicator.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "YEAR\tSDG_9_1_1\tRURAL_POP\tCOVERED_POP\tMATCH\tCOMPUTED\tRUN_ID")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%d\t%.4f\t%.0f\t%.0f\t%s=%s\t%s\t%s\n",
			r.Year,
			r.Value,
			r.RuralPopulation,
			r.CoveredPopulation,
			r.Match.ColumnA,
			r.Match.ColumnB,
			r.ComputedAt.Format("2006-01-02 15:04"),
			shortID(r.RunID),
		)
	}
	_ = w.Flush()
}
