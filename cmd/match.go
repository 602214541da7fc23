package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sdg-cli/internal/geo"
	"github.com/sells-group/sdg-cli/internal/lookup"
	"github.com/sells-group/sdg-cli/internal/schema"
	"github.com/sells-group/sdg-cli/internal/table"
)

var (
	matchSheet     string
	matchHeaderRow int
)

var matchCmd = &cobra.Command{
	Use:   "match <left> <right>",
	Short: "Score the column pairs of two tables and report the best join key",
	Long:  "Reads two tables (.shp, .xlsx or .csv), scores every comparable column pair by value overlap and prints the candidates with the best match.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := lookup.Options{SheetName: matchSheet, HeaderRow: matchHeaderRow}

		left, err := loadTable(args[0], opts)
		if err != nil {
			return err
		}
		right, err := loadTable(args[1], opts)
		if err != nil {
			return err
		}

		formatMatches(os.Stdout, schema.Candidates(left, right), schema.FindBestMatch(left, right))
		return nil
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchSheet, "sheet", "", "worksheet name for .xlsx inputs (default first sheet)")
	matchCmd.Flags().IntVar(&matchHeaderRow, "header-row", 0, "zero-based header row for .xlsx and .csv inputs")
	rootCmd.AddCommand(matchCmd)
}

// loadTable reads a shapefile's attributes or a lookup table.
func loadTable(path string, opts lookup.Options) (*table.Dataset, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		l, err := geo.ReadShapefile(path, "")
		if err != nil {
			return nil, eris.Wrapf(err, "match: read %s", path)
		}
		return l.Data, nil
	}
	d, err := lookup.Open(path, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "match: read %s", path)
	}
	return d, nil
}

func formatMatches(out io.Writer, candidates []schema.Match, best schema.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LEFT\tRIGHT\tSCORE")
	for _, m := range candidates {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\n", m.ColumnA, m.ColumnB, m.Score)
	}
	_ = w.Flush()

	if !best.Found {
		_, _ = fmt.Fprintln(out, "\nNo compatible column pair.")
		return
	}
	_, _ = fmt.Fprintf(out, "\nBest match: %s = %s (%.2f%%)\n", best.Match.ColumnA, best.Match.ColumnB, best.Match.Score)
}
