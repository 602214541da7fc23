package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sdg-cli/internal/config"
	"github.com/sells-group/sdg-cli/internal/indicator"
	"github.com/sells-group/sdg-cli/internal/lookup"
	"github.com/sells-group/sdg-cli/internal/metrics"
	"github.com/sells-group/sdg-cli/internal/raster"
	"github.com/sells-group/sdg-cli/internal/resilience"
	"github.com/sells-group/sdg-cli/internal/store"
)

var (
	runYear        int
	runAllYears    bool
	runWorkers     int
	runPushgateway string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute the indicator for the configured year or year range",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyRunFlags(cfg)

		jobs, err := planJobs(cfg)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "Cannot start the run with these parameters:")
			_ = printParams(os.Stderr, cfg.SDG)
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		runner := &indicator.Runner{
			Pipeline: indicator.New(buildParams(cfg.SDG)),
			Loader: indicator.FileLoader{
				Sampler: raster.NewSampler(cfg.SDG.TargetCRS),
				Lookup: lookup.Options{
					SheetName: cfg.SDG.RUCSheet,
					HeaderRow: cfg.SDG.RUCHeaderRow,
				},
				CRS: cfg.SDG.TargetCRS,
			},
			Workers: cfg.Run.Workers,
			Sinks:   buildSinks(cfg.SDG, st),
		}

		results, runErr := runner.RunYears(ctx, jobs)
		formatResults(os.Stdout, results)
		pushMetrics(ctx, cfg.Metrics)
		if runErr != nil {
			return eris.Wrap(runErr, "run")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runYear, "year", 0, "run a single year (overrides sdg.year_start)")
	runCmd.Flags().BoolVar(&runAllYears, "all-years", false, "run every year from sdg.year_start to sdg.year_end")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "concurrent years (default from config)")
	runCmd.Flags().StringVar(&runPushgateway, "pushgateway", "", "Pushgateway URL for run metrics (default from config)")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overlays command-line flags onto the loaded config.
func applyRunFlags(c *config.Config) {
	if runYear > 0 {
		c.SDG.YearStart = runYear
		c.SDG.SingleYearTest = true
	}
	if runAllYears {
		c.SDG.SingleYearTest = false
	}
	if runWorkers > 0 {
		c.Run.Workers = runWorkers
	}
	if runPushgateway != "" {
		c.Metrics.PushgatewayURL = runPushgateway
	}
}

// pushMetrics sends the run's collectors to the configured Pushgateway. The
// run outcome does not depend on it, so failures are only logged.
func pushMetrics(ctx context.Context, c config.MetricsConfig) bool {
	if c.PushgatewayURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := metrics.Push(ctx, c.PushgatewayURL, c.Job); err != nil {
		zap.L().Warn("metrics push failed", zap.String("url", c.PushgatewayURL), zap.Error(err))
		return false
	}
	zap.L().Info("metrics pushed", zap.String("url", c.PushgatewayURL), zap.String("job", c.Job))
	return true
}

// planJobs validates the config and expands it into per-year jobs with
// input paths resolved against the data directory.
func planJobs(c *config.Config) ([]indicator.Job, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return indicator.Plan(c.SDG.YearStart, c.SDG.YearEnd, c.SDG.SingleYearTest, buildPaths(c.SDG))
}

func buildPaths(c config.SDGConfig) indicator.Paths {
	return indicator.Paths{
		Raster: c.DataPath(c.RasterFilePath),
		Lookup: c.DataPath(c.RUCFilePath),
		Admin:  c.DataPath(c.LADFilePath),
		Roads:  c.DataPath(c.RoadsFilePath),
	}
}

func buildParams(c config.SDGConfig) indicator.Params {
	p := indicator.DefaultParams()
	p.RuralClassColumn = c.RuralClassCol
	p.RoadClassColumn = c.RoadClassCol
	p.ExcludedRoadClasses = c.RoadClassifList
	p.DissolveKey = c.DissolveCol
	p.BufferDistance = c.BufferDistance
	p.MergeThreshold = c.MergeThreshold
	if c.RuralKeyword != "" {
		p.IsRural = indicator.ContainsFold(c.RuralKeyword)
	}
	return p
}

// buildSinks returns the CSV writer (when enabled) and the store writer
// (when a store is configured).
func buildSinks(c config.SDGConfig, st store.Store) []indicator.Sink {
	var sinks []indicator.Sink
	if c.SaveCSVFile {
		outDir := c.OutputDir
		sinks = append(sinks, func(_ context.Context, r *indicator.Result) error {
			path, err := indicator.WriteCSV(outDir, r)
			if err != nil {
				return err
			}
			zap.L().Info("indicator csv written", zap.String("path", path))
			return nil
		})
	}
	if st != nil {
		retry := resilience.DefaultRetryConfig()
		retry.OnRetry = resilience.RetryLogger("store", "save_result")
		sinks = append(sinks, func(ctx context.Context, r *indicator.Result) error {
			return resilience.Do(ctx, retry, func(ctx context.Context) error {
				return st.SaveResult(ctx, r)
			})
		})
	}
	return sinks
}

// formatResults writes one row per computed year to w.
func formatResults(out io.Writer, results []*indicator.Result) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(out, "No results.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "YEAR\tSDG_9_1_1\tRURAL_POP\tCOVERED_POP\tCATCHMENTS\tRUN_ID")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%d\t%.4f\t%.0f\t%.0f\t%d\t%s\n",
			r.Year,
			r.Value,
			r.RuralPopulation,
			r.CoveredPopulation,
			r.Catchments,
			shortID(r.RunID),
		)
	}
	_ = w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
