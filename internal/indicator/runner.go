package indicator

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sdg-cli/internal/geo"
	"github.com/sells-group/sdg-cli/internal/lookup"
	"github.com/sells-group/sdg-cli/internal/metrics"
	"github.com/sells-group/sdg-cli/internal/raster"
	"github.com/sells-group/sdg-cli/internal/table"
)

// ErrRunFailed is returned when at least one year of a multi-year run fails.
var ErrRunFailed = eris.New("indicator run failed")

// YearPlaceholder is replaced by the run year in input paths.
const YearPlaceholder = "{year}"

// Paths locates the four input files of a run.
type Paths struct {
	Raster string `yaml:"raster_file_path"`
	Lookup string `yaml:"ruc_file_path"`
	Admin  string `yaml:"lad_file_path"`
	Roads  string `yaml:"roads_file_path"`
}

// Complete reports whether every path is set.
func (p Paths) Complete() bool {
	return p.Raster != "" && p.Lookup != "" && p.Admin != "" && p.Roads != ""
}

// ForYear substitutes year into every path.
func (p Paths) ForYear(year int) Paths {
	y := strconv.Itoa(year)
	sub := func(s string) string { return strings.ReplaceAll(s, YearPlaceholder, y) }
	return Paths{
		Raster: sub(p.Raster),
		Lookup: sub(p.Lookup),
		Admin:  sub(p.Admin),
		Roads:  sub(p.Roads),
	}
}

// Job is one year to compute.
type Job struct {
	Year  int
	Paths Paths
}

// Plan expands a year range into jobs. A single-year plan runs only start
// and needs every path set.
func Plan(start, end int, single bool, paths Paths) ([]Job, error) {
	if !paths.Complete() {
		return nil, eris.Wrap(table.ErrConfiguration, "indicator: raster, lookup, admin and roads paths are required")
	}
	if start <= 0 {
		return nil, eris.Wrapf(table.ErrConfiguration, "indicator: invalid start year %d", start)
	}
	if single {
		return []Job{{Year: start, Paths: paths.ForYear(start)}}, nil
	}
	if end < start {
		return nil, eris.Wrapf(table.ErrConfiguration, "indicator: end year %d before start year %d", end, start)
	}
	jobs := make([]Job, 0, end-start+1)
	for y := start; y <= end; y++ {
		jobs = append(jobs, Job{Year: y, Paths: paths.ForYear(y)})
	}
	return jobs, nil
}

// Loader reads the inputs of a job.
type Loader interface {
	Load(ctx context.Context, job Job) (Inputs, error)
}

// FileLoader loads inputs from local files.
type FileLoader struct {
	// Raster defaults to raster.Open.
	Raster  raster.Reader
	Sampler raster.Sampler
	Lookup  lookup.Options
	// CRS labels the vector layers when set; otherwise .prj sidecars are used.
	CRS string
}

// Load implements Loader.
func (l FileLoader) Load(ctx context.Context, job Job) (Inputs, error) {
	in := Inputs{Year: job.Year}

	read := l.Raster
	if read == nil {
		read = raster.Open
	}
	grid, err := read(job.Paths.Raster)
	if err != nil {
		return in, eris.Wrap(err, "indicator: load raster")
	}
	in.Samples, err = l.Sampler.Sample(grid)
	if err != nil {
		return in, eris.Wrap(err, "indicator: sample raster")
	}
	if err := ctx.Err(); err != nil {
		return in, eris.Wrap(err, "indicator: cancelled")
	}

	in.Lookup, err = lookup.Open(job.Paths.Lookup, l.Lookup)
	if err != nil {
		return in, eris.Wrap(err, "indicator: load lookup")
	}

	in.Admin, err = geo.ReadShapefile(job.Paths.Admin, l.CRS)
	if err != nil {
		return in, eris.Wrap(err, "indicator: load admin units")
	}
	if err := ctx.Err(); err != nil {
		return in, eris.Wrap(err, "indicator: cancelled")
	}

	in.Roads, err = geo.ReadShapefile(job.Paths.Roads, l.CRS)
	if err != nil {
		return in, eris.Wrap(err, "indicator: load roads")
	}
	return in, nil
}

// Sink receives every successful result.
type Sink func(ctx context.Context, r *Result) error

// Runner loads, computes and publishes indicator years.
type Runner struct {
	Pipeline *Pipeline
	Loader   Loader
	Workers  int
	Sinks    []Sink
}

// RunOne computes a single job and hands the result to every sink.
func (r *Runner) RunOne(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.RunDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}()

	in, err := r.Loader.Load(ctx, job)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("load_error").Inc()
		return nil, err
	}
	res, err := r.Pipeline.Compute(ctx, in)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	for _, sink := range r.Sinks {
		if err := sink(ctx, res); err != nil {
			metrics.RunsTotal.WithLabelValues("sink_error").Inc()
			return nil, eris.Wrapf(err, "indicator: publish year %d", job.Year)
		}
	}
	metrics.RunsTotal.WithLabelValues("success").Inc()
	return res, nil
}

// RunYears runs jobs concurrently, at most Workers at a time. A failed year
// does not stop the others; the successful results are returned sorted by
// year together with ErrRunFailed if any year failed.
func (r *Runner) RunYears(ctx context.Context, jobs []Job) ([]*Result, error) {
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	zap.L().Info("indicator: running years",
		zap.Int("years", len(jobs)),
		zap.Int("workers", workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu      sync.Mutex
		results []*Result
		failed  atomic.Int64
	)

	for _, job := range jobs {
		g.Go(func() error {
			log := zap.L().With(zap.Int("year", job.Year))

			res, err := r.RunOne(gctx, job)
			if err != nil {
				failed.Add(1)
				log.Error("indicator: year failed", zap.Error(err))
				return nil
			}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			log.Info("indicator: year complete", zap.Float64("sdg_9_1_1", res.Value))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "indicator: run years")
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Year < results[j].Year })

	zap.L().Info("indicator: run complete",
		zap.Int("succeeded", len(results)),
		zap.Int64("failed", failed.Load()),
	)
	if n := failed.Load(); n > 0 {
		return results, eris.Wrapf(ErrRunFailed, "indicator: %d of %d years failed", n, len(jobs))
	}
	return results, nil
}
