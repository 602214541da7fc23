// Package metrics registers the Prometheus collectors for indicator runs.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"
)

// DefaultJob is the Pushgateway job name used when none is configured.
const DefaultJob = "sdg_cli"

// Merge outcome labels.
const (
	MergeMatched        = "matched"
	MergeBelowThreshold = "below_threshold"
	MergeNoMatch        = "no_match"
)

var (
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sdg_runs_total",
		Help: "Indicator runs by outcome",
	}, []string{"outcome"})
	RunDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sdg_run_duration_ms",
		Help:    "Indicator run duration in milliseconds",
		Buckets: []float64{100, 500, 1000, 5000, 15000, 60000, 300000, 900000},
	})
	SamplesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sdg_samples_total",
		Help: "Population samples processed by stage",
	}, []string{"stage"})
	MergesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sdg_merges_total",
		Help: "Schema merge attempts by outcome",
	}, []string{"outcome"})
	MatchScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sdg_match_score",
		Help:    "Best column match score distribution",
		Buckets: []float64{1, 10, 25, 50, 75, 90, 99, 100},
	})
)

func init() {
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDurationMs)
	prometheus.MustRegister(SamplesTotal)
	prometheus.MustRegister(MergesTotal)
	prometheus.MustRegister(MatchScore)
}

// Handler exposes the registered collectors.
func Handler() http.Handler { return promhttp.Handler() }

// Push sends the indicator collectors to the Pushgateway at url, replacing
// the metrics previously pushed under job.
func Push(ctx context.Context, url, job string) error {
	if job == "" {
		job = DefaultJob
	}
	p := push.New(url, job).
		Collector(RunsTotal).
		Collector(RunDurationMs).
		Collector(SamplesTotal).
		Collector(MergesTotal).
		Collector(MatchScore)
	if err := p.PushContext(ctx); err != nil {
		return eris.Wrapf(err, "metrics: push to %s", url)
	}
	return nil
}
