// Package indicator computes SDG 9.1.1: the share of rural population living
// within a buffer distance of an all-season road.
package indicator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/sdg-cli/internal/geo"
	"github.com/sells-group/sdg-cli/internal/metrics"
	"github.com/sells-group/sdg-cli/internal/raster"
	"github.com/sells-group/sdg-cli/internal/schema"
	"github.com/sells-group/sdg-cli/internal/table"
)

// ErrNoRuralPopulation is returned when no sampled population falls in a
// rural unit, leaving the ratio undefined.
var ErrNoRuralPopulation = eris.New("no rural population")

// DefaultBufferDistance is the road buffer in CRS units (metres for
// EPSG:27700).
const DefaultBufferDistance = 2000.0

// Predicate classifies a rural/urban class value.
type Predicate func(value string) bool

// ContainsFold matches values containing keyword, ignoring case.
func ContainsFold(keyword string) Predicate {
	kw := cases.Fold().String(keyword)
	return func(value string) bool {
		// Casers are stateful and must not be shared across goroutines.
		return strings.Contains(cases.Fold().String(value), kw)
	}
}

// Params holds the per-run settings of the pipeline.
type Params struct {
	RuralClassColumn    string
	RoadClassColumn     string
	ExcludedRoadClasses []string
	DissolveKey         string
	BufferDistance      float64
	MergeThreshold      float64
	IsRural             Predicate
}

// DefaultParams returns the defaults used for the England LAD/RUC data.
func DefaultParams() Params {
	return Params{
		RuralClassColumn:    "Rural Urban Classification 2011 (6 fold)",
		RoadClassColumn:     "road_class",
		ExcludedRoadClasses: []string{"Unknown", "Not Classified"},
		DissolveKey:         "Local Authority District Area 2011 Code",
		BufferDistance:      DefaultBufferDistance,
		MergeThreshold:      schema.DefaultThreshold,
		IsRural:             ContainsFold("rural"),
	}
}

// Validate checks that the parameters can drive a run.
func (p Params) Validate() error {
	switch {
	case p.RuralClassColumn == "":
		return eris.Wrap(table.ErrConfiguration, "indicator: rural class column is empty")
	case p.RoadClassColumn == "":
		return eris.Wrap(table.ErrConfiguration, "indicator: road class column is empty")
	case p.DissolveKey == "":
		return eris.Wrap(table.ErrConfiguration, "indicator: dissolve column is empty")
	case p.BufferDistance < 0:
		return eris.Wrapf(table.ErrConfiguration, "indicator: negative buffer distance %g", p.BufferDistance)
	}
	return nil
}

// Inputs are the loaded datasets for one year.
type Inputs struct {
	Year    int
	Samples []raster.Sample
	Lookup  *table.Dataset
	Admin   *geo.Layer
	Roads   *geo.Layer
}

// Result is the indicator for one year with run bookkeeping.
type Result struct {
	RunID             string       `json:"run_id"`
	Year              int          `json:"year"`
	Value             float64      `json:"sdg_9_1_1"`
	RuralPopulation   float64      `json:"rural_population"`
	CoveredPopulation float64      `json:"covered_population"`
	Samples           int          `json:"samples"`
	RuralSamples      int          `json:"rural_samples"`
	MatchedSamples    int          `json:"matched_samples"`
	Catchments        int          `json:"catchments"`
	Match             schema.Match `json:"match"`
	ComputedAt        time.Time    `json:"computed_at"`
}

// Pipeline runs the indicator stages over loaded inputs.
type Pipeline struct {
	params Params
}

// New creates a Pipeline. A nil IsRural predicate defaults to a
// case-insensitive "rural" substring match.
func New(params Params) *Pipeline {
	if params.IsRural == nil {
		params.IsRural = ContainsFold("rural")
	}
	return &Pipeline{params: params}
}

// Params returns the pipeline settings.
func (p *Pipeline) Params() Params { return p.params }

// Compute runs every stage for one year and returns the indicator.
func (p *Pipeline) Compute(ctx context.Context, in Inputs) (*Result, error) {
	if err := p.params.Validate(); err != nil {
		return nil, err
	}
	if in.Lookup == nil || in.Admin == nil || in.Roads == nil {
		return nil, eris.Wrap(table.ErrConfiguration, "indicator: missing input dataset")
	}

	log := zap.L().With(zap.String("component", "indicator"), zap.Int("year", in.Year))
	result := &Result{
		RunID:   uuid.New().String(),
		Year:    in.Year,
		Samples: len(in.Samples),
	}

	// Attach classification to admin units.
	units, match, err := p.classifyUnits(in.Admin, in.Lookup)
	if err != nil {
		return nil, err
	}
	result.Match = match
	log.Debug("indicator: units classified",
		zap.String("column_a", match.ColumnA),
		zap.String("column_b", match.ColumnB),
		zap.Float64("score", match.Score),
		zap.Int("units", units.Len()),
	)

	rural, err := p.ruralUnits(units)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "indicator: cancelled")
	}

	tagged := geo.OverlayPoints(in.Samples, rural)
	result.RuralSamples = len(tagged)
	for _, s := range tagged {
		result.RuralPopulation += s.Value
	}
	metrics.SamplesTotal.WithLabelValues("raster").Add(float64(len(in.Samples)))
	metrics.SamplesTotal.WithLabelValues("rural").Add(float64(len(tagged)))
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "indicator: cancelled")
	}

	roadData, err := table.RemoveByClasses(in.Roads.Data, p.params.RoadClassColumn, p.params.ExcludedRoadClasses)
	if err != nil {
		return nil, eris.Wrap(err, "indicator: filter roads")
	}
	roads, err := in.Roads.WithData(roadData)
	if err != nil {
		return nil, eris.Wrap(err, "indicator: road layer")
	}

	buffers := geo.BufferLayer(roads, p.params.BufferDistance)
	catchments, err := geo.Dissolve(geo.Intersect(buffers, rural), buffers, rural, p.params.DissolveKey)
	if err != nil {
		return nil, eris.Wrap(err, "indicator: dissolve catchments")
	}
	result.Catchments = len(catchments)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "indicator: cancelled")
	}

	pairs := geo.JoinWithin(tagged, catchments)
	result.MatchedSamples = len(pairs)
	for _, pr := range pairs {
		result.CoveredPopulation += tagged[pr.Sample].Value
	}
	metrics.SamplesTotal.WithLabelValues("covered").Add(float64(len(pairs)))

	if result.RuralPopulation == 0 {
		return nil, eris.Wrapf(ErrNoRuralPopulation, "indicator: year %d", in.Year)
	}
	result.Value = result.CoveredPopulation / result.RuralPopulation * 100
	result.ComputedAt = time.Now().UTC()

	log.Info("indicator: computed",
		zap.Float64("value", result.Value),
		zap.Int("roads", roads.Len()),
		zap.Int("catchments", result.Catchments),
		zap.Int("rural_samples", result.RuralSamples),
		zap.Int("matched_samples", result.MatchedSamples),
	)
	return result, nil
}

// classifyUnits merges the lookup onto the admin units and drops duplicated
// columns. The rural class, dissolve key and geometry columns always survive
// under the names the later steps look them up by.
func (p *Pipeline) classifyUnits(admin *geo.Layer, lookup *table.Dataset) (*geo.Layer, schema.Match, error) {
	merged, match, err := schema.Merge(admin.Data, lookup, p.params.MergeThreshold)
	switch {
	case eris.Is(err, schema.ErrBelowThreshold):
		metrics.MergesTotal.WithLabelValues(metrics.MergeBelowThreshold).Inc()
		return nil, match, eris.Wrap(err, "indicator: lookup does not match admin units")
	case eris.Is(err, schema.ErrSchemaMismatch):
		metrics.MergesTotal.WithLabelValues(metrics.MergeNoMatch).Inc()
		return nil, match, eris.Wrap(err, "indicator: lookup does not match admin units")
	case err != nil:
		return nil, match, eris.Wrap(err, "indicator: merge lookup")
	}
	metrics.MergesTotal.WithLabelValues(metrics.MergeMatched).Inc()
	metrics.MatchScore.Observe(match.Score)

	merged = table.Dedupe(merged,
		p.params.RuralClassColumn,
		p.params.DissolveKey,
		admin.Geometry,
		admin.Geometry+schema.SuffixLeft,
	)

	units, err := admin.WithData(merged)
	if err != nil {
		// The geometry column was suffixed by the merge.
		units, err = geo.NewLayer(merged, admin.Geometry+schema.SuffixLeft, admin.CRS)
		if err != nil {
			return nil, match, eris.Wrap(err, "indicator: merged layer")
		}
	}
	return units, match, nil
}

// ruralUnits keeps units whose class satisfies the rural predicate.
func (p *Pipeline) ruralUnits(units *geo.Layer) (*geo.Layer, error) {
	classes, err := table.Distinct(units.Data, p.params.RuralClassColumn)
	if err != nil {
		return nil, eris.Wrap(err, "indicator: rural classes")
	}
	var urban []string
	for _, c := range classes {
		if !p.params.IsRural(c) {
			urban = append(urban, c)
		}
	}
	data, err := table.RemoveByClasses(units.Data, p.params.RuralClassColumn, urban)
	if err != nil {
		return nil, eris.Wrap(err, "indicator: filter rural units")
	}
	return units.WithData(data)
}
