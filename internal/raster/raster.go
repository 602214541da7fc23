// Package raster converts gridded population rasters into point samples.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// DefaultTargetCRS is the British National Grid.
const DefaultTargetCRS = "EPSG:27700"

// Transform locates a north-up grid: the top-left corner of the top-left
// cell and the cell size in CRS units.
type Transform struct {
	OriginX    float64
	OriginY    float64
	CellWidth  float64
	CellHeight float64
}

// Grid is a single-band raster. Values are row-major, row 0 at the top.
// Valid[i] is false for no-data cells; a nil Valid treats every cell as
// valid.
type Grid struct {
	Width     int
	Height    int
	Values    []float64
	Valid     []bool
	CRS       string
	Transform Transform
}

// XY returns the coordinates of the centre of the cell at row, col.
func (g *Grid) XY(row, col int) (float64, float64) {
	t := g.Transform
	x := t.OriginX + (float64(col)+0.5)*t.CellWidth
	y := t.OriginY - (float64(row)+0.5)*t.CellHeight
	return x, y
}

func (g *Grid) valid(i int) bool {
	return g.Valid == nil || g.Valid[i]
}

// Sample is one populated raster cell as a point.
type Sample struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value float64 `json:"value"`
	CRS   string  `json:"crs"`
}

// Sampler turns grids into samples tagged with TargetCRS. The CRS is
// relabelled, not transformed.
type Sampler struct {
	TargetCRS string
}

// NewSampler returns a Sampler for the given CRS, defaulting to
// DefaultTargetCRS.
func NewSampler(targetCRS string) Sampler {
	if targetCRS == "" {
		targetCRS = DefaultTargetCRS
	}
	return Sampler{TargetCRS: targetCRS}
}

// Sample returns one sample per valid cell with a positive value. Cell
// centres are interpolated between the first and last cell centres, each
// rounded to 9 decimal places.
func (s Sampler) Sample(g *Grid) ([]Sample, error) {
	if g == nil {
		return nil, eris.New("raster: nil grid")
	}
	n := g.Width * g.Height
	if len(g.Values) != n {
		return nil, eris.Errorf("raster: grid has %d values, want %dx%d", len(g.Values), g.Width, g.Height)
	}
	if g.Valid != nil && len(g.Valid) != n {
		return nil, eris.Errorf("raster: mask has %d cells, want %d", len(g.Valid), n)
	}
	if n == 0 {
		return nil, nil
	}

	xmin, ymax := g.XY(0, 0)
	xmax, ymin := g.XY(g.Height-1, g.Width-1)
	xs := linspace(round9(xmin), round9(xmax), g.Width)
	ys := linspace(round9(ymax), round9(ymin), g.Height)

	crs := s.TargetCRS
	if crs == "" {
		crs = DefaultTargetCRS
	}

	out := make([]Sample, 0, n)
	for r := 0; r < g.Height; r++ {
		for c := 0; c < g.Width; c++ {
			i := r*g.Width + c
			if !g.valid(i) {
				continue
			}
			v := g.Values[i]
			if !(v > 0) {
				continue
			}
			out = append(out, Sample{X: xs[c], Y: ys[r], Value: v, CRS: crs})
		}
	}
	return out, nil
}

func round9(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// linspace returns n evenly spaced values from start to stop inclusive.
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}
