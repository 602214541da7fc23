package geo

import (
	"slices"

	"github.com/tidwall/rtree"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy/location"

	"github.com/sells-group/sdg-cli/internal/raster"
)

// Tagged is a sample located in one feature of a polygon layer.
type Tagged struct {
	raster.Sample
	Unit int
}

// Coord returns the sample position.
func (t Tagged) Coord() geom.Coord { return geom.Coord{t.X, t.Y} }

// OverlayPoints intersects samples with the polygons of units. A sample on a
// polygon boundary intersects it; a sample in k polygons yields k rows.
// Output follows sample order, then unit order.
func OverlayPoints(samples []raster.Sample, units *Layer) []Tagged {
	index := indexUnits(units)

	var (
		out  []Tagged
		hits []int
	)
	for _, s := range samples {
		p := geom.Coord{s.X, s.Y}
		hits = searchPoint(index, p, hits[:0])
		for _, row := range hits {
			if Intersects(p, units.Geom(row)) {
				out = append(out, Tagged{Sample: s, Unit: row})
			}
		}
	}
	return out
}

// Piece is one non-empty intersection of a buffer with a unit polygon.
type Piece struct {
	Unit   int
	Buffer int
}

// Intersect pairs every buffer with every unit it reaches: the unit lies
// closer to the buffered geometry than the buffer distance. Pairs are ordered
// by buffer, then unit.
func Intersect(buffers []Buffer, units *Layer) []Piece {
	index := indexUnits(units)

	var (
		out  []Piece
		hits []int
	)
	for bi, b := range buffers {
		hits = searchBox(index, b.Bounds(), hits[:0])
		for _, ui := range hits {
			if WithinDistance(units.Geom(ui), b.Geom, b.Distance) {
				out = append(out, Piece{Unit: ui, Buffer: bi})
			}
		}
	}
	return out
}

// Catchment is the union of buffer/unit intersections sharing a dissolve key.
type Catchment struct {
	Key   string
	Units []int
	parts []catchmentPart
	// index holds the extent of every part, keyed by position in parts.
	index *rtree.RTreeG[int]
	// bounds is the union of the member unit extents.
	bounds *geom.Bounds
}

type catchmentPart struct {
	unit    geom.T
	buffers *rtree.RTreeG[*Buffer]
}

// Dissolve groups pieces by the string value of units' key column, producing
// one catchment per key in first-seen order.
func Dissolve(pieces []Piece, buffers []Buffer, units *Layer, key string) ([]Catchment, error) {
	keyCol, err := units.Data.MustColumn(key)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]int)
	var out []Catchment
	partIdx := make(map[[2]int]int)

	for _, pc := range pieces {
		k := keyCol.StringAt(pc.Unit)
		ci, ok := byKey[k]
		if !ok {
			ci = len(out)
			byKey[k] = ci
			out = append(out, Catchment{
				Key:    k,
				index:  &rtree.RTreeG[int]{},
				bounds: geom.NewBounds(geom.XY),
			})
		}
		c := &out[ci]

		pi, ok := partIdx[[2]int{ci, pc.Unit}]
		if !ok {
			g := units.Geom(pc.Unit)
			pi = len(c.parts)
			partIdx[[2]int{ci, pc.Unit}] = pi
			c.parts = append(c.parts, catchmentPart{unit: g, buffers: &rtree.RTreeG[*Buffer]{}})
			c.Units = append(c.Units, pc.Unit)
			c.bounds.Extend(g)
			lo, hi := box(g.Bounds())
			c.index.Insert(lo, hi, pi)
		}
		b := &buffers[pc.Buffer]
		lo, hi := box(b.Bounds())
		c.parts[pi].buffers.Insert(lo, hi, b)
	}
	return out, nil
}

// Within reports whether p lies strictly inside the catchment. Points on the
// edge of a unit count only where two member units meet and both are
// covered.
func (c *Catchment) Within(p geom.Coord) bool {
	if c.bounds == nil || !c.bounds.OverlapsPoint(geom.XY, p) {
		return false
	}
	var onEdge int
	for _, pi := range searchPoint(c.index, p, nil) {
		part := c.parts[pi]
		loc := Locate(p, part.unit)
		if loc == location.Exterior {
			continue
		}
		if !part.covers(p) {
			continue
		}
		if loc == location.Interior {
			return true
		}
		onEdge++
	}
	return onEdge >= 2
}

func (cp catchmentPart) covers(p geom.Coord) bool {
	var covered bool
	cp.buffers.Search(p2(p), p2(p), func(_, _ [2]float64, b *Buffer) bool {
		covered = b.ContainsInterior(p)
		return !covered
	})
	return covered
}

// JoinPair links a sample to a catchment containing it.
type JoinPair struct {
	Sample    int
	Catchment int
}

// JoinWithin spatially joins samples to catchments with the "within"
// predicate. A sample within several catchments yields one pair per
// catchment.
func JoinWithin(samples []Tagged, catchments []Catchment) []JoinPair {
	var index rtree.RTreeG[int]
	for ci := range catchments {
		if b := catchments[ci].bounds; b != nil && !b.IsEmpty() {
			lo, hi := box(b)
			index.Insert(lo, hi, ci)
		}
	}

	var (
		out  []JoinPair
		hits []int
	)
	for si, s := range samples {
		p := s.Coord()
		hits = searchPoint(&index, p, hits[:0])
		for _, ci := range hits {
			if catchments[ci].Within(p) {
				out = append(out, JoinPair{Sample: si, Catchment: ci})
			}
		}
	}
	return out
}

// indexUnits builds an R-tree over the extents of units' non-empty
// geometries, keyed by row.
func indexUnits(units *Layer) *rtree.RTreeG[int] {
	var index rtree.RTreeG[int]
	for i := 0; i < units.Len(); i++ {
		g := units.Geom(i)
		if g == nil || g.Empty() {
			continue
		}
		lo, hi := box(g.Bounds())
		index.Insert(lo, hi, i)
	}
	return &index
}

// searchBox appends the keys whose extent overlaps b to dst in ascending
// order.
func searchBox(index *rtree.RTreeG[int], b *geom.Bounds, dst []int) []int {
	lo, hi := box(b)
	index.Search(lo, hi, func(_, _ [2]float64, k int) bool {
		dst = append(dst, k)
		return true
	})
	slices.Sort(dst)
	return dst
}

// searchPoint appends the keys whose extent contains p to dst in ascending
// order.
func searchPoint(index *rtree.RTreeG[int], p geom.Coord, dst []int) []int {
	index.Search(p2(p), p2(p), func(_, _ [2]float64, k int) bool {
		dst = append(dst, k)
		return true
	})
	slices.Sort(dst)
	return dst
}

func box(b *geom.Bounds) (lo, hi [2]float64) {
	return [2]float64{b.Min(0), b.Min(1)}, [2]float64{b.Max(0), b.Max(1)}
}

func p2(c geom.Coord) [2]float64 { return [2]float64{c[0], c[1]} }
