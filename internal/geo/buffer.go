package geo

import (
	"github.com/twpayne/go-geom"
)

// Buffer is a geometry grown outward by Distance with round caps and joins.
// It is kept in analytic form: a point is covered when its distance to Geom
// is at most Distance and strictly inside when the distance is less.
type Buffer struct {
	Geom     geom.T
	Distance float64
	// Row is the feature index of Geom in its source layer.
	Row    int
	bounds *geom.Bounds
}

// NewBuffer buffers g by d.
func NewBuffer(g geom.T, d float64, row int) Buffer {
	b := g.Bounds()
	return Buffer{
		Geom:     g,
		Distance: d,
		Row:      row,
		bounds: geom.NewBounds(geom.XY).Set(
			b.Min(0)-d, b.Min(1)-d,
			b.Max(0)+d, b.Max(1)+d,
		),
	}
}

// BufferLayer buffers every non-empty geometry of l by d.
func BufferLayer(l *Layer, d float64) []Buffer {
	out := make([]Buffer, 0, l.Len())
	for i := 0; i < l.Len(); i++ {
		g := l.Geom(i)
		if g == nil || g.Empty() {
			continue
		}
		out = append(out, NewBuffer(g, d, i))
	}
	return out
}

// Bounds returns the bounding box of the buffered area.
func (b Buffer) Bounds() *geom.Bounds { return b.bounds }

// Covers reports whether p lies in the buffer, boundary included.
func (b Buffer) Covers(p geom.Coord) bool {
	if !b.bounds.OverlapsPoint(geom.XY, p) {
		return false
	}
	return Distance(p, b.Geom) <= b.Distance
}

// ContainsInterior reports whether p lies strictly inside the buffer.
func (b Buffer) ContainsInterior(p geom.Coord) bool {
	if !b.bounds.OverlapsPoint(geom.XY, p) {
		return false
	}
	return Distance(p, b.Geom) < b.Distance
}
