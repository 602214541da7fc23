package geo

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
)

// Locate reports whether p lies in the interior, on the boundary or in the
// exterior of an areal geometry. Non-areal geometries have no interior and
// always report Exterior.
func Locate(p geom.Coord, g geom.T) location.Type {
	if g == nil || g.Empty() || !g.Bounds().OverlapsPoint(geom.XY, p) {
		return location.Exterior
	}
	switch t := g.(type) {
	case *geom.Polygon:
		return locatePolygon(p, t)
	case *geom.MultiPolygon:
		loc := location.Exterior
		for i := 0; i < t.NumPolygons(); i++ {
			switch locatePolygon(p, t.Polygon(i)) {
			case location.Interior:
				return location.Interior
			case location.Boundary:
				loc = location.Boundary
			}
		}
		return loc
	default:
		return location.Exterior
	}
}

func locatePolygon(p geom.Coord, poly *geom.Polygon) location.Type {
	if poly.NumLinearRings() == 0 {
		return location.Exterior
	}
	shell := poly.LinearRing(0)
	switch xy.LocatePointInRing(shell.Layout(), p, shell.FlatCoords()) {
	case location.Exterior:
		return location.Exterior
	case location.Boundary:
		return location.Boundary
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		hole := poly.LinearRing(i)
		switch xy.LocatePointInRing(hole.Layout(), p, hole.FlatCoords()) {
		case location.Interior:
			return location.Exterior
		case location.Boundary:
			return location.Boundary
		}
	}
	return location.Interior
}

// Intersects reports whether p lies in the interior or on the boundary of g.
func Intersects(p geom.Coord, g geom.T) bool {
	return Locate(p, g) != location.Exterior
}

// Distance returns the planar distance from p to g. Points inside an areal
// geometry are at distance 0. Unsupported or empty geometries are infinitely
// far away.
func Distance(p geom.Coord, g geom.T) float64 {
	if g == nil || g.Empty() {
		return math.Inf(1)
	}
	switch t := g.(type) {
	case *geom.Point:
		return xy.Distance(p, t.Coords())
	case *geom.MultiPoint:
		return distanceToVertices(p, t.FlatCoords(), t.Stride())
	case *geom.LineString:
		return distanceToLine(p, t.Layout(), t.FlatCoords())
	case *geom.MultiLineString:
		d := math.Inf(1)
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			d = math.Min(d, distanceToLine(p, ls.Layout(), ls.FlatCoords()))
		}
		return d
	case *geom.Polygon:
		if Intersects(p, t) {
			return 0
		}
		return distanceToRings(p, t)
	case *geom.MultiPolygon:
		if Intersects(p, t) {
			return 0
		}
		d := math.Inf(1)
		for i := 0; i < t.NumPolygons(); i++ {
			d = math.Min(d, distanceToRings(p, t.Polygon(i)))
		}
		return d
	default:
		return math.Inf(1)
	}
}

func distanceToRings(p geom.Coord, poly *geom.Polygon) float64 {
	d := math.Inf(1)
	for i := 0; i < poly.NumLinearRings(); i++ {
		r := poly.LinearRing(i)
		d = math.Min(d, distanceToLine(p, r.Layout(), r.FlatCoords()))
	}
	return d
}

func distanceToLine(p geom.Coord, layout geom.Layout, flat []float64) float64 {
	if len(flat) < layout.Stride() {
		return math.Inf(1)
	}
	return xy.DistanceFromPointToLineString(layout, p, flat)
}

func distanceToVertices(p geom.Coord, flat []float64, stride int) float64 {
	d := math.Inf(1)
	for i := 0; i+1 < len(flat); i += stride {
		d = math.Min(d, xy.Distance(p, geom.Coord(flat[i:i+2])))
	}
	return d
}

// GeomDistance returns the planar distance between a and b: zero when they
// touch, cross or one contains the other. Empty geometries are infinitely far
// away.
func GeomDistance(a, b geom.T) float64 {
	return minDistance(a, b, 0)
}

// WithinDistance reports whether a and b are closer than d.
func WithinDistance(a, b geom.T, d float64) bool {
	return minDistance(a, b, d) < d
}

// minDistance returns the distance between a and b, stopping early once a
// distance below stop is found.
func minDistance(a, b geom.T, stop float64) float64 {
	if a == nil || b == nil || a.Empty() || b.Empty() {
		return math.Inf(1)
	}
	ra, rb := runs(a), runs(b)
	for _, r := range rb {
		if Intersects(geom.Coord(r[:2]), a) {
			return 0
		}
	}
	for _, r := range ra {
		if Intersects(geom.Coord(r[:2]), b) {
			return 0
		}
	}

	d := math.Inf(1)
	sa, sb := a.Stride(), b.Stride()
	for _, r1 := range ra {
		for i := 0; i < len(r1); i += sa {
			p1, p2 := segment(r1, i, sa)
			for _, r2 := range rb {
				for j := 0; j < len(r2); j += sb {
					q1, q2 := segment(r2, j, sb)
					d = math.Min(d, xy.DistanceFromLineToLine(p1, p2, q1, q2))
					if d < stop || d == 0 {
						return d
					}
				}
			}
		}
	}
	return d
}

// runs splits g's flat coordinates into its rings, lines or points.
func runs(g geom.T) [][]float64 {
	flat, stride := g.FlatCoords(), g.Stride()
	var ends []int
	switch {
	case g.Endss() != nil:
		for _, e := range g.Endss() {
			ends = append(ends, e...)
		}
	case g.Ends() != nil:
		ends = g.Ends()
	default:
		ends = []int{len(flat)}
	}

	out := make([][]float64, 0, len(ends))
	start := 0
	for _, end := range ends {
		if end-start >= stride {
			out = append(out, flat[start:end])
		}
		start = end
	}
	return out
}

// segment returns the segment starting at offset i of run. The last vertex
// of a run forms a zero-length segment so single points are covered.
func segment(run []float64, i, stride int) (geom.Coord, geom.Coord) {
	p := geom.Coord(run[i : i+2])
	if i+stride >= len(run) {
		return p, p
	}
	return p, geom.Coord(run[i+stride : i+stride+2])
}
