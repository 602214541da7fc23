package geo

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/sdg-cli/internal/table"
)

// ReadShapefile loads a shapefile into a Layer. DBF attributes become
// columns in field order followed by DefaultGeometryColumn. Records with a
// missing or unsupported shape are skipped. When crs is empty the .prj
// sidecar, if any, is used.
func ReadShapefile(path, crs string) (*Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	cols := make([]table.Column, len(fields))
	for i, f := range fields {
		cols[i] = table.Column{
			Name: strings.TrimRight(f.String(), "\x00"),
			Kind: fieldKind(f),
		}
	}
	var geoms []any
	var skipped, badValues int

	for reader.Next() {
		_, shape := reader.Shape()
		g := ShapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}
		for i := range fields {
			raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			v, ok := parseAttribute(raw, cols[i].Kind)
			if !ok {
				badValues++
			}
			cols[i].Values = append(cols[i].Values, v)
		}
		geoms = append(geoms, g)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "geo: read shapefile %s", path)
	}

	if skipped > 0 || badValues > 0 {
		zap.L().Debug("geo: shapefile records adjusted",
			zap.String("path", path),
			zap.Int("skipped", skipped),
			zap.Int("unparsed_values", badValues),
		)
	}

	for i := range cols {
		if cols[i].Values == nil {
			cols[i].Values = []any{}
		}
	}
	if geoms == nil {
		geoms = []any{}
	}
	cols = append(cols, table.Column{Name: DefaultGeometryColumn, Kind: table.KindGeometry, Values: geoms})

	data, err := table.New(cols...)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: build layer %s", path)
	}
	if crs == "" {
		crs = readPRJ(path)
	}
	return NewLayer(data, DefaultGeometryColumn, crs)
}

func fieldKind(f shp.Field) table.Kind {
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			return table.KindInt
		}
		return table.KindFloat
	case 'F':
		return table.KindFloat
	case 'L':
		return table.KindBool
	default:
		return table.KindString
	}
}

// parseAttribute converts a DBF value. Empty values are nil; values that do
// not parse as the column kind are nil and reported as not ok.
func parseAttribute(raw string, kind table.Kind) (any, bool) {
	if raw == "" {
		return nil, true
	}
	switch kind {
	case table.KindInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, false
		}
		return v, true
	case table.KindFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false
		}
		return v, true
	case table.KindBool:
		switch strings.ToUpper(raw) {
		case "T", "Y":
			return true, true
		case "F", "N":
			return false, true
		case "?":
			return nil, true
		}
		return nil, false
	default:
		return raw, true
	}
}

// ShapeToGeom converts a go-shp shape to a go-geom geometry. Returns nil for
// nil, empty or unsupported shapes.
func ShapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return polyLineToMultiLineString(s)
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	default:
		return nil
	}
}

// polyLineToMultiLineString converts a shapefile PolyLine to a geom.MultiLineString.
func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for _, part := range parts(pl.Parts, pl.Points) {
		ls := geom.NewLineStringFlat(geom.XY, part)
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("geo: skipping malformed linestring part", zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Clockwise rings start a new polygon; counter-clockwise rings are holes of
// the polygon before them.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Error(err))
		}
		current = nil
	}

	for _, ring := range parts(p.Parts, p.Points) {
		if len(ring) < 8 {
			continue
		}
		lr := geom.NewLinearRingFlat(geom.XY, ring)
		hole := current != nil && xy.IsRingCounterClockwise(geom.XY, ring)
		if !hole {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(lr); err != nil {
			zap.L().Debug("geo: skipping malformed polygon ring", zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// parts splits shapefile points into flat XY coordinate slices, one per part.
func parts(starts []int32, points []shp.Point) [][]float64 {
	out := make([][]float64, 0, len(starts))
	for i, start := range starts {
		end := int32(len(points))
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, points[j].X, points[j].Y)
		}
		out = append(out, flat)
	}
	return out
}

func readPRJ(path string) string {
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	data, err := os.ReadFile(prj)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
