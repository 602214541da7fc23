// Package geo provides vector layers and the planar spatial primitives used by
// the indicator pipeline: point overlay, road buffers, catchment dissolve and
// the point-within-polygon join.
package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/sdg-cli/internal/table"
)

// DefaultGeometryColumn names the geometry column of layers read from disk.
const DefaultGeometryColumn = "geometry"

// Layer is a dataset with one designated geometry column. All geometries
// share CRS.
type Layer struct {
	Data     *table.Dataset
	Geometry string
	CRS      string
}

// NewLayer validates that geometry names a geometry column of data.
func NewLayer(data *table.Dataset, geometry, crs string) (*Layer, error) {
	if data == nil {
		return nil, eris.New("geo: nil dataset")
	}
	col, err := data.MustColumn(geometry)
	if err != nil {
		return nil, eris.Wrap(err, "geo: geometry column")
	}
	if col.Kind != table.KindGeometry {
		return nil, eris.Wrapf(table.ErrConfiguration, "geo: column %q is %s, not geometry", geometry, col.Kind)
	}
	return &Layer{Data: data, Geometry: geometry, CRS: crs}, nil
}

// WithData returns a layer over d with the same geometry column and CRS.
func (l *Layer) WithData(d *table.Dataset) (*Layer, error) {
	return NewLayer(d, l.Geometry, l.CRS)
}

// Len returns the feature count.
func (l *Layer) Len() int { return l.Data.Len() }

// Geom returns the geometry of feature i, or nil.
func (l *Layer) Geom(i int) geom.T {
	v := l.Data.Value(i, l.Geometry)
	g, _ := v.(geom.T)
	return g
}
