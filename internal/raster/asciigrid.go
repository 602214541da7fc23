package raster

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// MaxCells bounds the ncols*nrows a grid header may declare.
const MaxCells = 1 << 28

// preallocCells caps the up-front slice capacity so a header that overstates
// the grid cannot force a large allocation before any cell is read.
const preallocCells = 1 << 20

// Reader loads a grid from a path. Open is the default.
type Reader func(path string) (*Grid, error)

// Open reads a raster file, choosing the decoder by extension.
func Open(path string) (*Grid, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asc", ".grd":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "raster: open %s", path)
		}
		defer func() { _ = f.Close() }()

		g, err := ReadASCIIGrid(f)
		if err != nil {
			return nil, eris.Wrapf(err, "raster: read %s", path)
		}
		g.CRS = readPRJ(path)
		return g, nil
	default:
		return nil, eris.Errorf("raster: unsupported raster format %q", filepath.Ext(path))
	}
}

// ReadASCIIGrid decodes an ESRI ASCII grid. Cells equal to NODATA_value are
// marked invalid.
func ReadASCIIGrid(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	header := map[string]float64{}
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !sc.Scan() {
			return nil, eris.Errorf("raster: header key %q has no value", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "raster: header %s", key)
		}
		header[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "raster: scan header")
	}

	ncols, okC := header["ncols"]
	nrows, okR := header["nrows"]
	cell, okS := header["cellsize"]
	if !okC || !okR || !okS || !(cell > 0) || math.IsInf(cell, 0) {
		return nil, eris.New("raster: header requires positive ncols, nrows and cellsize")
	}
	if !isDimension(ncols) || !isDimension(nrows) {
		return nil, eris.Errorf("raster: ncols and nrows must be positive integers, got %v and %v", ncols, nrows)
	}
	if ncols*nrows > MaxCells {
		return nil, eris.Errorf("raster: header declares %.0fx%.0f cells, more than %d", ncols, nrows, MaxCells)
	}

	var xll, yll float64
	switch {
	case has(header, "xllcorner") && has(header, "yllcorner"):
		xll, yll = header["xllcorner"], header["yllcorner"]
	case has(header, "xllcenter") && has(header, "yllcenter"):
		xll, yll = header["xllcenter"]-cell/2, header["yllcenter"]-cell/2
	default:
		return nil, eris.New("raster: header requires xllcorner/yllcorner or xllcenter/yllcenter")
	}
	if !isFinite(xll) || !isFinite(yll) {
		return nil, eris.New("raster: grid origin must be finite")
	}

	w, h := int(ncols), int(nrows)
	capacity := min(w*h, preallocCells)
	g := &Grid{
		Width:  w,
		Height: h,
		Values: make([]float64, 0, capacity),
		Valid:  make([]bool, 0, capacity),
		Transform: Transform{
			OriginX:    xll,
			OriginY:    yll + float64(h)*cell,
			CellWidth:  cell,
			CellHeight: cell,
		},
	}
	nodata, hasNodata := header["nodata_value"]

	push := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return eris.Wrapf(err, "raster: cell %d", len(g.Values))
		}
		g.Values = append(g.Values, v)
		g.Valid = append(g.Valid, !(hasNodata && v == nodata))
		return nil
	}

	if first != "" {
		if err := push(first); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if len(g.Values) == w*h {
			zap.L().Debug("raster: ignoring trailing grid values")
			break
		}
		if err := push(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "raster: scan cells")
	}
	if len(g.Values) != w*h {
		return nil, eris.Errorf("raster: grid has %d cells, header declares %dx%d", len(g.Values), w, h)
	}
	return g, nil
}

func has(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

// readPRJ returns the contents of a sidecar .prj file, or "".
func readPRJ(path string) string {
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	data, err := os.ReadFile(prj)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// isDimension reports whether v is a whole number of at least one.
func isDimension(v float64) bool {
	return v >= 1 && isFinite(v) && v == math.Trunc(v)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
