package indicator

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/sdg-cli/internal/lookup"
	"github.com/sells-group/sdg-cli/internal/raster"
	"github.com/sells-group/sdg-cli/internal/table"
)

type fakeLoader struct {
	t    *testing.T
	fail map[int]bool
}

func (f fakeLoader) Load(_ context.Context, job Job) (Inputs, error) {
	if f.fail[job.Year] {
		return Inputs{}, errors.New("missing raster")
	}
	in := scenario(f.t)
	in.Year = job.Year
	return in, nil
}

func TestPlan(t *testing.T) {
	paths := Paths{
		Raster: "pop_{year}.asc",
		Lookup: "ruc.xlsx",
		Admin:  "lad.shp",
		Roads:  "roads_{year}.shp",
	}

	jobs, err := Plan(2011, 2022, true, paths)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2011, jobs[0].Year)
	assert.Equal(t, "pop_2011.asc", jobs[0].Paths.Raster)
	assert.Equal(t, "roads_2011.shp", jobs[0].Paths.Roads)

	jobs, err = Plan(2018, 2020, false, paths)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "pop_2020.asc", jobs[2].Paths.Raster)
	assert.Equal(t, "ruc.xlsx", jobs[2].Paths.Lookup)

	tests := []struct {
		name       string
		start, end int
		single     bool
		paths      Paths
	}{
		{"missing path", 2011, 2011, true, Paths{Raster: "a", Lookup: "b", Admin: "c"}},
		{"no start year", 0, 2011, true, paths},
		{"reversed range", 2020, 2011, false, paths},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.start, tt.end, tt.single, tt.paths)
			assert.ErrorIs(t, err, table.ErrConfiguration)
		})
	}
}

func TestRunYears_OrderAndIsolation(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	r := &Runner{
		Pipeline: New(testParams()),
		Loader:   fakeLoader{t: t, fail: map[int]bool{2019: true}},
		Workers:  3,
		Sinks: []Sink{func(_ context.Context, res *Result) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, res.Year)
			return nil
		}},
	}

	jobs := []Job{{Year: 2021}, {Year: 2018}, {Year: 2019}, {Year: 2020}}
	results, err := r.RunYears(context.Background(), jobs)
	assert.ErrorIs(t, err, ErrRunFailed)

	require.Len(t, results, 3)
	assert.Equal(t, 2018, results[0].Year)
	assert.Equal(t, 2020, results[1].Year)
	assert.Equal(t, 2021, results[2].Year)
	for _, res := range results {
		assert.InDelta(t, 60.0/65.0*100, res.Value, 1e-9)
	}
	assert.ElementsMatch(t, []int{2018, 2020, 2021}, seen)
}

func TestRunYears_AllSucceed(t *testing.T) {
	r := &Runner{Pipeline: New(testParams()), Loader: fakeLoader{t: t}}
	results, err := r.RunYears(context.Background(), []Job{{Year: 2011}})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestRunOne_SinkError(t *testing.T) {
	r := &Runner{
		Pipeline: New(testParams()),
		Loader:   fakeLoader{t: t},
		Sinks: []Sink{func(context.Context, *Result) error {
			return errors.New("disk full")
		}},
	}
	_, err := r.RunOne(context.Background(), Job{Year: 2011})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish year 2011")
}

func TestWriteCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := WriteCSV(dir, &Result{Year: 2020, Value: 92.5})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sdg_9_1_1_2020.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Year", "SDG_9_1_1"}, {"2020", "92.5"}}, records)
}

// writeFixtures lays out a raster, lookup workbook and two shapefiles
// describing two rural districts side by side, the first crossed by a road.
func writeFixtures(t *testing.T, dir string) Paths {
	t.Helper()

	// Cell centres at y=50 and x = 20, 60, 100 (district A) and 140, 180
	// (district B).
	asc := "ncols 5\nnrows 1\nxllcorner 0\nyllcorner 30\ncellsize 40\nNODATA_value -9999\n10 20 30 5 5\n"
	rasterPath := filepath.Join(dir, "pop_2020.asc")
	require.NoError(t, os.WriteFile(rasterPath, []byte(asc), 0o644))

	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("LAD11_LAD13")
	require.NoError(t, err)
	for _, rowData := range [][]string{
		{"Rural Urban Classification"},
		{""},
		{"LAD code", ruralCol},
		{"A01", "Mainly Rural (rural including hub towns >=80%)"},
		{"B01", "Largely Rural (rural including hub towns 50-79%)"},
	} {
		row := sheet.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	lookupPath := filepath.Join(dir, "ruc.xlsx")
	require.NoError(t, wb.Save(lookupPath))

	adminPath := filepath.Join(dir, "lad.shp")
	admin, err := shp.Create(adminPath, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, admin.SetFields([]shp.Field{shp.StringField("LAD11CD", 9)}))
	for i, r := range []struct {
		code   string
		x0, x1 float64
	}{{"A01", 0, 110}, {"B01", 110, 200}} {
		ring := []shp.Point{{X: r.x0, Y: 0}, {X: r.x0, Y: 100}, {X: r.x1, Y: 100}, {X: r.x1, Y: 0}, {X: r.x0, Y: 0}}
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
		admin.Write(&poly)
		require.NoError(t, admin.WriteAttribute(i, 0, r.code))
	}
	admin.Close()

	roadsPath := filepath.Join(dir, "roads_2020.shp")
	roads, err := shp.Create(roadsPath, shp.POLYLINE)
	require.NoError(t, err)
	require.NoError(t, roads.SetFields([]shp.Field{shp.StringField("road_class", 20)}))
	for i, r := range []struct {
		class  string
		x0, x1 float64
	}{{"A Road", 0, 110}, {"Unknown", 110, 200}} {
		pl := shp.NewPolyLine([][]shp.Point{{{X: r.x0, Y: 50}, {X: r.x1, Y: 50}}})
		roads.Write(pl)
		require.NoError(t, roads.WriteAttribute(i, 0, r.class))
	}
	roads.Close()

	return Paths{
		Raster: filepath.Join(dir, "pop_{year}.asc"),
		Lookup: lookupPath,
		Admin:  adminPath,
		Roads:  filepath.Join(dir, "roads_{year}.shp"),
	}
}

func TestRunner_FromFiles(t *testing.T) {
	dir := t.TempDir()
	paths := writeFixtures(t, dir)
	outDir := filepath.Join(dir, "output")

	p := testParams()
	p.BufferDistance = 20

	r := &Runner{
		Pipeline: New(p),
		Loader: FileLoader{
			Sampler: raster.NewSampler(""),
			Lookup:  lookup.Options{SheetName: "LAD11_LAD13", HeaderRow: 2},
			CRS:     raster.DefaultTargetCRS,
		},
		Workers: 2,
		Sinks: []Sink{func(_ context.Context, res *Result) error {
			_, err := WriteCSV(outDir, res)
			return err
		}},
	}

	jobs, err := Plan(2020, 2020, true, paths)
	require.NoError(t, err)
	results, err := r.RunYears(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.InDelta(t, 60.0/65.0*100, res.Value, 1e-9)
	assert.Equal(t, 5, res.Samples)
	assert.Equal(t, 2, res.Catchments)
	assert.FileExists(t, filepath.Join(outDir, "sdg_9_1_1_2020.csv"))
}

func TestFileLoader_CustomRasterReader(t *testing.T) {
	var gotPath string
	l := FileLoader{
		Raster: func(path string) (*raster.Grid, error) {
			gotPath = path
			return nil, errors.New("unsupported")
		},
		Sampler: raster.NewSampler(""),
	}
	_, err := l.Load(context.Background(), Job{Year: 2020, Paths: Paths{Raster: "pop_2020.tif"}})
	assert.Error(t, err)
	assert.Equal(t, "pop_2020.tif", gotPath)
}

func TestFileLoader_MissingRaster(t *testing.T) {
	l := FileLoader{Sampler: raster.NewSampler("")}
	_, err := l.Load(context.Background(), Job{Year: 2020, Paths: Paths{Raster: filepath.Join(t.TempDir(), "nope.asc")}})
	assert.Error(t, err)
}
