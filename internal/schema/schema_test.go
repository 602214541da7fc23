package schema

import (
	"math/rand"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/sdg-cli/internal/table"
)

func anys[T any](vals ...T) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func TestSimilarity_DefinedLists(t *testing.T) {
	tests := []struct {
		name string
		a, b []any
		want float64
	}{
		{"identical", anys(0, 1, 2), anys(0, 1, 2), 100.0},
		{"disjoint", anys(0, 1, 2), anys(3, 4, 5), 0.0},
		{"partial", anys(0, 1, 2, 3), anys(2, 3, 9, 9), 50.0},
		{"duplicates collapse", anys(1, 1, 1, 2), anys(1), 50.0},
		{"empty a", nil, anys(1), 0.0},
		{"both empty", nil, nil, 0.0},
		{"shared blanks do not overlap", []any{nil, nil, "E1"}, []any{nil, "E2"}, 0.0},
		{"blanks ignored in a", []any{nil, "E1", "E2"}, []any{"E1", "E2"}, 100.0},
		{"blanks ignored in b", []any{"E1", "E2"}, []any{nil, "E1"}, 50.0},
		{"only blanks", []any{nil, nil}, []any{nil}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Similarity(tt.a, tt.b))
		})
	}
}

func TestSimilarity_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		a := make([]any, 1+rng.Intn(20))
		for j := range a {
			a[j] = rng.Intn(30)
		}
		b := make([]any, 1+rng.Intn(20))
		for j := range b {
			b[j] = rng.Intn(30)
		}

		s := Similarity(a, b)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 100.0)
		assert.Equal(t, 100.0, Similarity(a, a))

		setA := map[any]bool{}
		for _, v := range a {
			setA[v] = true
		}
		setB := map[any]bool{}
		for _, v := range b {
			setB[v] = true
		}
		var common int
		for v := range setA {
			if setB[v] {
				common++
			}
		}
		assert.Equal(t, float64(common)/float64(len(setA))*100, s)
	}
}

func TestMinLenSplit(t *testing.T) {
	short := []int{1, 2}
	long := []int{1, 2, 3, 4}

	s := MinLenSplit(short, long)
	assert.Equal(t, short, s.Min)
	assert.Equal(t, long, s.Max)

	s = MinLenSplit(long, short)
	assert.Equal(t, short, s.Min)
	assert.Equal(t, long, s.Max)

	// Equal lengths: second argument is Min.
	x, y := []int{1, 2}, []int{3, 4}
	s = MinLenSplit(x, y)
	assert.Equal(t, y, s.Min)
	assert.Equal(t, x, s.Max)
	s = MinLenSplit(y, x)
	assert.Equal(t, x, s.Min)
	assert.Equal(t, y, s.Max)
}

func lad(t *testing.T) *table.Dataset {
	t.Helper()
	d, err := table.New(
		table.Strings("LAD11CD", "E01", "E02", "E03", "E04"),
		table.Strings("LAD11NM", "Alpha", "Beta", "Gamma", "Delta"),
		table.Floats("Shape_Area", 1.5, 2.5, 3.5, 4.5),
		table.Geometries("geometry",
			geom.NewPointFlat(geom.XY, []float64{0, 0}),
			geom.NewPointFlat(geom.XY, []float64{1, 0}),
			geom.NewPointFlat(geom.XY, []float64{2, 0}),
			geom.NewPointFlat(geom.XY, []float64{3, 0}),
		),
	)
	require.NoError(t, err)
	return d
}

func ruc(t *testing.T) *table.Dataset {
	t.Helper()
	d, err := table.New(
		table.Strings("LAD code", "E03", "E01", "E02"),
		table.Strings("Classification", "Mainly Rural", "Urban with City and Town", "Largely Rural"),
		table.Ints("Population", 100, 200, 300),
	)
	require.NoError(t, err)
	return d
}

func TestFindBestMatch(t *testing.T) {
	res := FindBestMatch(lad(t), ruc(t))
	require.True(t, res.Found)
	// Truncated to 3 rows: LAD11CD[:3] = {E01,E02,E03} fully covered.
	assert.Equal(t, Match{ColumnA: "LAD11CD", ColumnB: "LAD code", Score: 100}, res.Match)
}

func TestFindBestMatch_BlankColumnsDoNotMatch(t *testing.T) {
	blank := func(name string) table.Column {
		return table.Column{Name: name, Kind: table.KindString, Values: []any{nil, nil, nil}}
	}
	a, err := table.New(blank("notes"), table.Strings("code", "E1", "E2", "E3"))
	require.NoError(t, err)
	b, err := table.New(blank("comment"), table.Strings("lad", "E3", "E1", "E9"))
	require.NoError(t, err)

	res := FindBestMatch(a, b)
	require.True(t, res.Found)
	assert.Equal(t, "code", res.Match.ColumnA)
	assert.Equal(t, "lad", res.Match.ColumnB)
	assert.InDelta(t, 200.0/3.0, res.Match.Score, 1e-9)
}

func TestFindBestMatch_TieKeepsFirst(t *testing.T) {
	a, err := table.New(table.Strings("a1", "x", "y"), table.Strings("a2", "x", "y"))
	require.NoError(t, err)
	b, err := table.New(table.Strings("b1", "q", "r"), table.Strings("b2", "y", "x"))
	require.NoError(t, err)

	res := FindBestMatch(a, b)
	require.True(t, res.Found)
	assert.Equal(t, "a1", res.Match.ColumnA)
	assert.Equal(t, "b2", res.Match.ColumnB)
}

func TestFindBestMatch_ZeroScoreStillFound(t *testing.T) {
	a, err := table.New(table.Strings("a", "x"))
	require.NoError(t, err)
	b, err := table.New(table.Strings("b", "y"))
	require.NoError(t, err)

	res := FindBestMatch(a, b)
	require.True(t, res.Found)
	assert.Equal(t, 0.0, res.Match.Score)
}

func TestFindBestMatch_NotFound(t *testing.T) {
	a, err := table.New(
		table.Ints("n", 1, 2),
		table.Geometries("geometry", geom.NewPoint(geom.XY), geom.NewPoint(geom.XY)),
	)
	require.NoError(t, err)
	b, err := table.New(
		table.Strings("s", "1", "2"),
		table.Geometries("geometry", geom.NewPoint(geom.XY), geom.NewPoint(geom.XY)),
	)
	require.NoError(t, err)

	res := FindBestMatch(a, b)
	assert.False(t, res.Found)

	_, err = BestMatch(a, b)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSchemaMismatch))
}

func TestCandidates_SkipsIncompatible(t *testing.T) {
	got := Candidates(lad(t), ruc(t))
	for _, m := range got {
		assert.NotEqual(t, "geometry", m.ColumnA)
		assert.NotEqual(t, "Shape_Area", m.ColumnA)
	}
	// 2 string columns x 2 string columns.
	assert.Len(t, got, 4)
}

func TestMerge(t *testing.T) {
	merged, m, err := Merge(lad(t), ruc(t), DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, "LAD11CD", m.ColumnA)

	assert.Equal(t, 3, merged.Len())
	assert.Equal(t, []string{
		"LAD11CD", "LAD11NM", "Shape_Area", "geometry",
		"LAD code", "Classification", "Population",
	}, merged.ColumnNames())

	// Left order preserved.
	codes, _ := merged.Column("LAD11CD")
	assert.Equal(t, []any{"E01", "E02", "E03"}, codes.Values)
	class, _ := merged.Column("Classification")
	assert.Equal(t, []any{"Urban with City and Town", "Largely Rural", "Mainly Rural"}, class.Values)
}

func TestMerge_Thresholds(t *testing.T) {
	a, err := table.New(table.Strings("a", "x", "y", "z", "w"))
	require.NoError(t, err)
	b, err := table.New(table.Strings("b", "x", "q", "r", "s"))
	require.NoError(t, err)

	_, m, err := Merge(a, b, 100)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrBelowThreshold))
	assert.Equal(t, 25.0, m.Score)

	merged, _, err := Merge(a, b, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, merged.Len())
}

func TestMerge_NoCompatiblePair(t *testing.T) {
	a, err := table.New(table.Ints("a", 1))
	require.NoError(t, err)
	b, err := table.New(table.Strings("b", "1"))
	require.NoError(t, err)

	_, _, err = Merge(a, b, 0)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSchemaMismatch))
}

func TestJoin_SharedKeyAndSuffixes(t *testing.T) {
	a, err := table.New(
		table.Strings("code", "k1", "k2", "k2"),
		table.Strings("name", "A", "B", "C"),
	)
	require.NoError(t, err)
	b, err := table.New(
		table.Strings("code", "k2", "k1", "k2"),
		table.Strings("name", "x", "y", "z"),
	)
	require.NoError(t, err)

	out, err := Join(a, b, "code", "code")
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "name_x", "name_y"}, out.ColumnNames())
	// k1 -> 1 match, each k2 -> 2 matches.
	assert.Equal(t, 5, out.Len())
	right, _ := out.Column("name_y")
	assert.Equal(t, []any{"y", "x", "z", "x", "z"}, right.Values)
}

func TestJoin_NilKeysDoNotJoin(t *testing.T) {
	a, err := table.New(table.Column{Name: "k", Kind: table.KindString, Values: []any{nil, "a"}})
	require.NoError(t, err)
	b, err := table.New(table.Column{Name: "j", Kind: table.KindString, Values: []any{nil, "a"}})
	require.NoError(t, err)

	out, err := Join(a, b, "k", "j")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())
}
