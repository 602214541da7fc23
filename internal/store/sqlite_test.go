package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sdg-cli/internal/indicator"
	"github.com/sells-group/sdg-cli/internal/schema"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "sdg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func result(year int, value float64, at time.Time) *indicator.Result {
	return &indicator.Result{
		Year:              year,
		Value:             value,
		RuralPopulation:   65,
		CoveredPopulation: 60,
		Samples:           6,
		RuralSamples:      5,
		MatchedSamples:    3,
		Catchments:        1,
		Match:             schema.Match{ColumnA: "LAD11CD", ColumnB: "LAD code", Score: 100},
		ComputedAt:        at,
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	r := result(2020, 92.3, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	r.RunID = "run-2020"
	require.NoError(t, s.SaveResult(ctx, r))

	got, err := s.GetResult(ctx, 2020)
	require.NoError(t, err)
	assert.Equal(t, "run-2020", got.RunID)
	assert.Equal(t, 92.3, got.Value)
	assert.Equal(t, 3, got.MatchedSamples)
	assert.Equal(t, r.Match, got.Match)
	assert.True(t, r.ComputedAt.Equal(got.ComputedAt))
}

func TestSQLiteStore_SaveResultLeavesInputUnchanged(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		runID  string
		at     time.Time
		wantID string
	}{
		{"fills missing id and time", "", time.Time{}, ""},
		{"keeps given id and time", "run-1", at, "run-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSQLite(t)
			ctx := context.Background()

			r := result(2020, 92.3, tt.at)
			r.RunID = tt.runID
			before := *r
			require.NoError(t, s.SaveResult(ctx, r))
			assert.Equal(t, before, *r)

			got, err := s.GetResult(ctx, 2020)
			require.NoError(t, err)
			assert.NotEmpty(t, got.RunID)
			assert.False(t, got.ComputedAt.IsZero())
			if tt.wantID != "" {
				assert.Equal(t, tt.wantID, got.RunID)
				assert.True(t, at.Equal(got.ComputedAt))
			}
		})
	}
}

func TestSQLiteStore_GetLatest(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveResult(ctx, result(2020, 80, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, s.SaveResult(ctx, result(2020, 85, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))))

	got, err := s.GetResult(ctx, 2020)
	require.NoError(t, err)
	assert.Equal(t, 85.0, got.Value)
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetResult(context.Background(), 1999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListResults(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, y := range []int{2013, 2011, 2012} {
		require.NoError(t, s.SaveResult(ctx, result(y, float64(y-2000), at)))
	}

	all, err := s.ListResults(ctx, ResultFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{2011, 2012, 2013}, []int{all[0].Year, all[1].Year, all[2].Year})

	tests := []struct {
		name   string
		filter ResultFilter
		want   []int
	}{
		{"from", ResultFilter{FromYear: 2012}, []int{2012, 2013}},
		{"to", ResultFilter{ToYear: 2011}, []int{2011}},
		{"limit", ResultFilter{Limit: 2}, []int{2011, 2012}},
		{"offset", ResultFilter{Limit: 2, Offset: 2}, []int{2013}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListResults(ctx, tt.filter)
			require.NoError(t, err)
			var years []int
			for _, r := range got {
				years = append(years, r.Year)
			}
			assert.Equal(t, tt.want, years)
		})
	}
}

func TestSQLiteStore_DuplicateRunID(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	r := result(2020, 1, time.Now().UTC())
	r.RunID = "run-dup"
	require.NoError(t, s.SaveResult(ctx, r))
	assert.Error(t, s.SaveResult(ctx, r))
}
