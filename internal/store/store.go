// Package store persists indicator results.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sdg-cli/internal/indicator"
)

// ErrNotFound is returned when no result exists for a lookup.
var ErrNotFound = eris.New("result not found")

// ResultFilter specifies criteria for listing results. Zero years are
// unbounded.
type ResultFilter struct {
	FromYear int `json:"from_year,omitempty"`
	ToYear   int `json:"to_year,omitempty"`
	Limit    int `json:"limit,omitempty"`
	Offset   int `json:"offset,omitempty"`
}

// DefaultListLimit caps ListResults when the filter sets no limit.
const DefaultListLimit = 100

func (f ResultFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for indicator runs.
type Store interface {
	SaveResult(ctx context.Context, r *indicator.Result) error
	// GetResult returns the most recently computed result for year.
	GetResult(ctx context.Context, year int) (*indicator.Result, error)
	// ListResults returns results ordered by year, newest computation first
	// within a year.
	ListResults(ctx context.Context, filter ResultFilter) ([]indicator.Result, error)

	Migrate(ctx context.Context) error
	Close() error
}

// withDefaults returns a copy of r with a missing run ID and computation
// time filled in. r itself is left untouched.
func withDefaults(r *indicator.Result) *indicator.Result {
	rec := *r
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.ComputedAt.IsZero() {
		rec.ComputedAt = time.Now().UTC()
	}
	return &rec
}
