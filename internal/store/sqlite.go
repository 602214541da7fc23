package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sdg-cli/internal/indicator"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS indicator_results (
	run_id             TEXT PRIMARY KEY,
	year               INTEGER NOT NULL,
	value              REAL NOT NULL,
	rural_population   REAL NOT NULL,
	covered_population REAL NOT NULL,
	samples            INTEGER NOT NULL,
	rural_samples      INTEGER NOT NULL,
	matched_samples    INTEGER NOT NULL,
	catchments         INTEGER NOT NULL,
	match              TEXT NOT NULL,
	computed_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_indicator_results_year ON indicator_results(year, computed_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveResult(ctx context.Context, r *indicator.Result) error {
	r = withDefaults(r)
	matchJSON, err := json.Marshal(r.Match)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal match")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO indicator_results
		 (run_id, year, value, rural_population, covered_population, samples, rural_samples, matched_samples, catchments, match, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Year, r.Value, r.RuralPopulation, r.CoveredPopulation,
		r.Samples, r.RuralSamples, r.MatchedSamples, r.Catchments, string(matchJSON), r.ComputedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert result for %d", r.Year)
	}
	return nil
}

const sqliteSelect = `SELECT run_id, year, value, rural_population, covered_population, samples, rural_samples, matched_samples, catchments, match, computed_at FROM indicator_results`

func (s *SQLiteStore) GetResult(ctx context.Context, year int) (*indicator.Result, error) {
	row := s.db.QueryRowContext(ctx,
		sqliteSelect+` WHERE year = ? ORDER BY computed_at DESC LIMIT 1`,
		year,
	)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: year %d", year)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get result %d", year)
	}
	return r, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]indicator.Result, error) {
	query := sqliteSelect + ` WHERE 1=1`
	var args []any

	if filter.FromYear > 0 {
		query += ` AND year >= ?`
		args = append(args, filter.FromYear)
	}
	if filter.ToYear > 0 {
		query += ` AND year <= ?`
		args = append(args, filter.ToYear)
	}
	query += ` ORDER BY year ASC, computed_at DESC LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer func() { _ = rows.Close() }()

	var out []indicator.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

// scanner is satisfied by *sql.Row, *sql.Rows and pgx rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*indicator.Result, error) {
	var r indicator.Result
	var matchJSON string
	err := row.Scan(
		&r.RunID, &r.Year, &r.Value, &r.RuralPopulation, &r.CoveredPopulation,
		&r.Samples, &r.RuralSamples, &r.MatchedSamples, &r.Catchments, &matchJSON, &r.ComputedAt,
	)
	if err != nil {
		return nil, err
	}
	if matchJSON != "" {
		if err := json.Unmarshal([]byte(matchJSON), &r.Match); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal match")
		}
	}
	r.ComputedAt = r.ComputedAt.UTC()
	return &r, nil
}
