package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sdg-cli/internal/db"
	"github.com/sells-group/sdg-cli/internal/indicator"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS indicator_results (
	run_id             TEXT PRIMARY KEY,
	year               INTEGER NOT NULL,
	value              DOUBLE PRECISION NOT NULL,
	rural_population   DOUBLE PRECISION NOT NULL,
	covered_population DOUBLE PRECISION NOT NULL,
	samples            INTEGER NOT NULL,
	rural_samples      INTEGER NOT NULL,
	matched_samples    INTEGER NOT NULL,
	catchments         INTEGER NOT NULL,
	match              JSONB NOT NULL,
	computed_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_indicator_results_year ON indicator_results(year, computed_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, r *indicator.Result) error {
	r = withDefaults(r)
	matchJSON, err := json.Marshal(r.Match)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal match")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO indicator_results
		 (run_id, year, value, rural_population, covered_population, samples, rural_samples, matched_samples, catchments, match, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.RunID, r.Year, r.Value, r.RuralPopulation, r.CoveredPopulation,
		r.Samples, r.RuralSamples, r.MatchedSamples, r.Catchments, string(matchJSON), r.ComputedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert result for %d", r.Year)
	}
	return nil
}

const postgresSelect = `SELECT run_id, year, value, rural_population, covered_population, samples, rural_samples, matched_samples, catchments, match::text, computed_at FROM indicator_results`

func (s *PostgresStore) GetResult(ctx context.Context, year int) (*indicator.Result, error) {
	row := s.pool.QueryRow(ctx,
		postgresSelect+` WHERE year = $1 ORDER BY computed_at DESC LIMIT 1`,
		year,
	)
	r, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: year %d", year)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get result %d", year)
	}
	return r, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]indicator.Result, error) {
	query := postgresSelect + ` WHERE ($1 = 0 OR year >= $1) AND ($2 = 0 OR year <= $2)
		ORDER BY year ASC, computed_at DESC LIMIT $3 OFFSET $4`

	rows, err := s.pool.Query(ctx, query, filter.FromYear, filter.ToYear, filter.limit(), max(filter.Offset, 0))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []indicator.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list results iterate")
}
