package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smkaiser/songfix/internal/correction"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS corrections (
    input_name TEXT             NOT NULL,
    type       TEXT             NOT NULL,
    corrected  TEXT             NOT NULL,
    source     TEXT             NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    updated_at TIMESTAMPTZ      NOT NULL DEFAULT now(),
    PRIMARY KEY (input_name, type)
)`

// PostgresStore keeps corrections in PostgreSQL, for deployments that run
// several songfix instances against one shared cache.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and creates the corrections table if needed.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating corrections table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Get returns the cached correction for (name, typ).
func (s *PostgresStore) Get(ctx context.Context, name string, typ correction.Type) (*correction.Entry, error) {
	e := correction.Entry{InputName: name, Type: typ}
	var source string
	err := s.pool.QueryRow(ctx,
		"SELECT corrected, source, confidence FROM corrections WHERE input_name = $1 AND type = $2",
		name, string(typ),
	).Scan(&e.Corrected, &source, &e.Confidence)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading correction for %q: %w", name, err)
	}
	e.Source = correction.Source(source)
	return &e, nil
}

// Put upserts e.
func (s *PostgresStore) Put(ctx context.Context, e correction.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO corrections (input_name, type, corrected, source, confidence)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (input_name, type) DO UPDATE SET
			corrected = EXCLUDED.corrected,
			source = EXCLUDED.source,
			confidence = EXCLUDED.confidence,
			updated_at = now()`,
		e.InputName, string(e.Type), e.Corrected, string(e.Source), e.Confidence,
	)
	if err != nil {
		return fmt.Errorf("storing correction for %q: %w", e.InputName, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
