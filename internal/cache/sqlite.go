package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smkaiser/songfix/internal/correction"
)

// SQLiteStore keeps corrections in the corrections table created by
// database.Migrate.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a store on an open, migrated database.
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get returns the cached correction for (name, typ).
func (s *SQLiteStore) Get(ctx context.Context, name string, typ correction.Type) (*correction.Entry, error) {
	e := correction.Entry{InputName: name, Type: typ}
	var source string
	err := s.db.QueryRowContext(ctx,
		"SELECT corrected, source, confidence FROM corrections WHERE input_name = ? AND type = ?",
		name, string(typ),
	).Scan(&e.Corrected, &source, &e.Confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading correction for %q: %w", name, err)
	}
	e.Source = correction.Source(source)
	return &e, nil
}

// Put upserts e.
func (s *SQLiteStore) Put(ctx context.Context, e correction.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO corrections (input_name, type, corrected, source, confidence)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(input_name, type) DO UPDATE SET
			corrected = excluded.corrected,
			source = excluded.source,
			confidence = excluded.confidence,
			updated_at = datetime('now')`,
		e.InputName, string(e.Type), e.Corrected, string(e.Source), e.Confidence,
	)
	if err != nil {
		return fmt.Errorf("storing correction for %q: %w", e.InputName, err)
	}
	return nil
}
