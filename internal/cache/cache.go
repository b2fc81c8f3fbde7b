// Package cache persists corrections keyed by (input name, type hint).
//
// Entries are upserted, never expire and are never deleted: a later
// correction for the same key replaces the earlier one.
package cache

import (
	"context"

	"github.com/smkaiser/songfix/internal/correction"
)

// Store reads and writes cached corrections. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the entry for (name, typ), or nil if there is none.
	Get(ctx context.Context, name string, typ correction.Type) (*correction.Entry, error)

	// Put inserts e, replacing any entry with the same (InputName, Type).
	Put(ctx context.Context, e correction.Entry) error
}
