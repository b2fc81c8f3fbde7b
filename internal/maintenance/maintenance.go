// Package maintenance keeps the SQLite correction cache compact.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Status describes the cache file.
type Status struct {
	DBFileSize     int64     `json:"db_file_size"`
	WALFileSize    int64     `json:"wal_file_size"`
	PageCount      int64     `json:"page_count"`
	PageSize       int64     `json:"page_size"`
	Entries        int64     `json:"entries"`
	LastOptimizeAt time.Time `json:"last_optimize_at,omitzero"`
}

// Service runs maintenance against one SQLite database.
type Service struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger

	mu           sync.Mutex
	lastOptimize time.Time
}

// NewService creates a maintenance service for the database at dbPath.
func NewService(db *sql.DB, dbPath string, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		dbPath: dbPath,
		logger: logger.With(slog.String("component", "maintenance")),
	}
}

// Status returns current file sizes, page stats and the number of cached
// corrections.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{}

	if info, err := os.Stat(s.dbPath); err == nil {
		st.DBFileSize = info.Size()
	}
	if info, err := os.Stat(s.dbPath + "-wal"); err == nil {
		st.WALFileSize = info.Size()
	}

	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&st.PageCount); err != nil {
		return nil, fmt.Errorf("reading page_count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&st.PageSize); err != nil {
		return nil, fmt.Errorf("reading page_size: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM corrections").Scan(&st.Entries); err != nil {
		return nil, fmt.Errorf("counting corrections: %w", err)
	}

	s.mu.Lock()
	st.LastOptimizeAt = s.lastOptimize
	s.mu.Unlock()
	return st, nil
}

// Optimize runs PRAGMA optimize followed by a WAL checkpoint.
func (s *Service) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("PRAGMA optimize: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}

	s.mu.Lock()
	s.lastOptimize = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info("optimize complete")
	return nil
}

// Vacuum rebuilds the database file.
func (s *Service) Vacuum(ctx context.Context) error {
	s.logger.Info("running VACUUM")
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM: %w", err)
	}
	s.logger.Info("vacuum complete")
	return nil
}

// StartScheduler runs Optimize every interval until ctx is canceled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Info("maintenance scheduler started",
		slog.String("interval", interval.String()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Optimize(ctx); err != nil {
				s.logger.Error("scheduled optimize failed", slog.Any("error", err))
			}
		}
	}
}
