// Package sqlite implements the response cache on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/player-dossier/internal/dossier"
)

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	url        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
)`

// Config controls where the cache lives and how long entries stay fresh.
type Config struct {
	Path string
	TTL  time.Duration
}

// Store caches successful response bodies keyed by full request URL.
type Store struct {
	db     *sql.DB
	ttl    time.Duration
	clock  dossier.Clock
	logger *zap.Logger
}

// Open opens or creates the cache database. A zero TTL never expires.
func Open(cfg Config, clock dossier.Clock, logger *zap.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("cache path is required")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, ttl: cfg.TTL, clock: clock, logger: logger}, nil
}

// Get returns the cached body for url if present and fresh.
func (s *Store) Get(ctx context.Context, url string) ([]byte, bool) {
	var (
		body      []byte
		fetchedAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT body, fetched_at FROM responses WHERE url = ?`, url).Scan(&body, &fetchedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("cache lookup failed", zap.String("url", url), zap.Error(err))
		}
		return nil, false
	}
	if s.ttl > 0 && s.clock.Now().Sub(time.Unix(fetchedAt, 0)) > s.ttl {
		return nil, false
	}
	return body, true
}

// Put stores body for url, replacing any previous entry.
func (s *Store) Put(ctx context.Context, url string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (url, body, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		url, body, s.clock.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Purge drops entries older than the TTL and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-s.ttl).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache purge rows: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	return nil
}
