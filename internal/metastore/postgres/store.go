// Package postgres stores the metadata snapshot in a Postgres table, one
// JSONB row per canonical name.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/player-dossier/internal/dossier"
)

// DefaultTable holds the snapshot rows.
const DefaultTable = "player_metadata"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// Store implements dossier.MetadataStore.
type Store struct {
	pool  pool
	table string
}

// NewStore connects to Postgres using cfg.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("metadata.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewStoreWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(p pool, table string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	name       TEXT PRIMARY KEY,
	pdf_path   TEXT NOT NULL,
	record     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Load returns every stored record keyed by name.
func (s *Store) Load(ctx context.Context) (map[string]dossier.Record, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT name, record FROM %s", s.table))
	if err != nil {
		return nil, &dossier.PersistenceConflict{Path: s.table, Cause: err}
	}
	defer rows.Close()

	out := map[string]dossier.Record{}
	for rows.Next() {
		var (
			name string
			raw  []byte
		)
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, &dossier.PersistenceConflict{Path: s.table, Cause: fmt.Errorf("scan: %w", err)}
		}
		var rec dossier.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, &dossier.PersistenceConflict{Path: s.table, Cause: fmt.Errorf("decode %q: %w", name, err)}
		}
		out[name] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, &dossier.PersistenceConflict{Path: s.table, Cause: err}
	}
	return out, nil
}

// Upsert writes records in one transaction, replacing rows with the same
// name. No records means no statement is issued.
func (s *Store) Upsert(ctx context.Context, records []dossier.Record) error {
	if len(records) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (name, pdf_path, record, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE SET
	pdf_path = EXCLUDED.pdf_path,
	record = EXCLUDED.record,
	updated_at = EXCLUDED.updated_at`, s.table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &dossier.PersistenceConflict{Path: s.table, Cause: fmt.Errorf("begin: %w", err)}
	}
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			_ = tx.Rollback(ctx)
			return &dossier.PersistenceConflict{Path: s.table, Cause: fmt.Errorf("encode %q: %w", rec.Name, err)}
		}
		if _, err := tx.Exec(ctx, query, rec.Name, rec.PDFPath, payload, rec.UpdatedAt); err != nil {
			_ = tx.Rollback(ctx)
			return &dossier.PersistenceConflict{Path: s.table, Cause: fmt.Errorf("upsert %q: %w", rec.Name, err)}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return &dossier.PersistenceConflict{Path: s.table, Cause: fmt.Errorf("commit: %w", err)}
	}
	return nil
}
