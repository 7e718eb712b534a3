// Package metastore persists the name-keyed metadata snapshot that
// accompanies the rendered documents.
package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/player-dossier/internal/dossier"
)

// DefaultFileName is the snapshot file inside the output directory.
const DefaultFileName = "player_metadata.json"

// Snapshot maps canonical names to their flattened records.
type Snapshot map[string]dossier.Record

// Merge returns prior with every record in fresh written over the entry of
// the same name. Neither input is modified.
func Merge(prior Snapshot, fresh []dossier.Record) Snapshot {
	out := make(Snapshot, len(prior)+len(fresh))
	maps.Copy(out, prior)
	for _, r := range fresh {
		out[r.Name] = r
	}
	return out
}

// FileStore keeps the snapshot as one indented JSON object.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore builds a store backed by path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the snapshot location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file is an empty snapshot. An
// unreadable or corrupt file yields an empty snapshot together with a
// *dossier.PersistenceConflict, which callers may treat as a warning.
func (s *FileStore) Load(_ context.Context) (map[string]dossier.Record, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, &dossier.PersistenceConflict{Path: s.path, Cause: err}
	}
	snap := Snapshot{}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, &dossier.PersistenceConflict{Path: s.path, Cause: fmt.Errorf("decode: %w", err)}
	}
	return snap, nil
}

// Upsert merges records over the stored snapshot and rewrites the file.
// With no records the file is left untouched. An unreadable prior snapshot
// is logged and replaced.
func (s *FileStore) Upsert(ctx context.Context, records []dossier.Record) error {
	if len(records) == 0 {
		return nil
	}
	prior, err := s.Load(ctx)
	if err != nil {
		s.logger.Warn("replacing unreadable metadata snapshot", zap.String("path", s.path), zap.Error(err))
	}
	return s.write(Merge(prior, records))
}

// write replaces the snapshot atomically through a temp file in the same
// directory.
func (s *FileStore) write(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return &dossier.PersistenceConflict{Path: s.path, Cause: fmt.Errorf("encode: %w", err)}
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &dossier.PersistenceConflict{Path: s.path, Cause: err}
	}
	tmp, err := os.CreateTemp(dir, ".metadata-*.json")
	if err != nil {
		return &dossier.PersistenceConflict{Path: s.path, Cause: err}
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &dossier.PersistenceConflict{Path: s.path, Cause: cause}
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		return cleanup(err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return &dossier.PersistenceConflict{Path: s.path, Cause: err}
	}
	s.logger.Debug("metadata snapshot written", zap.String("path", s.path), zap.Int("entries", len(snap)))
	return nil
}
