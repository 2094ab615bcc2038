package worldstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists World State. Readers tolerate older schema versions via
// additive fields only (spec §6); this package never removes a field.
type Store interface {
	Load(ctx context.Context) (*State, bool, error)
	Save(ctx context.Context, s *State) error
}

// FileStore persists World State as a single JSON artifact, written
// atomically via write-to-temp-then-rename (spec §6), grounded on the
// teacher's config/loader file-handling conventions.
type FileStore struct {
	path string
}

// NewFileStore builds a FileStore writing to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(_ context.Context) (*State, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("worldstate: read %s: %w", f.path, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("worldstate: decode %s: %w", f.path, err)
	}
	return &s, true, nil
}

func (f *FileStore) Save(_ context.Context, s *State) error {
	s.SchemaVersion = currentSchemaVersion
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("worldstate: encode: %w", err)
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".worldstate-*.tmp")
	if err != nil {
		return fmt.Errorf("worldstate: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("worldstate: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("worldstate: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("worldstate: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("worldstate: rename temp file: %w", err)
	}
	return nil
}
