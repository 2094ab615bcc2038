package story

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists StoryState to its own artifact, separate from
// WorldState (spec §3).
type Store interface {
	Load(ctx context.Context) (*State, bool, error)
	Save(ctx context.Context, s *State) error
}

// FileStore persists StoryState as a single JSON artifact, written
// atomically via write-to-temp-then-rename, mirroring worldstate.FileStore.
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
		return nil, false, fmt.Errorf("story: read %s: %w", f.path, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("story: decode %s: %w", f.path, err)
	}
	return &s, true, nil
}

func (f *FileStore) Save(_ context.Context, s *State) error {
	s.SchemaVersion = currentSchemaVersion
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("story: encode: %w", err)
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".storystate-*.tmp")
	if err != nil {
		return fmt.Errorf("story: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("story: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("story: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("story: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("story: rename temp file: %w", err)
	}
	return nil
}
