package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CheckpointMeta is the checkpoint_meta artifact of spec §6: "last
// segment index, model IDs, engine version".
type CheckpointMeta struct {
	SchemaVersion     int       `json:"schema_version"`
	LastSegmentIndex  int64     `json:"last_segment_index"`
	GenerationModel   string    `json:"generation_model"`
	ValidationModel   string    `json:"validation_model"`
	EngineVersion     string    `json:"engine_version"`
	WrittenAt         time.Time `json:"written_at"`
}

// CheckpointStore persists a per-segment checkpoint atomically and
// retains only the last N files, minimising work lost on crash while
// bounding disk usage (spec §4.13 step 8).
type CheckpointStore struct {
	dir     string
	keepN   int
}

// NewCheckpointStore builds a CheckpointStore writing into dir, keeping
// only the most recent keepN checkpoint files.
func NewCheckpointStore(dir string, keepN int) *CheckpointStore {
	if keepN <= 0 {
		keepN = 5
	}
	return &CheckpointStore{dir: dir, keepN: keepN}
}

// Write persists meta atomically (write-to-temp-then-rename, spec §6)
// under a segment-indexed filename, then prunes older checkpoints beyond
// keepN.
func (s *CheckpointStore) Write(_ context.Context, meta CheckpointMeta) error {
	meta.SchemaVersion = 1
	meta.WrittenAt = time.Now()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	target := s.pathFor(meta.LastSegmentIndex)
	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: rename temp file: %w", err)
	}
	s.prune()
	return nil
}

// Latest loads the most recent checkpoint, if any.
func (s *CheckpointStore) Latest(_ context.Context) (*CheckpointMeta, bool, error) {
	files, err := s.sortedCheckpoints()
	if err != nil {
		return nil, false, err
	}
	if len(files) == 0 {
		return nil, false, nil
	}
	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(s.dir, latest))
	if err != nil {
		return nil, false, fmt.Errorf("checkpoint: read %s: %w", latest, err)
	}
	var meta CheckpointMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, false, fmt.Errorf("checkpoint: decode %s: %w", latest, err)
	}
	return &meta, true, nil
}

func (s *CheckpointStore) pathFor(segIndex int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("checkpoint-%020d.json", segIndex))
}

func (s *CheckpointStore) sortedCheckpoints() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "checkpoint-") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *CheckpointStore) prune() {
	names, err := s.sortedCheckpoints()
	if err != nil || len(names) <= s.keepN {
		return
	}
	for _, name := range names[:len(names)-s.keepN] {
		os.Remove(filepath.Join(s.dir, name))
	}
}

// segmentIndexFromName extracts the numeric segment index encoded in a
// checkpoint filename, used by tests exercising retention directly.
func segmentIndexFromName(name string) (int64, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "checkpoint-"), ".json")
	return strconv.ParseInt(trimmed, 10, 64)
}
