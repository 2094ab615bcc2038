package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckpointStoreRoundTripsLatest(t *testing.T) {
	dir := t.TempDir()
	cs := NewCheckpointStore(filepath.Join(dir, "checkpoints"), 5)

	require.NoError(t, cs.Write(context.Background(), CheckpointMeta{LastSegmentIndex: 0, EngineVersion: "1.0.0"}))
	require.NoError(t, cs.Write(context.Background(), CheckpointMeta{LastSegmentIndex: 1, EngineVersion: "1.0.0"}))

	meta, ok, err := cs.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), meta.LastSegmentIndex)
}

func TestCheckpointStoreLatestWithNoFilesReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	cs := NewCheckpointStore(filepath.Join(dir, "checkpoints"), 5)

	_, ok, err := cs.Latest(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckpointStorePrunesBeyondKeepN(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "checkpoints")
	cs := NewCheckpointStore(sub, 2)

	for i := int64(0); i < 5; i++ {
		require.NoError(t, cs.Write(context.Background(), CheckpointMeta{LastSegmentIndex: i}))
	}

	names, err := cs.sortedCheckpoints()
	require.NoError(t, err)
	require.Len(t, names, 2)

	last, err := segmentIndexFromName(names[len(names)-1])
	require.NoError(t, err)
	require.Equal(t, int64(4), last)
}
