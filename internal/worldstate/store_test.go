package worldstate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreLoadMissingReturnsNotFound(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	s, ok, err := fs.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, s)
}

func TestFileStoreRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	fs := NewFileStore(path)

	s := New(Date{Year: 2102, Month: 3, Day: 14})
	s.CurrentHour = 9
	s.BroadcastCounters["weather"] = 2

	require.NoError(t, fs.Save(context.Background(), s))

	loaded, ok, err := fs.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 9, loaded.CurrentHour)
	require.Equal(t, Date{Year: 2102, Month: 3, Day: 14}, loaded.Date)
	require.Equal(t, 2, loaded.BroadcastCounters["weather"])
	require.Equal(t, currentSchemaVersion, loaded.SchemaVersion)
}
