package tracker

import (
	"os"
	"path/filepath"
	"testing"

	"bus-boarding/internal/domain/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStateReady(t *testing.T) {
	assert.True(t, readyState().Ready())

	st := readyState()
	st.Pending = false
	assert.False(t, st.Ready())

	st = readyState()
	st.Stop = nil
	assert.False(t, st.Ready())

	st = readyState()
	st.Line = ""
	assert.False(t, st.Ready())
}

func TestFileStoreMissingFile(t *testing.T) {
	st, err := FileStore{Path: filepath.Join(t.TempDir(), "nope.json")}.Load()
	require.NoError(t, err)
	assert.Equal(t, LocalState{}, st)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := FileStore{Path: path}

	want := NewLocalState("tok", geo.Point{Latitude: -23.55, Longitude: -46.63}, "875A", "Sé")
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, store.Save(LocalState{}))
	got, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, LocalState{}, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := FileStore{Path: path}.Load()
	assert.Error(t, err)
}
