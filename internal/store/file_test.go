package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xiaoyue/companion/internal/model/profile"
)

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "memory.json")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)

	doc := &Document{
		SchemaVersion: SchemaVersion,
		Profiles:      []*profile.UserProfile{profile.NewUserProfile("u1")},
	}
	require.NoError(t, backend.Save(doc))

	loaded, err := backend.Load()
	require.NoError(t, err)
	require.Equal(t, SchemaVersion, loaded.SchemaVersion)
	require.Len(t, loaded.Profiles, 1)
	require.Equal(t, "u1", loaded.Profiles[0].UserID)
}

func TestFileBackendLoadMissingFile(t *testing.T) {
	backend, err := NewFileBackend(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)

	_, err = backend.Load()
	require.Error(t, err)
}

func TestFileBackendLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	backend, err := NewFileBackend(path)
	require.NoError(t, err)

	_, err = backend.Load()
	require.Error(t, err)
}

func TestFileBackendRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schemaVersion":99,"profiles":[]}`), 0o644))

	backend, err := NewFileBackend(path)
	require.NoError(t, err)

	_, err = backend.Load()
	require.Error(t, err)
}
