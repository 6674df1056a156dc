package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xiaoyue/companion/internal/model/profile"
)

func TestSqliteBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "memory.db")
	backend, err := NewSqliteBackend(path)
	require.NoError(t, err)

	p := profile.NewUserProfile("u1")
	p.ConversationHistory = append(p.ConversationHistory, profile.NewMessage("u1", profile.RoleUser, "你好"))

	doc := &Document{
		SchemaVersion: SchemaVersion,
		Profiles:      []*profile.UserProfile{p, profile.NewUserProfile("u2")},
	}
	require.NoError(t, backend.Save(doc))

	loaded, err := backend.Load()
	require.NoError(t, err)
	require.Equal(t, SchemaVersion, loaded.SchemaVersion)
	require.Len(t, loaded.Profiles, 2)
	require.Equal(t, "u1", loaded.Profiles[0].UserID)
	require.Len(t, loaded.Profiles[0].ConversationHistory, 1)
	require.Equal(t, "你好", loaded.Profiles[0].ConversationHistory[0].Content)
}

func TestSqliteBackendLoadEmptyDatabase(t *testing.T) {
	backend, err := NewSqliteBackend(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)

	loaded, err := backend.Load()
	require.NoError(t, err)
	require.Empty(t, loaded.Profiles)
}

func TestSqliteBackendSaveReplacesCollection(t *testing.T) {
	backend, err := NewSqliteBackend(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)

	first := &Document{
		SchemaVersion: SchemaVersion,
		Profiles:      []*profile.UserProfile{profile.NewUserProfile("u1"), profile.NewUserProfile("u2")},
	}
	require.NoError(t, backend.Save(first))

	second := &Document{
		SchemaVersion: SchemaVersion,
		Profiles:      []*profile.UserProfile{profile.NewUserProfile("u3")},
	}
	require.NoError(t, backend.Save(second))

	loaded, err := backend.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Profiles, 1)
	require.Equal(t, "u3", loaded.Profiles[0].UserID)
}

func TestSqliteBackendRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	backend, err := NewSqliteBackend(path)
	require.NoError(t, err)

	doc := &Document{
		SchemaVersion: SchemaVersion + 1,
		Profiles:      []*profile.UserProfile{profile.NewUserProfile("u1")},
	}
	require.NoError(t, backend.Save(doc))

	_, err = backend.Load()
	require.Error(t, err)
}
