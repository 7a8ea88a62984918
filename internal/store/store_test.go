package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "", s.Get(KeyCredential))
	assert.Equal(t, path, s.Path())
}

func TestStore_SetIsImmediatelyDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "settings.yaml")

	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Set(KeyLanguage, "jowo"))
	require.NoError(t, s.Set(KeyCredential, "token-123"))

	// A fresh Open must see the values without any explicit save step.
	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "jowo", reopened.Get(KeyLanguage))
	assert.Equal(t, "token-123", reopened.Get(KeyCredential))
}

func TestStore_SetOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Set(KeyLanguage, "id"))
	require.NoError(t, s.Set(KeyLanguage, "madura"))
	assert.Equal(t, "madura", s.Get(KeyLanguage))
}

func TestStore_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Set(KeyCredential, "token-123"))
	require.NoError(t, s.Delete(KeyCredential))
	assert.Equal(t, "", s.Get(KeyCredential))

	// Deleting an absent key is a no-op.
	require.NoError(t, s.Delete(KeyCredential))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "", reopened.Get(KeyCredential))
}

func TestStore_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyCredential, "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n\t- not yaml"), 0600))

	_, err := Open(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse store file")
}
