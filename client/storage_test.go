package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	require.NoError(t, s.Set("k", "v"))
	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, s.Delete("k"))
	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestFileStorageSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := NewFileStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyAuthenticated, "true"))
	require.NoError(t, s.Set(KeyRole, "student"))

	reloaded, err := NewFileStorage(path)
	require.NoError(t, err)

	v, ok := reloaded.Get(KeyAuthenticated)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	require.NoError(t, reloaded.Delete(KeyRole))

	again, err := NewFileStorage(path)
	require.NoError(t, err)
	_, ok = again.Get(KeyRole)
	assert.False(t, ok)
}

func TestSessionKeysCoverEveryDurableKey(t *testing.T) {
	assert.ElementsMatch(t, []string{
		KeyAuthenticated,
		KeyRole,
		KeyUser,
		KeyTokenInfo,
		KeyWalletCache,
		KeyProgressCache,
		KeyExamResultsCache,
	}, SessionKeys())
}
