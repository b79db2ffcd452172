// ABOUTME: Tests for the on-disk token file
// ABOUTME: Covers save/load round trip, env override, and clearing

package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFile_SaveLoadClear(t *testing.T) {
	t.Setenv(TokenEnvVar, "")
	f := &TokenFile{Path: filepath.Join(t.TempDir(), "coven", "chat-token")}

	token, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "", token)

	require.NoError(t, f.Save("abc.def.ghi"))
	info, err := os.Stat(f.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	token, err = f.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear())
	token, err = f.Load()
	require.NoError(t, err)
	assert.Equal(t, "", token)
}

func TestTokenFile_EnvOverride(t *testing.T) {
	t.Setenv(TokenEnvVar, "from-env")
	f := &TokenFile{Path: filepath.Join(t.TempDir(), "chat-token")}
	require.NoError(t, f.Save("from-file"))

	token, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
}

func TestDefaultTokenFile_UsesXDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	f, err := DefaultTokenFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "coven", "chat-token"), f.Path)
}
