package shim

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terassyi/vx/internal/store"
)

func TestCreate_WritesExecutableLauncher(t *testing.T) {
	s := store.NewAt(t.TempDir())
	path, err := Create(s, "/usr/local/bin/vx", "node")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.NotZero(t, info.Mode()&0o111)
	}

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "node")
	assert.Contains(t, string(content), "/usr/local/bin/vx")
}

func TestCreate_ReplacesExistingLauncher(t *testing.T) {
	s := store.NewAt(t.TempDir())
	_, err := Create(s, "/usr/local/bin/vx", "node")
	require.NoError(t, err)

	path, err := Create(s, "/opt/vx/bin/vx", "node")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "/opt/vx/bin/vx")
	assert.NotContains(t, string(content), "/usr/local/bin/vx")
}

func TestRemove_AbsentLauncherIsNotError(t *testing.T) {
	s := store.NewAt(t.TempDir())
	require.NoError(t, Remove(s, "doesnotexist"))
}

func TestInstalled_CreatesLauncherAndSiblingsAndSetsCurrent(t *testing.T) {
	s := store.NewAt(t.TempDir())
	_, err := s.CreateToolVersionDir("dotnet", "8.0.100")
	require.NoError(t, err)

	require.NoError(t, Installed(s, "/usr/local/bin/vx", "dotnet", "8.0.100", []string{"msbuild"}))

	name := "msbuild"
	if runtime.GOOS == "windows" {
		name += ".cmd"
	}
	_, err = os.Stat(filepath.Join(s.BinDir(), name))
	require.NoError(t, err)

	current, ok := s.CurrentVersion("dotnet")
	require.True(t, ok)
	assert.Equal(t, "8.0.100", current)
}

func TestRemoved_ClearsCurrentAndDropsLauncherWhenLastVersionGone(t *testing.T) {
	s := store.NewAt(t.TempDir())
	require.NoError(t, s.SetCurrentVersion("rust", "1.75.0"))
	_, err := Create(s, "/usr/local/bin/vx", "rust")
	require.NoError(t, err)

	require.NoError(t, Removed(s, "rust", "1.75.0", nil, 0))

	_, ok := s.CurrentVersion("rust")
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(s.BinDir(), "rust"))
	assert.True(t, os.IsNotExist(err))
}

func TestRemoved_KeepsLauncherWhenOtherVersionsRemain(t *testing.T) {
	s := store.NewAt(t.TempDir())
	require.NoError(t, s.SetCurrentVersion("rust", "1.75.0"))
	path, err := Create(s, "/usr/local/bin/vx", "rust")
	require.NoError(t, err)

	require.NoError(t, Removed(s, "rust", "1.75.0", nil, 1))

	_, err = os.Stat(path)
	require.NoError(t, err)
}
