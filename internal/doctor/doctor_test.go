package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terassyi/vx/internal/shim"
	"github.com/terassyi/vx/internal/store"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
}

func TestCheck_CleanStoreHasNoIssues(t *testing.T) {
	s := store.NewAt(t.TempDir())
	dir, err := s.CreateToolVersionDir("node", "20.11.0")
	require.NoError(t, err)
	writeExecutable(t, filepath.Join(dir, "bin", "node"))
	require.NoError(t, s.SetCurrentVersion("node", "20.11.0"))

	d := New(s, nil)
	result, err := d.Check()
	require.NoError(t, err)
	assert.False(t, result.HasIssues())
}

func TestCheck_FlagsMissingExecutableWhenVersionDirEmpty(t *testing.T) {
	s := store.NewAt(t.TempDir())
	_, err := s.CreateToolVersionDir("node", "20.11.0")
	require.NoError(t, err)

	d := New(s, nil)
	result, err := d.Check()
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, IssueMissingExecutable, result.Issues[0].Kind)
}

func TestCheck_FlagsBrokenCurrentPointer(t *testing.T) {
	s := store.NewAt(t.TempDir())
	dir, err := s.CreateToolVersionDir("node", "20.11.0")
	require.NoError(t, err)
	writeExecutable(t, filepath.Join(dir, "bin", "node"))
	require.NoError(t, s.SetCurrentVersion("node", "20.11.0"))
	require.NoError(t, os.RemoveAll(dir))

	d := New(s, nil)
	result, err := d.Check()
	require.NoError(t, err)

	var found bool
	for _, issue := range result.Issues {
		if issue.Kind == IssueBrokenCurrentPointer {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCheck_FlagsBrokenShim(t *testing.T) {
	s := store.NewAt(t.TempDir())
	launcherPath := filepath.Join(t.TempDir(), "vx")
	writeExecutable(t, launcherPath)
	_, err := shim.Create(s, launcherPath, "node")
	require.NoError(t, err)
	require.NoError(t, os.Remove(launcherPath))

	d := New(s, nil)
	result, err := d.Check()
	require.NoError(t, err)

	require.Len(t, result.Issues, 1)
	assert.Equal(t, IssueBrokenShim, result.Issues[0].Kind)
	assert.Equal(t, launcherPath, result.Issues[0].Target)
}

func TestIssue_Message(t *testing.T) {
	msg := Issue{Kind: IssueMissingExecutable, Runtime: "node", Path: "/x"}.Message()
	assert.Contains(t, msg, "node")
	assert.Contains(t, msg, "/x")
}
