package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTarGz(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
}

func TestTarGzExtractor_ExtractsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "payload.tar.gz")
	writeTarGz(t, archivePath, map[string]string{
		"bin/node":     "#!/bin/sh\necho node\n",
		"lib/README.md": "hello\n",
	})

	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	ex, err := NewExtractor(TypeTarGz)
	require.NoError(t, err)
	require.NoError(t, ex.Extract(archivePath, dest))

	content, err := os.ReadFile(filepath.Join(dest, "bin/node"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho node\n", string(content))

	content, err = os.ReadFile(filepath.Join(dest, "lib/README.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))
}

func TestTarGzExtractor_RejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tar.gz")
	writeTarGz(t, archivePath, map[string]string{
		"../../etc/passwd": "pwned\n",
	})

	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	ex, err := NewExtractor(TypeTarGz)
	require.NoError(t, err)
	err = ex.Extract(archivePath, dest)
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "etc/passwd"))
	assert.True(t, os.IsNotExist(statErr), "traversal entry must not be written outside dest")
}

func TestZipExtractor_ExtractsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "payload.zip")

	f, err := os.Create(archivePath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("bin/tool.exe")
	require.NoError(t, err)
	_, err = w.Write([]byte("binary-content"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	ex, err := NewExtractor(TypeZip)
	require.NoError(t, err)
	require.NoError(t, ex.Extract(archivePath, dest))

	content, err := os.ReadFile(filepath.Join(dest, "bin/tool.exe"))
	require.NoError(t, err)
	assert.Equal(t, "binary-content", string(content))
}

func TestZipExtractor_RejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")

	f, err := os.Create(archivePath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../outside.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("pwned"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	ex, err := NewExtractor(TypeZip)
	require.NoError(t, err)
	err = ex.Extract(archivePath, dest)
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "outside.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRawExtractor_CopiesBinaryNamedAfterDestDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "downloaded.bin")
	require.NoError(t, os.WriteFile(src, []byte("raw-payload"), 0o644))

	dest := filepath.Join(dir, "tools", "jq", "1.7.1")

	ex, err := NewExtractor(TypeRaw)
	require.NoError(t, err)
	require.NoError(t, ex.Extract(src, dest))

	content, err := os.ReadFile(filepath.Join(dest, "1.7.1"))
	require.NoError(t, err)
	assert.Equal(t, "raw-payload", string(content))

	info, err := os.Stat(filepath.Join(dest, "1.7.1"))
	require.NoError(t, err)
	assert.True(t, info.Mode()&0o111 != 0, "raw binary must be executable")
}

func TestIsInsideDir(t *testing.T) {
	base := "/home/user/.vx/tmp/node-20.11.0"
	assert.True(t, isInsideDir(base, filepath.Join(base, "bin/node")))
	assert.True(t, isInsideDir(base, base))
	assert.False(t, isInsideDir(base, filepath.Join(base, "../../etc/passwd")))
	assert.False(t, isInsideDir(base, "/etc/passwd"))
}

func TestNewExtractor_UnsupportedType(t *testing.T) {
	_, err := NewExtractor(TypeUnknown)
	assert.Error(t, err)
}
