package projectconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVxToml(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
}

func TestDiscover_WalksUpward(t *testing.T) {
	root := t.TempDir()
	writeVxToml(t, root, "[tools]\nrust = \"1.75.0\"\n")
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	d := NewDiscoverer()
	cfg, err := d.Discover(nested)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "1.75.0", cfg.Tools["rust"])
	assert.Equal(t, root, cfg.Dir)
}

func TestDiscover_CachesPerProcess(t *testing.T) {
	root := t.TempDir()
	writeVxToml(t, root, "[tools]\nnode = \"20.11.0\"\n")

	d := NewDiscoverer()
	cfg1, err := d.Discover(root)
	require.NoError(t, err)

	// Even pointed at an unrelated directory, a resolved Discoverer returns
	// its cached result rather than re-walking.
	other := t.TempDir()
	cfg2, err := d.Discover(other)
	require.NoError(t, err)
	assert.Same(t, cfg1, cfg2)
}

func TestDiscover_NoneFound(t *testing.T) {
	dir := t.TempDir()
	d := NewDiscoverer()
	cfg, err := d.Discover(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestGetVersionWithFallback(t *testing.T) {
	cfg := &Config{Tools: map[string]string{"rust": "1.75.0", "node": "20.11.0"}}

	v, ok := cfg.GetVersionWithFallback("cargo")
	require.True(t, ok)
	assert.Equal(t, "1.75.0", v)

	_, ok = cfg.GetVersionWithFallback("rustup")
	assert.False(t, ok)

	_, ok = cfg.GetVersionWithFallback("pnpm")
	assert.False(t, ok)
}

func TestGetCompanionTools_ExcludesPrimaryAndSiblings(t *testing.T) {
	cfg := &Config{Tools: map[string]string{
		"rust": "1.75.0",
		"node": "20.11.0",
		"uv":   "0.4.0",
	}}

	companions := cfg.GetCompanionTools("node")
	names := make([]string, 0, len(companions))
	for _, c := range companions {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"rust", "uv"}, names)
}

func TestGetCompanionTools_BundledPrimaryExcludesOwnEcosystemParent(t *testing.T) {
	cfg := &Config{Tools: map[string]string{
		"node": "20.11.0",
		"npm":  "20.11.0",
		"rust": "1.75.0",
	}}

	// Invoking "npm" directly must not report "node" as a companion: node's
	// environment is already the one being prepared for npm, since npm is
	// bundled with (shares a version scheme with) node.
	companions := cfg.GetCompanionTools("npm")
	names := make([]string, 0, len(companions))
	for _, c := range companions {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"rust"}, names)
}
