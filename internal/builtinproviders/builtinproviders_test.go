package builtinproviders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terassyi/vx/internal/provider"
)

func TestLoadIndex_ContainsAllBuiltinRuntimes(t *testing.T) {
	idx, err := LoadIndex(t.TempDir(), t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"node", "npm", "npx", "go", "gofmt", "rustup", "rustc", "cargo", "python", "pip", "pip3", "uv", "bun", "yarn", "pnpm"} {
		_, ok := idx.Lookup(name)
		assert.Truef(t, ok, "expected builtin runtime %q", name)
	}
}

func TestLoadIndex_RustAliasResolvesToRustup(t *testing.T) {
	idx, err := LoadIndex(t.TempDir(), t.TempDir())
	require.NoError(t, err)

	canonical, ok := idx.Resolve("rust")
	require.True(t, ok)
	assert.Equal(t, "rustup", canonical)
}

func TestLoadIndex_YarnConstraintsSurviveEmbedding(t *testing.T) {
	idx, err := LoadIndex(t.TempDir(), t.TempDir())
	require.NoError(t, err)

	meta, ok := idx.Lookup("yarn")
	require.True(t, ok)
	require.Len(t, meta.Def.Constraints, 2)
	assert.Equal(t, "^1", meta.Def.Constraints[0].When)
	assert.Equal(t, "node", meta.Def.Constraints[0].Requires[0].Runtime)
}

func TestRegisterFactories_BuildsEveryRuntime(t *testing.T) {
	idx, err := LoadIndex(t.TempDir(), t.TempDir())
	require.NoError(t, err)

	reg := provider.NewRegistry(idx)
	RegisterFactories(reg, idx)
	require.NoError(t, reg.Build())

	rt, ok := reg.Lookup("node")
	require.True(t, ok)
	assert.Equal(t, "node", rt.Name())

	yarn, ok := reg.Lookup("yarn")
	require.True(t, ok)
	assert.Equal(t, "javascript", yarn.Ecosystem())
}
