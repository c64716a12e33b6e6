// Package builtinproviders embeds the manifests and version fetchers for
// the runtimes vx supports out of the box (node, go, rust, python, uv, bun,
// yarn, pnpm), mirroring the teacher's pattern of shipping a registry seeded
// from embedded configuration that user and project files may override.
package builtinproviders

import (
	"embed"

	"github.com/terassyi/vx/internal/fetch"
	"github.com/terassyi/vx/internal/manifest"
	"github.com/terassyi/vx/internal/provider"
)

//go:embed manifests/*.toml
var manifestFS embed.FS

// LoadIndex builds the ManifestIndex from the embedded manifests plus the
// user and project override directories (§4.4's three-source priority).
func LoadIndex(userDir, projectDir string) (*manifest.ManifestIndex, error) {
	idx, err := manifest.LoadAll(manifestFS, "manifests", userDir, projectDir)
	if err != nil {
		return nil, err
	}
	idx.ApplyBuiltinConstraints()
	return idx, nil
}

// fetcherFor returns the Fetcher backing a builtin runtime's FetchVersions,
// or nil for managed-by runtimes whose versions always mirror their parent.
func fetcherFor(runtimeName string) fetch.Fetcher {
	switch runtimeName {
	case "node":
		return &fetch.NodeIndex{}
	case "go":
		return &fetch.GoDev{}
	case "rustup":
		return fetch.NewGitHubReleases("rust-lang", "rustup", "")
	case "python":
		return fetch.NewGitHubReleases("astral-sh", "python-build-standalone", "")
	case "uv":
		return fetch.NewGitHubReleases("astral-sh", "uv", "")
	case "bun":
		return fetch.NewGitHubReleases("oven-sh", "bun", "bun-v")
	case "yarn":
		return fetch.NewGitHubReleases("yarnpkg", "yarn", "v")
	case "pnpm":
		return fetch.NewGitHubReleases("pnpm", "pnpm", "v")
	default:
		return nil
	}
}

// RegisterFactories wires a GenericRuntime factory, backed by fetcherFor,
// into reg for every runtime name the index knows about. Call this before
// Registry.Build.
func RegisterFactories(reg *provider.Registry, idx *manifest.ManifestIndex) {
	for _, name := range idx.RuntimeNames() {
		fetcher := fetcherFor(name)
		reg.Register(name, func(meta manifest.RuntimeMetadata) (provider.Runtime, error) {
			return provider.NewGenericRuntime(meta, fetcher), nil
		})
	}
}
