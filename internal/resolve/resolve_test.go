package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terassyi/vx/internal/manifest"
	"github.com/terassyi/vx/internal/version"
)

func testIndex() *manifest.ManifestIndex {
	idx := manifest.NewIndex(
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "node"},
			Runtimes: []manifest.RuntimeDef{
				{Name: "node", Executable: "node"},
			},
		},
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "yarn"},
			Runtimes: []manifest.RuntimeDef{
				{
					Name:       "yarn",
					Executable: "yarn",
					Constraints: []manifest.ConstraintRule{
						{When: "^1", Requires: []manifest.DependencyDef{{Runtime: "node", Range: ">=12,<23"}}},
						{When: ">=4", Requires: []manifest.DependencyDef{{Runtime: "node", Range: ">=18"}}},
					},
				},
			},
		},
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "npm-bundle"},
			Runtimes: []manifest.RuntimeDef{
				{Name: "npm", Executable: "npm", ManagedBy: "node"},
			},
		},
	)
	return idx
}

func TestResolve_YarnRequiresInstalledNode(t *testing.T) {
	idx := testIndex()
	r := &Resolver{
		Index: idx,
		InstalledVers: func(runtime string) []version.Version {
			if runtime == "node" {
				return []version.Version{version.MustParse("20.11.0")}
			}
			return nil
		},
	}

	spec := ToolSpec{Name: "yarn", Request: VersionRequest{Kind: RequestExact, Exact: version.MustParse("1.22.22")}, Explicit: true}
	plan, err := r.Resolve(context.Background(), spec)
	require.NoError(t, err)

	require.Len(t, plan.Entries, 2)
	assert.Equal(t, "node", plan.Entries[0].Runtime)
	assert.Equal(t, "20.11.0", plan.Entries[0].Version.String())
	assert.Equal(t, "yarn", plan.Entries[1].Runtime)
	assert.Equal(t, "1.22.22", plan.Entries[1].Version.String())
}

func TestResolve_YarnRejectsOutOfRangeNode(t *testing.T) {
	idx := testIndex()
	r := &Resolver{
		Index: idx,
		InstalledVers: func(runtime string) []version.Version {
			if runtime == "node" {
				return []version.Version{version.MustParse("23.1.0")}
			}
			return nil
		},
	}

	spec := ToolSpec{Name: "yarn", Request: VersionRequest{Kind: RequestExact, Exact: version.MustParse("1.22.22")}, Explicit: true}
	_, err := r.Resolve(context.Background(), spec)
	require.Error(t, err)
}

func TestResolve_ManagedByRuntimeSharesParentVersion(t *testing.T) {
	idx := testIndex()
	r := &Resolver{
		Index: idx,
		InstalledVers: func(runtime string) []version.Version {
			if runtime == "node" {
				return []version.Version{version.MustParse("20.11.0")}
			}
			return nil
		},
	}

	spec := ToolSpec{Name: "npm", Request: VersionRequest{Kind: RequestLatest}, Explicit: false}
	plan, err := r.Resolve(context.Background(), spec)
	require.NoError(t, err)

	npm, ok := plan.Lookup("npm")
	require.True(t, ok)
	assert.Equal(t, "node", npm.ManagedBy)
	assert.Equal(t, "20.11.0", npm.Version.String())
}

// TestResolve_ConvergingDependenciesIntersectAndRefine covers the
// diamond-dependency case from §4.9 step 4: two sibling dependencies of the
// same root each require "node" via a different range. The version first
// chosen while visiting the first sibling must be re-picked against the
// intersection of both ranges when the second sibling's edge narrows it,
// not silently kept even though it violates the second range.
func TestResolve_ConvergingDependenciesIntersectAndRefine(t *testing.T) {
	idx := manifest.NewIndex(
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "node"},
			Runtimes: []manifest.RuntimeDef{{Name: "node", Executable: "node"}},
		},
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "app"},
			Runtimes: []manifest.RuntimeDef{
				{
					Name: "app",
					Constraints: []manifest.ConstraintRule{
						{When: "*", Requires: []manifest.DependencyDef{
							{Runtime: "toola", Range: "*"},
							{Runtime: "toolb", Range: "*"},
						}},
					},
				},
			},
		},
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "toola"},
			Runtimes: []manifest.RuntimeDef{
				{Name: "toola", Constraints: []manifest.ConstraintRule{
					{When: "*", Requires: []manifest.DependencyDef{{Runtime: "node", Range: ">=12,<23"}}},
				}},
			},
		},
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "toolb"},
			Runtimes: []manifest.RuntimeDef{
				{Name: "toolb", Constraints: []manifest.ConstraintRule{
					{When: "*", Requires: []manifest.DependencyDef{{Runtime: "node", Range: ">=18,<20"}}},
				}},
			},
		},
	)
	r := &Resolver{
		Index: idx,
		InstalledVers: func(runtime string) []version.Version {
			switch runtime {
			case "node":
				return []version.Version{version.MustParse("22.0.0"), version.MustParse("19.5.0")}
			case "toola", "toolb":
				return []version.Version{version.MustParse("1.0.0")}
			default:
				return nil
			}
		},
	}

	spec := ToolSpec{Name: "app", Request: VersionRequest{Kind: RequestExact, Exact: version.MustParse("1.0.0")}, Explicit: true}
	plan, err := r.Resolve(context.Background(), spec)
	require.NoError(t, err)

	node, ok := plan.Lookup("node")
	require.True(t, ok)
	// 22.0.0 satisfies toola's range alone but violates toolb's "<20"; the
	// merged constraint must pick 19.5.0, the only installed version
	// satisfying both.
	assert.Equal(t, "19.5.0", node.Version.String())
}

// TestResolve_ConvergingDependenciesFailWhenUnsatisfiable mirrors the case
// above but with no installed (or fetchable) version satisfying both
// ranges: resolution must fail rather than silently keep whichever version
// the first-visited sibling chose.
func TestResolve_ConvergingDependenciesFailWhenUnsatisfiable(t *testing.T) {
	idx := manifest.NewIndex(
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "node"},
			Runtimes: []manifest.RuntimeDef{{Name: "node", Executable: "node"}},
		},
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "app"},
			Runtimes: []manifest.RuntimeDef{
				{
					Name: "app",
					Constraints: []manifest.ConstraintRule{
						{When: "*", Requires: []manifest.DependencyDef{
							{Runtime: "toola", Range: "*"},
							{Runtime: "toolb", Range: "*"},
						}},
					},
				},
			},
		},
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "toola"},
			Runtimes: []manifest.RuntimeDef{
				{Name: "toola", Constraints: []manifest.ConstraintRule{
					{When: "*", Requires: []manifest.DependencyDef{{Runtime: "node", Range: ">=20,<23"}}},
				}},
			},
		},
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "toolb"},
			Runtimes: []manifest.RuntimeDef{
				{Name: "toolb", Constraints: []manifest.ConstraintRule{
					{When: "*", Requires: []manifest.DependencyDef{{Runtime: "node", Range: ">=12,<16"}}},
				}},
			},
		},
	)
	r := &Resolver{
		Index: idx,
		InstalledVers: func(runtime string) []version.Version {
			switch runtime {
			case "node":
				return []version.Version{version.MustParse("22.0.0")}
			case "toola", "toolb":
				return []version.Version{version.MustParse("1.0.0")}
			default:
				return nil
			}
		},
	}

	spec := ToolSpec{Name: "app", Request: VersionRequest{Kind: RequestExact, Exact: version.MustParse("1.0.0")}, Explicit: true}
	_, err := r.Resolve(context.Background(), spec)
	require.Error(t, err)
}

func TestResolve_CycleDetected(t *testing.T) {
	idx := manifest.NewIndex(
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "a"},
			Runtimes: []manifest.RuntimeDef{
				{Name: "A", Constraints: []manifest.ConstraintRule{{When: "*", Requires: []manifest.DependencyDef{{Runtime: "B", Range: "*"}}}}},
			},
		},
		manifest.ProviderManifest{
			Provider: manifest.ProviderMeta{Name: "b"},
			Runtimes: []manifest.RuntimeDef{
				{Name: "B", Constraints: []manifest.ConstraintRule{{When: "*", Requires: []manifest.DependencyDef{{Runtime: "A", Range: "*"}}}}},
			},
		},
	)
	r := &Resolver{Index: idx}
	spec := ToolSpec{Name: "A", Request: VersionRequest{Kind: RequestExact, Exact: version.MustParse("1.0.0")}, Explicit: true}
	_, err := r.Resolve(context.Background(), spec)
	require.Error(t, err)
}

func TestResolve_UnknownRuntime(t *testing.T) {
	idx := testIndex()
	r := &Resolver{Index: idx}
	spec := ToolSpec{Name: "doesnotexist", Request: VersionRequest{Kind: RequestLatest}}
	_, err := r.Resolve(context.Background(), spec)
	require.Error(t, err)
}

func TestParseVersionRequest(t *testing.T) {
	req, err := ParseVersionRequest("latest")
	require.NoError(t, err)
	assert.Equal(t, RequestLatest, req.Kind)

	req, err = ParseVersionRequest("20.11.0")
	require.NoError(t, err)
	assert.Equal(t, RequestExact, req.Kind)

	req, err = ParseVersionRequest(">=12,<23")
	require.NoError(t, err)
	assert.Equal(t, RequestRange, req.Kind)
}
