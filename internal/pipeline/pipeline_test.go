package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terassyi/vx/internal/ensure"
	"github.com/terassyi/vx/internal/manifest"
	"github.com/terassyi/vx/internal/prepare"
	"github.com/terassyi/vx/internal/projectconfig"
	"github.com/terassyi/vx/internal/provider"
	"github.com/terassyi/vx/internal/resolve"
	"github.com/terassyi/vx/internal/rtctx"
	"github.com/terassyi/vx/internal/store"
	"github.com/terassyi/vx/internal/version"
	vxerrors "github.com/terassyi/vx/internal/vxerrors"
)

// scriptRuntime is a provider.Runtime whose "install" just drops an
// executable shell script on disk, so Execute has something real to run.
type scriptRuntime struct {
	name, script string
}

func (s *scriptRuntime) Name() string        { return s.name }
func (s *scriptRuntime) Description() string { return s.name }
func (s *scriptRuntime) Ecosystem() string   { return s.name }
func (s *scriptRuntime) Aliases() []string   { return nil }
func (s *scriptRuntime) Metadata() manifest.RuntimeMetadata {
	return manifest.RuntimeMetadata{Def: manifest.RuntimeDef{Name: s.name}}
}
func (s *scriptRuntime) ExecutableRelativePath(ver version.Version, platform version.Platform) string {
	return filepath.Join("bin", s.name)
}
func (s *scriptRuntime) SupportedPlatforms() (version.Constraint, bool) {
	return version.AnyPlatform(), true
}
func (s *scriptRuntime) FetchVersions(ctx context.Context, rc *rtctx.RuntimeContext) ([]provider.VersionInfo, error) {
	return nil, nil
}
func (s *scriptRuntime) DownloadURL(ver version.Version, platform version.Platform) (string, bool) {
	return "", false
}
func (s *scriptRuntime) Install(ctx context.Context, ver version.Version, rc *rtctx.RuntimeContext) (provider.InstallResult, error) {
	dir, err := rc.Store.CreateToolVersionDir(s.name, ver.String())
	if err != nil {
		return provider.InstallResult{}, err
	}
	binDir := filepath.Join(dir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return provider.InstallResult{}, err
	}
	path := filepath.Join(binDir, s.name)
	if err := os.WriteFile(path, []byte(s.script), 0o755); err != nil {
		return provider.InstallResult{}, err
	}
	return provider.InstallResult{Path: path, Version: ver}, nil
}
func (s *scriptRuntime) VerifyInstallation(ver version.Version, path string, platform version.Platform) provider.VerifyResult {
	if _, err := os.Stat(filepath.Join(path, "bin", s.name)); err != nil {
		return provider.VerifyResult{Success: false, Errors: []string{"missing"}}
	}
	return provider.VerifyResult{Success: true}
}
func (s *scriptRuntime) PrepareExecution(ctx context.Context, ver version.Version, rc *rtctx.RuntimeContext) (provider.ExecutionPrep, error) {
	return provider.ExecutionPrep{ProxyReady: true}, nil
}

func newFixture(t *testing.T, rt *scriptRuntime) (*Controller, *store.Store) {
	t.Helper()
	idx := manifest.NewIndex(manifest.ProviderManifest{
		Provider: manifest.ProviderMeta{Name: "test"},
		Runtimes: []manifest.RuntimeDef{{Name: rt.name, Executable: rt.name}},
	})
	reg := provider.NewRegistry(idx)
	reg.Register(rt.name, func(meta manifest.RuntimeMetadata) (provider.Runtime, error) { return rt, nil })
	require.NoError(t, reg.Build())

	s := store.NewAt(t.TempDir())
	rc := &rtctx.RuntimeContext{Store: s, Platform: version.Current()}

	resolver := resolve.NewResolver(idx, reg, nil, s, rc)
	ensureStage := ensure.NewStage(reg, s, rc, true)
	prepareStage := prepare.NewStage(reg, s, rc)

	return NewController(resolver, ensureStage, prepareStage, nil), s
}

func TestController_Run_InstallsAndExecutes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell script fixture")
	}
	rt := &scriptRuntime{name: "node", script: "#!/bin/sh\nexit 3\n"}
	ctrl, s := newFixture(t, rt)

	spec := resolve.ToolSpec{Name: "node", Request: resolve.VersionRequest{Kind: resolve.RequestExact, Exact: version.MustParse("20.11.0")}, Explicit: true}
	code, metrics, err := ctrl.Run(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Len(t, metrics.Stages, 4)
	assert.True(t, s.IsToolVersionInstalled("node", "20.11.0", filepath.Join("bin", "node")))
}

func TestController_Run_UnknownRuntimeClassifiesResolveError(t *testing.T) {
	rt := &scriptRuntime{name: "node", script: "#!/bin/sh\nexit 0\n"}
	ctrl, _ := newFixture(t, rt)

	spec := resolve.ToolSpec{Name: "doesnotexist", Request: resolve.VersionRequest{Kind: resolve.RequestLatest}}
	code, _, err := ctrl.Run(context.Background(), spec, nil)
	require.Error(t, err)
	assert.Equal(t, 1, code)

	var pe *vxerrors.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.NotNil(t, pe.Resolve)
}

func TestController_Run_AutoInstallDisabledClassifiesEnsureError(t *testing.T) {
	rt := &scriptRuntime{name: "node", script: "#!/bin/sh\nexit 0\n"}
	idx := manifest.NewIndex(manifest.ProviderManifest{
		Provider: manifest.ProviderMeta{Name: "test"},
		Runtimes: []manifest.RuntimeDef{{Name: rt.name, Executable: rt.name}},
	})
	reg := provider.NewRegistry(idx)
	reg.Register(rt.name, func(meta manifest.RuntimeMetadata) (provider.Runtime, error) { return rt, nil })
	require.NoError(t, reg.Build())

	s := store.NewAt(t.TempDir())
	rc := &rtctx.RuntimeContext{Store: s, Platform: version.Current()}
	resolver := resolve.NewResolver(idx, reg, nil, s, rc)
	ensureStage := ensure.NewStage(reg, s, rc, false)
	prepareStage := prepare.NewStage(reg, s, rc)
	ctrl := NewController(resolver, ensureStage, prepareStage, nil)

	spec := resolve.ToolSpec{Name: "node", Request: resolve.VersionRequest{Kind: resolve.RequestExact, Exact: version.MustParse("20.11.0")}, Explicit: true}
	code, _, err := ctrl.Run(context.Background(), spec, nil)
	require.Error(t, err)
	assert.Equal(t, 1, code)

	var pe *vxerrors.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.NotNil(t, pe.Ensure)
}

func TestController_Run_WithCompanionTool(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell script fixture")
	}
	node := &scriptRuntime{name: "node", script: "#!/bin/sh\nexit 0\n"}
	rust := &scriptRuntime{name: "rust", script: "#!/bin/sh\nexit 0\n"}

	idx := manifest.NewIndex(manifest.ProviderManifest{
		Provider: manifest.ProviderMeta{Name: "test"},
		Runtimes: []manifest.RuntimeDef{
			{Name: node.name, Executable: node.name},
			{Name: rust.name, Executable: rust.name},
		},
	})
	reg := provider.NewRegistry(idx)
	reg.Register(node.name, func(meta manifest.RuntimeMetadata) (provider.Runtime, error) { return node, nil })
	reg.Register(rust.name, func(meta manifest.RuntimeMetadata) (provider.Runtime, error) { return rust, nil })
	require.NoError(t, reg.Build())

	s := store.NewAt(t.TempDir())
	rc := &rtctx.RuntimeContext{Store: s, Platform: version.Current()}
	proj := &projectconfig.Config{Tools: map[string]string{"node": "20.11.0", "rust": "1.75.0"}}
	resolver := resolve.NewResolver(idx, reg, proj, s, rc)
	ensureStage := ensure.NewStage(reg, s, rc, true)
	prepareStage := prepare.NewStage(reg, s, rc)
	ctrl := NewController(resolver, ensureStage, prepareStage, proj)

	spec := resolve.ToolSpec{Name: "node", Request: resolve.VersionRequest{Kind: resolve.RequestExact, Exact: version.MustParse("20.11.0")}, Explicit: true}
	code, _, err := ctrl.Run(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.True(t, s.IsToolVersionInstalled("rust", "1.75.0", filepath.Join("bin", "rust")))
}
