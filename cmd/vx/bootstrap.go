package main

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/terassyi/vx/internal/builtinproviders"
	"github.com/terassyi/vx/internal/ensure"
	"github.com/terassyi/vx/internal/manifest"
	"github.com/terassyi/vx/internal/pipeline"
	"github.com/terassyi/vx/internal/prepare"
	"github.com/terassyi/vx/internal/projectconfig"
	"github.com/terassyi/vx/internal/provider"
	"github.com/terassyi/vx/internal/resolve"
	"github.com/terassyi/vx/internal/rtctx"
	"github.com/terassyi/vx/internal/store"
	"github.com/terassyi/vx/internal/ui"
	"github.com/terassyi/vx/internal/version"
)

// app bundles everything a command needs once built: the store, the
// registry, and a pipeline controller wired for one invocation. Grounded on
// the teacher's cmd/toto commands, each of which loads config/paths/state
// fresh per RunE rather than keeping a global.
type app struct {
	Store      *store.Store
	Index      *manifest.ManifestIndex
	Registry   *provider.Registry
	Project    *projectconfig.Config
	RTContext  *rtctx.RuntimeContext
	Progress   *ui.ProgressManager
	AutoInstall bool
}

// newApp constructs the shared substrate: store, manifest index (embedded +
// user + project overrides), provider registry, project config discovery,
// and a RuntimeContext with a download progress callback wired to a
// terminal progress manager.
func newApp(noColor bool) (*app, error) {
	if noColor {
		disableColor()
	}

	s, err := store.New()
	if err != nil {
		return nil, err
	}

	userManifestDir := filepath.Join(s.Root(), "providers")
	projectManifestDir := ""
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	disc := projectconfig.NewDiscoverer()
	project, err := disc.Discover(cwd)
	if err != nil {
		return nil, err
	}
	if project != nil {
		projectManifestDir = filepath.Join(project.Dir, ".vx", "providers")
	}

	idx, err := builtinproviders.LoadIndex(userManifestDir, projectManifestDir)
	if err != nil {
		return nil, err
	}

	reg := provider.NewRegistry(idx)
	builtinproviders.RegisterFactories(reg, idx)
	if err := reg.Build(); err != nil {
		return nil, err
	}

	progress := ui.NewProgressManager(os.Stdout)
	rc := &rtctx.RuntimeContext{
		HTTPClient:         &http.Client{Timeout: 30 * time.Second},
		Store:              s,
		Platform:           version.Current(),
		OnDownloadProgress: progress.OnDownloadProgress,
	}

	return &app{
		Store:       s,
		Index:       idx,
		Registry:    reg,
		Project:     project,
		RTContext:   rc,
		Progress:    progress,
		AutoInstall: true,
	}, nil
}

// resolver builds a fresh resolve.Resolver bound to this app's substrate.
func (a *app) resolver() *resolve.Resolver {
	return resolve.NewResolver(a.Index, a.Registry, a.Project, a.Store, a.RTContext)
}

// ensureStage builds a fresh ensure.Stage bound to this app's substrate.
func (a *app) ensureStage() *ensure.Stage {
	return ensure.NewStage(a.Registry, a.Store, a.RTContext, a.AutoInstall)
}

// controller builds a fresh pipeline.Controller bound to this app's
// substrate — cheap enough to build per invocation since it only wires
// already-constructed stages together.
func (a *app) controller() *pipeline.Controller {
	prepareStage := prepare.NewStage(a.Registry, a.Store, a.RTContext)
	ctrl := pipeline.NewController(a.resolver(), a.ensureStage(), prepareStage, a.Project)
	ctrl.OnEnsured = func(plan *resolve.ResolutionPlan) {
		if err := publishShims(a, plan); err != nil {
			slog.Warn("publish shims", "error", err)
		}
	}
	return ctrl
}

// launcherPath returns the path to this running binary, for shims to re-exec.
func launcherPath() (string, error) {
	return os.Executable()
}
