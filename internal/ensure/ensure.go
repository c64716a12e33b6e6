// Package ensure implements the Ensure Stage (C10): for each entry in a
// resolution plan, install the (runtime, version) pair if it's missing
// (honouring the auto-install policy), materialise any "latest"/"lts"
// requests the resolver deferred, and skip entries managed by a parent
// runtime's install. Installs run strictly in plan order (§5: "a later
// entry is never installed before its declared dependency completes"),
// which falls out naturally from iterating the already-leaves-first plan.
//
// Grounded on the teacher's internal/installer/engine.Engine (layered
// execution with an Event/Phase model), trimmed to this spec's single,
// sequential per-invocation contract — concurrent cross-process dedup is
// already provided by internal/installer's keyed mutex + lock file (§4.7),
// so this stage does not re-implement it.
package ensure

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/terassyi/vx/internal/projectconfig"
	"github.com/terassyi/vx/internal/provider"
	"github.com/terassyi/vx/internal/resolve"
	"github.com/terassyi/vx/internal/rtctx"
	"github.com/terassyi/vx/internal/store"
	"github.com/terassyi/vx/internal/version"
	vxerrors "github.com/terassyi/vx/internal/vxerrors"
)

// companionConcurrency bounds how many companion tools are resolved and
// ensured at once — the per-plan install sequencing of Ensure itself stays
// single-threaded (§4.10); this only parallelises the independent companion
// trees a project config declares alongside the primary runtime.
const companionConcurrency = 4

// Stage runs the Ensure step of the pipeline against a provider registry
// and store.
type Stage struct {
	Registry        *provider.Registry
	Store           *store.Store
	RuntimeContext  *rtctx.RuntimeContext
	AutoInstall     bool
	AllowPrerelease bool
}

// NewStage builds an Ensure Stage. autoInstall gates whether a missing
// (runtime, version) is installed automatically or reported as
// EnsureAutoInstallDisabled (§4.10).
func NewStage(reg *provider.Registry, s *store.Store, rc *rtctx.RuntimeContext, autoInstall bool) *Stage {
	return &Stage{Registry: reg, Store: s, RuntimeContext: rc, AutoInstall: autoInstall}
}

// Ensure walks plan in order, mutating each entry's Version/Unresolved in
// place as "latest" requests materialise, so later stages (Prepare,
// Execute) observe concrete versions.
func (s *Stage) Ensure(ctx context.Context, plan *resolve.ResolutionPlan) error {
	for i := range plan.Entries {
		entry := &plan.Entries[i]

		if entry.ManagedBy != "" {
			if parent, ok := plan.Lookup(entry.ManagedBy); ok {
				entry.Version = parent.Version
				entry.Unresolved = parent.Unresolved
			}
			continue
		}

		rt, ok := s.Registry.Lookup(entry.Runtime)
		if !ok {
			return vxerrors.WrapEnsure(vxerrors.NewEnsureError(vxerrors.EnsureNotInstalled, entry.Runtime, entry.Version.String(),
				"no provider registered for this runtime").WithHint("check that a provider manifest declares this runtime"))
		}

		if entry.Unresolved {
			v, err := s.materialize(ctx, rt, entry.Request)
			if err != nil {
				return err
			}
			entry.Version = v
			entry.Unresolved = false
		}

		if s.isInstalled(rt, entry.Version) {
			continue
		}

		if !s.AutoInstall {
			return vxerrors.WrapEnsure(vxerrors.NewEnsureError(vxerrors.EnsureAutoInstallDisabled, entry.Runtime, entry.Version.String(),
				"not installed").WithHint("install disabled: enable auto-install or run `vx install " + entry.Runtime + "@" + entry.Version.String() + "`"))
		}

		if _, err := rt.Install(ctx, entry.Version, s.RuntimeContext); err != nil {
			kind := vxerrors.EnsureInstallFailed
			if entry.Source == resolve.SourceDependency {
				kind = vxerrors.EnsureDependencyInstallFailed
			}
			return vxerrors.WrapEnsure(vxerrors.NewEnsureError(kind, entry.Runtime, entry.Version.String(),
				"install failed").WithCause(err))
		}

		installDir := s.Store.ToolVersionDir(entry.Runtime, entry.Version.String())
		verify := rt.VerifyInstallation(entry.Version, installDir, s.RuntimeContext.Platform)
		if !verify.Success {
			return vxerrors.WrapEnsure(vxerrors.NewEnsureError(vxerrors.EnsurePostInstallVerifyFailed, entry.Runtime, entry.Version.String(),
				fmt.Sprintf("installed payload failed verification: %v", verify.Errors)))
		}

		if err := s.Store.SetCurrentVersion(entry.Runtime, entry.Version.String()); err != nil {
			return fmt.Errorf("ensure: update current pointer for %s: %w", entry.Runtime, err)
		}
	}
	return nil
}

// EnsureCompanions resolves and ensures each companion tool's own dependency
// tree concurrently, bounded by companionConcurrency, since companions are
// independent of each other and of the primary runtime's plan (§4.10,
// "bounding concurrent companion-tool ensures"). It returns every error
// encountered rather than failing fast, since one companion's failure
// shouldn't block ensuring the others.
func (s *Stage) EnsureCompanions(ctx context.Context, resolver *resolve.Resolver, companions []projectconfig.CompanionTool) []error {
	if len(companions) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(companionConcurrency)
	var mu sync.Mutex
	var errs []error
	var wg sync.WaitGroup

	for _, companion := range companions {
		companion := companion
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			if err := s.ensureOne(ctx, resolver, companion); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}

func (s *Stage) ensureOne(ctx context.Context, resolver *resolve.Resolver, companion projectconfig.CompanionTool) error {
	req, err := resolve.ParseVersionRequest(companion.Version)
	if err != nil {
		return fmt.Errorf("ensure: companion %s: %w", companion.Name, err)
	}
	spec := resolve.ToolSpec{Name: companion.Name, Request: req, Explicit: companion.Version != ""}

	plan, err := resolver.Resolve(ctx, spec)
	if err != nil {
		return fmt.Errorf("ensure: resolve companion %s: %w", companion.Name, err)
	}
	if err := s.Ensure(ctx, plan); err != nil {
		return fmt.Errorf("ensure: companion %s: %w", companion.Name, err)
	}
	return nil
}

// isInstalled reports whether (runtime, version) is already present and
// verified (§4.10: "is_tool_version_installed and verify_installation
// passes").
func (s *Stage) isInstalled(rt provider.Runtime, ver version.Version) bool {
	execRel := rt.ExecutableRelativePath(ver, s.RuntimeContext.Platform)
	if !s.Store.IsToolVersionInstalled(rt.Name(), ver.String(), execRel) {
		return false
	}
	installDir := s.Store.ToolVersionDir(rt.Name(), ver.String())
	return rt.VerifyInstallation(ver, installDir, s.RuntimeContext.Platform).Success
}

// materialize resolves a deferred "latest"/"lts"/"stable" request into a
// concrete version by querying the runtime's fetcher (§4.9 step 2's
// explicit deferral to Ensure).
func (s *Stage) materialize(ctx context.Context, rt provider.Runtime, req resolve.VersionRequest) (version.Version, error) {
	infos, err := rt.FetchVersions(ctx, s.RuntimeContext)
	if err != nil {
		return version.Version{}, vxerrors.WrapEnsure(vxerrors.NewEnsureError(vxerrors.EnsureInstallFailed, rt.Name(), "",
			"failed to fetch available versions").WithCause(err))
	}

	var candidates []rtctx.VersionInfo
	for _, info := range infos {
		if info.Prerelease && !s.AllowPrerelease {
			continue
		}
		if req.Kind == resolve.RequestLTS && !info.LTS {
			continue
		}
		candidates = append(candidates, info)
	}
	if len(candidates) == 0 {
		return version.Version{}, vxerrors.WrapEnsure(vxerrors.NewEnsureError(vxerrors.EnsureInstallFailed, rt.Name(), "",
			"no matching version found"))
	}

	best := candidates[0].Version
	for _, c := range candidates[1:] {
		if version.Less(best, c.Version) {
			best = c.Version
		}
	}
	return best, nil
}
