// Package prepare implements the Prepare Stage (C11): assembling a
// PreparedExecution from a resolved plan — the root's executable path,
// a PATH-prefix merge across every entry in plan order, an environment
// overlay merged from each runtime's prepare_execution hook plus any
// project-declared companion tools, and a bundled-runtime argv prefix.
//
// Grounded on the teacher's internal/env/env.go (sorted, deduplicated PATH
// construction from a runtime list) and internal/env/shell.go (env overlay
// shape), adapted from "build a shell export block" to "build one child
// process's argv/env" since this spec prepares a single execution, not a
// persistent shell environment.
package prepare

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/terassyi/vx/internal/projectconfig"
	"github.com/terassyi/vx/internal/provider"
	"github.com/terassyi/vx/internal/resolve"
	"github.com/terassyi/vx/internal/rtctx"
	"github.com/terassyi/vx/internal/store"
	vxerrors "github.com/terassyi/vx/internal/vxerrors"
)

// PreparedExecution is everything the Execute Stage needs to spawn the
// child process (§3).
type PreparedExecution struct {
	Executable string
	Argv       []string
	Cwd        string
	EnvOverlay map[string]string
	PathPrefix []string
	ProxyReady bool
	Message    string
}

// CompanionResult is the env/PATH contribution of one companion tool's own
// resolved plan, ready to fold into the primary PreparedExecution.
type CompanionResult struct {
	Name       string
	EnvOverlay map[string]string
	PathPrefix []string
}

// Stage runs the Prepare step against a provider registry and store.
type Stage struct {
	Registry       *provider.Registry
	Store          *store.Store
	RuntimeContext *rtctx.RuntimeContext
}

// NewStage builds a Prepare Stage.
func NewStage(reg *provider.Registry, s *store.Store, rc *rtctx.RuntimeContext) *Stage {
	return &Stage{Registry: reg, Store: s, RuntimeContext: rc}
}

// Prepare builds a PreparedExecution for the plan's root entry, folding in
// PATH/env contributions from every entry and from any project-declared
// companion tools, and prepending argv with a bundled runtime's command
// prefix.
func (s *Stage) Prepare(ctx context.Context, plan *resolve.ResolutionPlan, args []string, companions []CompanionResult) (*PreparedExecution, error) {
	root := plan.Root()

	prep := &PreparedExecution{
		Argv:       append([]string{}, args...),
		EnvOverlay: map[string]string{},
	}

	seenPath := map[string]struct{}{}
	addPathPrefix := func(dirs []string) {
		for _, d := range dirs {
			if d == "" {
				continue
			}
			if _, ok := seenPath[d]; ok {
				continue
			}
			seenPath[d] = struct{}{}
			prep.PathPrefix = append(prep.PathPrefix, d)
		}
	}

	var rootExecutable string
	var rootCommandPrefix []string

	for _, entry := range plan.Entries {
		runtimeName := entry.Runtime
		lookupName := runtimeName
		lookupVersion := entry.Version
		if entry.ManagedBy != "" {
			lookupName = entry.ManagedBy
			if parent, ok := plan.Lookup(entry.ManagedBy); ok {
				lookupVersion = parent.Version
			}
		}

		rt, ok := s.Registry.Lookup(runtimeName)
		if !ok {
			return nil, vxerrors.WrapPrepare(vxerrors.NewPrepareError(vxerrors.PrepareUnknownRuntime, runtimeName,
				"no provider registered for this runtime"))
		}

		execPrep, err := rt.PrepareExecution(ctx, entry.Version, s.RuntimeContext)
		if err != nil {
			return nil, vxerrors.WrapPrepare(vxerrors.NewPrepareError(vxerrors.PrepareEnvironmentFailed, runtimeName,
				fmt.Sprintf("prepare_execution failed: %v", err)))
		}

		if entry.ManagedBy != "" {
			installDir := s.Store.ToolVersionDir(lookupName, lookupVersion.String())
			execRel := rt.ExecutableRelativePath(entry.Version, s.RuntimeContext.Platform)
			execPrep.ExecutableOverride = filepath.Join(installDir, execRel)
			execPrep.PathPrefix = []string{filepath.Dir(execPrep.ExecutableOverride)}
		}

		addPathPrefix(execPrep.PathPrefix)
		mergeEnvFillAbsent(prep.EnvOverlay, execPrep.EnvOverlay)

		if runtimeName == root.Runtime {
			if execPrep.ExecutableOverride != "" {
				rootExecutable = execPrep.ExecutableOverride
			} else {
				installDir := s.Store.ToolVersionDir(runtimeName, entry.Version.String())
				rootExecutable = filepath.Join(installDir, rt.ExecutableRelativePath(entry.Version, s.RuntimeContext.Platform))
				addPathPrefix([]string{filepath.Dir(rootExecutable)})
			}
			if bundled, isBundled := rt.(provider.BundledRuntime); isBundled {
				rootCommandPrefix = bundled.CommandPrefix()
			}
			prep.ProxyReady = execPrep.ProxyReady
			prep.Message = execPrep.Message
		}
	}

	if rootExecutable == "" {
		return nil, vxerrors.WrapPrepare(vxerrors.NewPrepareError(vxerrors.PrepareNoExecutable, root.Runtime,
			"could not determine an executable path for this runtime"))
	}
	prep.Executable = rootExecutable
	if len(rootCommandPrefix) > 0 {
		prep.Argv = append(append([]string{}, rootCommandPrefix...), prep.Argv...)
	}

	for _, c := range companions {
		mergeEnvFillAbsent(prep.EnvOverlay, c.EnvOverlay)
		addPathPrefix(c.PathPrefix)
	}

	return prep, nil
}

// mergeEnvFillAbsent copies src into dst, never overwriting a key dst
// already has (§4.11 step 4: "later companions do not overwrite earlier
// ones, only fill in absent keys").
func mergeEnvFillAbsent(dst, src map[string]string) {
	for k, v := range src {
		if _, exists := dst[k]; exists {
			continue
		}
		dst[k] = v
	}
}

// CompanionPrep resolves and prepares a single companion tool's own plan,
// returning just the env/PATH contributions the primary execution should
// fold in (§4.11 step 4). It does not install anything — the caller is
// expected to have already run ensure.Stage.EnsureCompanions.
func (s *Stage) CompanionPrep(ctx context.Context, resolver *resolve.Resolver, companion projectconfig.CompanionTool) (CompanionResult, error) {
	req, err := resolve.ParseVersionRequest(companion.Version)
	if err != nil {
		return CompanionResult{}, fmt.Errorf("prepare: companion %s: %w", companion.Name, err)
	}
	plan, err := resolver.Resolve(ctx, resolve.ToolSpec{Name: companion.Name, Request: req, Explicit: companion.Version != ""})
	if err != nil {
		return CompanionResult{}, fmt.Errorf("prepare: resolve companion %s: %w", companion.Name, err)
	}

	result := CompanionResult{Name: companion.Name, EnvOverlay: map[string]string{}}
	for _, entry := range plan.Entries {
		rt, ok := s.Registry.Lookup(entry.Runtime)
		if !ok {
			continue
		}
		execPrep, err := rt.PrepareExecution(ctx, entry.Version, s.RuntimeContext)
		if err != nil {
			continue
		}
		result.PathPrefix = append(result.PathPrefix, execPrep.PathPrefix...)
		for k, v := range execPrep.EnvOverlay {
			result.EnvOverlay[k] = v
		}
	}
	return result, nil
}
