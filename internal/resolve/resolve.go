// Package resolve implements the Resolver (C9): given a root ToolSpec it
// normalises aliases, determines the root's requested version by the §4.9
// priority order, walks the dependency graph the constraints registry (C4)
// describes, picks concrete versions for dependencies by the tie-break
// rules, detects cycles and platform-unsupported runtimes, and produces a
// topologically ordered ResolutionPlan (leaves first, root last).
//
// Grounded on the teacher's internal/graph (dag.go) for cycle detection and
// layered topological sort, here flattened into the spec's single ordered
// plan via internal/depgraph.
package resolve

import (
	"context"
	"fmt"

	"github.com/terassyi/vx/internal/depgraph"
	"github.com/terassyi/vx/internal/manifest"
	"github.com/terassyi/vx/internal/projectconfig"
	"github.com/terassyi/vx/internal/provider"
	"github.com/terassyi/vx/internal/rtctx"
	"github.com/terassyi/vx/internal/store"
	"github.com/terassyi/vx/internal/version"
	vxerrors "github.com/terassyi/vx/internal/vxerrors"
)

// RequestKind discriminates the shape of a requested version (§3 ToolSpec).
type RequestKind string

const (
	RequestExact  RequestKind = "exact"
	RequestRange  RequestKind = "range"
	RequestLatest RequestKind = "latest"
	RequestLTS    RequestKind = "lts"
	RequestStable RequestKind = "stable"
)

// VersionRequest is one of exact/range/latest/lts/stable (§3).
type VersionRequest struct {
	Kind  RequestKind
	Exact version.Version // valid when Kind == RequestExact
	Range version.Range   // valid when Kind == RequestRange
	Raw   string          // original string, for error messages
}

// ParseVersionRequest interprets a raw CLI/config version string into a
// VersionRequest. "latest", "lts", "stable" are recognised keywords;
// anything parseable as an exact version is RequestExact; otherwise it is
// treated as a range expression understood by version.ParseConstraint.
func ParseVersionRequest(raw string) (VersionRequest, error) {
	switch raw {
	case "", "latest":
		return VersionRequest{Kind: RequestLatest, Raw: raw}, nil
	case "lts":
		return VersionRequest{Kind: RequestLTS, Raw: raw}, nil
	case "stable":
		return VersionRequest{Kind: RequestStable, Raw: raw}, nil
	}
	if v, err := version.Parse(raw); err == nil {
		return VersionRequest{Kind: RequestExact, Exact: v, Raw: raw}, nil
	}
	r, err := version.ParseConstraint(raw)
	if err != nil {
		return VersionRequest{}, fmt.Errorf("resolve: invalid version request %q: %w", raw, err)
	}
	return VersionRequest{Kind: RequestRange, Range: r, Raw: raw}, nil
}

// ToolSpec is the resolver's input: the runtime the user invoked, its
// requested version, and whether that request came explicitly from the CLI
// (§3).
type ToolSpec struct {
	Name     string
	Request  VersionRequest
	Explicit bool
}

// Source names where a ResolutionEntry's version came from (§3).
type Source string

const (
	SourceCLI        Source = "cli"
	SourceProject    Source = "project"
	SourceLock       Source = "lock"
	SourceGlobal     Source = "global"
	SourceDefault    Source = "default"
	SourceDependency Source = "dependency"
)

// ResolutionEntry is one (runtime, version) the plan names (§3).
type ResolutionEntry struct {
	Runtime    string
	Version    version.Version
	Unresolved bool // true when Version request is "latest" and materialisation is deferred to Ensure
	Request    VersionRequest
	Source     Source
	PlatformOK bool
	// ManagedBy is set when this runtime is manifest-declared managed_by a
	// parent (npm/npx→node, pip/pip3→python, gofmt→go, rustc/cargo→rustup):
	// it has no independent install directory and Ensure/Prepare must defer
	// to the parent's.
	ManagedBy string
}

// ResolutionPlan is the resolver's output (§3): leaves first, root last.
type ResolutionPlan struct {
	Entries []ResolutionEntry
}

// Root returns the final (requested) entry of the plan.
func (p *ResolutionPlan) Root() ResolutionEntry {
	return p.Entries[len(p.Entries)-1]
}

// Lookup finds an entry by runtime name.
func (p *ResolutionPlan) Lookup(runtime string) (ResolutionEntry, bool) {
	for _, e := range p.Entries {
		if e.Runtime == runtime {
			return e, true
		}
	}
	return ResolutionEntry{}, false
}

// GlobalDefaultFunc resolves a tool's globally-pinned version (the
// "current" pointer, §4.1), the step between lockfile and provider default
// in §4.9's priority order.
type GlobalDefaultFunc func(runtime string) (string, bool)

// InstalledVersionsFunc lists installed versions for a runtime, used by the
// tie-break rule that prefers an already-installed version over a fresh
// fetch (§4.9).
type InstalledVersionsFunc func(runtime string) []version.Version

// Resolver implements C9 against a manifest index and provider registry.
type Resolver struct {
	Index           *manifest.ManifestIndex
	Registry        *provider.Registry
	Project         *projectconfig.Config
	GlobalDefault   GlobalDefaultFunc
	InstalledVers   InstalledVersionsFunc
	RuntimeContext  *rtctx.RuntimeContext
	AllowPrerelease bool
}

// NewResolver builds a Resolver backed by s for installed-version lookups
// and global "current" pointers.
func NewResolver(idx *manifest.ManifestIndex, reg *provider.Registry, proj *projectconfig.Config, s *store.Store, rc *rtctx.RuntimeContext) *Resolver {
	return &Resolver{
		Index:          idx,
		Registry:       reg,
		Project:        proj,
		RuntimeContext: rc,
		GlobalDefault: func(runtime string) (string, bool) {
			return s.CurrentVersion(runtime)
		},
		InstalledVers: func(runtime string) []version.Version {
			names, err := s.ListToolVersions(runtime)
			if err != nil {
				return nil
			}
			var out []version.Version
			for _, n := range names {
				if v, err := version.Parse(n); err == nil {
					out = append(out, v)
				}
			}
			return out
		},
	}
}

// Resolve implements §4.9 end to end for the given root spec.
func (r *Resolver) Resolve(ctx context.Context, spec ToolSpec) (*ResolutionPlan, error) {
	canonical, ok := r.Index.Resolve(spec.Name)
	if !ok {
		return nil, vxerrors.NewResolveError(vxerrors.ResolveRuntimeNotFound, spec.Name,
			fmt.Sprintf("unknown runtime or alias %q", spec.Name))
	}

	rootRequest := spec.Request
	rootSource := SourceCLI
	if !spec.Explicit {
		req, src, err := r.determineRootRequest(canonical)
		if err != nil {
			return nil, err
		}
		rootRequest = req
		rootSource = src
	}

	g := depgraph.New()
	entries := make(map[string]ResolutionEntry)
	onStack := make(map[string]bool)

	var visit func(name string, req VersionRequest, source Source) error
	visit = func(name string, req VersionRequest, source Source) error {
		canon, ok := r.Index.Resolve(name)
		if !ok {
			return vxerrors.NewResolveError(vxerrors.ResolveRuntimeNotFound, name,
				fmt.Sprintf("unknown runtime or alias %q", name))
		}

		if onStack[canon] {
			return vxerrors.NewResolveError(vxerrors.ResolveDependencyCycle, canon, "dependency cycle detected")
		}

		if existing, ok := entries[canon]; ok {
			if existing.ManagedBy != "" {
				// A managed_by runtime has no version of its own to refine;
				// it always mirrors whatever its parent resolved to.
				return nil
			}

			merged, err := mergeRequest(existing.Request, req)
			if err != nil {
				return vxerrors.NewResolveError(vxerrors.ResolveVersionNotFound, canon, err.Error())
			}

			// §4.9 step 4: "intersect any already-pinned version with the
			// new range and either refine or fail". If the version already
			// chosen for canon no longer satisfies the combined constraint,
			// re-pick a version that satisfies it; fail if none exists.
			if !existing.Unresolved && !requestSatisfiedBy(merged, existing.Version) {
				v, unresolved, err := r.pickVersion(ctx, canon, merged)
				if err != nil {
					return err
				}
				existing.Version = v
				existing.Unresolved = unresolved
			}
			existing.Request = merged
			entries[canon] = existing
			return nil
		}

		onStack[canon] = true
		defer func() { onStack[canon] = false }()

		g.AddNode(canon)

		meta, _ := r.Index.Lookup(canon)
		managedBy := ""
		if meta != nil {
			managedBy = meta.Def.ManagedBy
		}

		var chosen version.Version
		unresolved := false
		if managedBy != "" {
			// A managed_by runtime has no independent version: it shares
			// whatever version its parent resolves to.
			if err := visit(managedBy, VersionRequest{Kind: RequestLatest}, SourceDependency); err != nil {
				return err
			}
			parentEntry := entries[managedBy]
			chosen = parentEntry.Version
			unresolved = parentEntry.Unresolved
			g.AddEdge(canon, managedBy)
		} else {
			v, unres, err := r.pickVersion(ctx, canon, req)
			if err != nil {
				return err
			}
			chosen = v
			unresolved = unres
		}

		platformOK := true
		if meta != nil && !meta.Platform.Unconstrained {
			platformOK = meta.Platform.Allows(r.currentPlatform())
		}

		entries[canon] = ResolutionEntry{
			Runtime:    canon,
			Version:    chosen,
			Unresolved: unresolved,
			Request:    req,
			Source:     source,
			PlatformOK: platformOK,
			ManagedBy:  managedBy,
		}

		if managedBy != "" || meta == nil || unresolved {
			return nil
		}

		requires, _, err := manifest.ResolveConstraints(meta.Def, chosen)
		if err != nil {
			return vxerrors.NewResolveError(vxerrors.ResolveFailed, canon, err.Error())
		}
		for _, dep := range requires {
			g.AddNode(dep.Runtime)
			depReq := VersionRequest{Kind: RequestRange, Range: dep.Range, Raw: dep.RangeRaw}
			if err := visit(dep.Runtime, depReq, SourceDependency); err != nil {
				return err
			}
			g.AddEdge(canon, dep.Runtime)
		}
		return nil
	}

	if err := visit(canonical, rootRequest, rootSource); err != nil {
		return nil, err
	}

	order, err := g.TopoSortLeavesFirst()
	if err != nil {
		var cycleErr *depgraph.CycleError
		if cycleAs(err, &cycleErr) {
			return nil, vxerrors.NewResolveError(vxerrors.ResolveDependencyCycle, canonical,
				fmt.Sprintf("dependency cycle: %v", cycleErr.Cycle))
		}
		return nil, vxerrors.NewResolveError(vxerrors.ResolveFailed, canonical, err.Error())
	}

	var unsupported []string
	plan := &ResolutionPlan{}
	for _, name := range order {
		e := entries[name]
		if !e.PlatformOK {
			unsupported = append(unsupported, fmt.Sprintf("%s is not supported on this platform", name))
		}
		plan.Entries = append(plan.Entries, e)
	}

	if len(unsupported) > 0 {
		return nil, vxerrors.WrapPlatformUnsupported(unsupported)
	}

	return plan, nil
}

func cycleAs(err error, target **depgraph.CycleError) bool {
	if ce, ok := err.(*depgraph.CycleError); ok {
		*target = ce
		return true
	}
	return false
}

// determineRootRequest implements §4.9 step 2's priority order for the root
// tool when the CLI gave no explicit version: project vx.toml (with
// fallback) > lockfile (not modelled separately here; vx.toml doubles as
// the lockfile per §4.8) > global default ("current" pointer) > provider
// default (none defined by this system) > latest.
func (r *Resolver) determineRootRequest(canonical string) (VersionRequest, Source, error) {
	if r.Project != nil {
		if v, ok := r.Project.GetVersionWithFallback(canonical); ok {
			req, err := ParseVersionRequest(v)
			if err != nil {
				return VersionRequest{}, "", vxerrors.NewResolveError(vxerrors.ResolveFailed, canonical, err.Error())
			}
			return req, SourceProject, nil
		}
	}
	if r.GlobalDefault != nil {
		if v, ok := r.GlobalDefault(canonical); ok {
			req, err := ParseVersionRequest(v)
			if err != nil {
				return VersionRequest{}, "", vxerrors.NewResolveError(vxerrors.ResolveFailed, canonical, err.Error())
			}
			return req, SourceGlobal, nil
		}
	}
	return VersionRequest{Kind: RequestLatest}, SourceDefault, nil
}

// pickVersion resolves req to a concrete version for runtime, or marks it
// Unresolved (deferred to Ensure) when req is "latest"/"lts"/"stable" and
// no installed version already satisfies it — §4.9's tie-break rules:
// prefer the highest installed stable version in range, else defer to
// Ensure's fetch-backed materialisation.
func (r *Resolver) pickVersion(ctx context.Context, runtime string, req VersionRequest) (version.Version, bool, error) {
	installed := r.installedVersions(runtime)

	switch req.Kind {
	case RequestExact:
		return req.Exact, false, nil
	case RequestRange:
		if best, ok := highestStableInRange(installed, req.Range, r.AllowPrerelease); ok {
			return best, false, nil
		}
		if best, ok, err := r.highestFromFetcher(ctx, runtime, req.Range); err != nil {
			return version.Version{}, false, err
		} else if ok {
			return best, false, nil
		}
		return version.Version{}, false, vxerrors.NewResolveError(vxerrors.ResolveVersionNotFound, runtime,
			fmt.Sprintf("no version of %s satisfies %s", runtime, req.Range.String()))
	case RequestLatest, RequestLTS, RequestStable:
		if len(installed) > 0 {
			if best, ok := highestStableInRange(installed, version.Any(), r.AllowPrerelease); ok {
				return best, false, nil
			}
		}
		// Materialising "latest" requires a live fetch; deferred to Ensure
		// per §4.9 step 2's explicit allowance.
		return version.Version{}, true, nil
	default:
		return version.Version{}, false, fmt.Errorf("resolve: unknown version request kind %q", req.Kind)
	}
}

func (r *Resolver) highestFromFetcher(ctx context.Context, runtime string, rng version.Range) (version.Version, bool, error) {
	if r.Registry == nil || r.RuntimeContext == nil {
		return version.Version{}, false, nil
	}
	rt, ok := r.Registry.Lookup(runtime)
	if !ok {
		return version.Version{}, false, nil
	}
	infos, err := rt.FetchVersions(ctx, r.RuntimeContext)
	if err != nil {
		return version.Version{}, false, fmt.Errorf("resolve: fetch versions for %s: %w", runtime, err)
	}
	var candidates []version.Version
	for _, info := range infos {
		if info.Prerelease && !r.AllowPrerelease {
			continue
		}
		if rng.Matches(info.Version) {
			candidates = append(candidates, info.Version)
		}
	}
	if len(candidates) == 0 {
		return version.Version{}, false, nil
	}
	version.SortDescending(candidates)
	return candidates[0], true, nil
}

func (r *Resolver) installedVersions(runtime string) []version.Version {
	if r.InstalledVers == nil {
		return nil
	}
	return r.InstalledVers(runtime)
}

func (r *Resolver) currentPlatform() version.Platform {
	if r.RuntimeContext != nil {
		return r.RuntimeContext.Platform
	}
	return version.Current()
}

func highestStableInRange(vs []version.Version, rng version.Range, allowPrerelease bool) (version.Version, bool) {
	var candidates []version.Version
	for _, v := range vs {
		if v.IsPrerelease() && !allowPrerelease {
			continue
		}
		if rng.Matches(v) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return version.Version{}, false
	}
	version.SortDescending(candidates)
	return candidates[0], true
}

// mergeRequest intersects two version requests on the same runtime
// (§4.9 step 4: "intersect any already-pinned version with the new range
// and either refine or fail"). Two exact requests must agree; an exact
// request must satisfy the other side's range; two range requests combine
// via version.Intersect so the merged request is exactly as permissive as
// both original requests together. A "latest"/"lts"/"stable" side carries
// no range to combine, so the other, more specific side wins unchanged.
func mergeRequest(existing, incoming VersionRequest) (VersionRequest, error) {
	switch {
	case existing.Kind == RequestExact && incoming.Kind == RequestExact:
		if version.Compare(existing.Exact, incoming.Exact) != 0 {
			return VersionRequest{}, fmt.Errorf("conflicting exact versions requested: %s and %s", existing.Exact, incoming.Exact)
		}
		return existing, nil
	case existing.Kind == RequestExact:
		if incoming.Kind == RequestRange && !incoming.Range.Matches(existing.Exact) {
			return VersionRequest{}, fmt.Errorf("version %s does not satisfy %s", existing.Exact, incoming.Range.String())
		}
		return existing, nil
	case incoming.Kind == RequestExact:
		if existing.Kind == RequestRange && !existing.Range.Matches(incoming.Exact) {
			return VersionRequest{}, fmt.Errorf("version %s does not satisfy %s", incoming.Exact, existing.Range.String())
		}
		return incoming, nil
	case existing.Kind == RequestRange && incoming.Kind == RequestRange:
		return VersionRequest{
			Kind:  RequestRange,
			Range: version.Intersect(existing.Range, incoming.Range),
			Raw:   existing.Raw + ", " + incoming.Raw,
		}, nil
	default:
		// One or both sides are latest/lts/stable (only the resolver root
		// takes this shape) with no range to intersect; prefer whichever
		// side names a concrete range/version, defaulting to existing.
		if existing.Kind == RequestLatest || existing.Kind == RequestLTS || existing.Kind == RequestStable {
			return incoming, nil
		}
		return existing, nil
	}
}

// requestSatisfiedBy reports whether v already satisfies req, used to decide
// whether a newly merged constraint requires re-picking canon's version.
func requestSatisfiedBy(req VersionRequest, v version.Version) bool {
	switch req.Kind {
	case RequestExact:
		return version.Compare(req.Exact, v) == 0
	case RequestRange:
		return req.Range.Matches(v)
	default:
		return true
	}
}
