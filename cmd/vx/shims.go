package main

import (
	"github.com/terassyi/vx/internal/manifest"
	"github.com/terassyi/vx/internal/resolve"
	"github.com/terassyi/vx/internal/shim"
)

// publishShims creates (or refreshes) a launcher for every non-managed-by
// entry in plan, plus each entry's bundled siblings (e.g. an MSBuild shim
// carried by a .NET install), and updates the "current" pointer — the
// Shim Store's side-effect-of-a-successful-install contract (C14).
func publishShims(a *app, plan *resolve.ResolutionPlan) error {
	launcher, err := launcherPath()
	if err != nil {
		return err
	}

	for _, entry := range plan.Entries {
		if entry.ManagedBy != "" {
			continue
		}
		siblings := bundledSiblings(a.Index, entry.Runtime)
		if err := shim.Installed(a.Store, launcher, entry.Runtime, entry.Version.String(), siblings); err != nil {
			return err
		}
	}
	return nil
}

// bundledSiblings returns every runtime in idx that declares runtimeName as
// its bundled parent (§4.5 "bundled runtime").
func bundledSiblings(idx *manifest.ManifestIndex, runtimeName string) []string {
	var siblings []string
	for _, name := range idx.RuntimeNames() {
		meta, ok := idx.Lookup(name)
		if !ok || meta.Def.Bundled == nil {
			continue
		}
		if meta.Def.Bundled.Parent == runtimeName {
			siblings = append(siblings, name)
		}
	}
	return siblings
}
