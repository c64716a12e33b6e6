package manifest

import (
	"fmt"
	"log/slog"

	"github.com/terassyi/vx/internal/version"
)

// ResolvedDependency is one dependency requirement surviving constraint
// resolution for a (runtime, version) pair.
type ResolvedDependency struct {
	Runtime    string
	Range      version.Range
	RangeRaw   string
	Recommends bool
}

// ResolveConstraints implements §4.4's constraint-resolution algorithm: it
// keeps every ConstraintRule whose When pattern matches ver, unions their
// Requires into a de-duplicated list keyed by dependency runtime name (first
// match wins on conflict, with a logged warning), and returns Recommends
// separately since they never force installation.
func ResolveConstraints(rt RuntimeDef, ver version.Version) ([]ResolvedDependency, []ResolvedDependency, error) {
	seenRequires := make(map[string]ResolvedDependency)
	var order []string
	var recommends []ResolvedDependency

	for _, rule := range rt.Constraints {
		pattern, err := ParsePattern(rule.When)
		if err != nil {
			return nil, nil, fmt.Errorf("manifest: runtime %s: %w", rt.Name, err)
		}
		if !pattern.Matches(ver) {
			continue
		}

		for _, dep := range rule.Requires {
			r, err := version.ParseConstraint(dep.Range)
			if err != nil {
				return nil, nil, fmt.Errorf("manifest: runtime %s: dependency %s: %w", rt.Name, dep.Runtime, err)
			}
			if existing, ok := seenRequires[dep.Runtime]; ok {
				if existing.RangeRaw != dep.Range {
					slog.Warn("conflicting dependency ranges, keeping first match",
						"runtime", rt.Name, "dependency", dep.Runtime,
						"kept", existing.RangeRaw, "ignored", dep.Range)
				}
				continue
			}
			seenRequires[dep.Runtime] = ResolvedDependency{Runtime: dep.Runtime, Range: r, RangeRaw: dep.Range}
			order = append(order, dep.Runtime)
		}

		for _, dep := range rule.Recommends {
			r, err := version.ParseConstraint(dep.Range)
			if err != nil {
				return nil, nil, fmt.Errorf("manifest: runtime %s: recommendation %s: %w", rt.Name, dep.Runtime, err)
			}
			recommends = append(recommends, ResolvedDependency{Runtime: dep.Runtime, Range: r, RangeRaw: dep.Range, Recommends: true})
		}
	}

	requires := make([]ResolvedDependency, 0, len(order))
	for _, name := range order {
		requires = append(requires, seenRequires[name])
	}
	return requires, recommends, nil
}

// Pattern is a parsed §4.4 version pattern: "*", "^N", exact "N.M.P", or
// ">=A, <B".
type Pattern struct {
	rng version.Range
}

// ParsePattern parses a When clause into a matchable Pattern. It is a thin
// adapter over version.ParseConstraint: every shape named in §4.4 ("*",
// "^N", exact, ">=A,<B") is already a valid semver-style constraint string.
func ParsePattern(s string) (Pattern, error) {
	r, err := version.ParseConstraint(s)
	if err != nil {
		return Pattern{}, fmt.Errorf("manifest: invalid version pattern %q: %w", s, err)
	}
	return Pattern{rng: r}, nil
}

// Matches reports whether ver satisfies the pattern.
func (p Pattern) Matches(ver version.Version) bool {
	return p.rng.Matches(ver)
}

// BuiltinConstraintRules seeds the well-known cross-runtime dependency
// requirements named in §4.4. Manifests may override these entirely by
// declaring their own `constraints` for the same runtime name.
func BuiltinConstraintRules() map[string][]ConstraintRule {
	return map[string][]ConstraintRule{
		"yarn": {
			{When: "^1", Requires: []DependencyDef{{Runtime: "node", Range: ">=12,<23"}}},
			{When: ">=4", Requires: []DependencyDef{{Runtime: "node", Range: ">=18"}}},
		},
		"pnpm": {
			{When: "^8", Requires: []DependencyDef{{Runtime: "node", Range: ">=16"}}},
			{When: "^9", Requires: []DependencyDef{{Runtime: "node", Range: ">=18"}}},
		},
	}
}

// ApplyBuiltinConstraints fills in BuiltinConstraintRules for any runtime in
// the index that declares no constraints of its own, so a bare manifest
// (e.g. a hand-written yarn.toml with no `constraints` table) still gets the
// normative cross-runtime rules.
func (idx *ManifestIndex) ApplyBuiltinConstraints() {
	builtin := BuiltinConstraintRules()
	for name, rules := range builtin {
		meta, ok := idx.runtimes[name]
		if !ok || len(meta.Def.Constraints) > 0 {
			continue
		}
		meta.Def.Constraints = rules
	}
}
