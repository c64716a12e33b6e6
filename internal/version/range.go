package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Range is a version interval: (min?, max?, minInclusive, maxInclusive).
// A nil bound means unbounded on that side. Range{} (no bounds) matches any
// version — Any().Matches(v) is always true.
type Range struct {
	Min, Max     *Version
	MinInclusive bool
	MaxInclusive bool

	// predicate, when set, overrides Min/Max-based matching with a compiled
	// semver constraint. Only used for constraint syntax ParseConstraint's
	// fast path doesn't model directly (see rangeFromConstraintString).
	predicate *semver.Constraints

	// and, when non-empty, ANDs every sub-range's Matches together instead
	// of using Min/Max/predicate directly. Only populated by Intersect, so
	// that intersecting two ranges never has to reconcile one interval-form
	// range with another predicate-form range into a single Min/Max pair.
	and []Range
}

// Any returns a Range that matches every version.
func Any() Range {
	return Range{}
}

// Exact returns a Range matching only v.
func Exact(v Version) Range {
	return Range{Min: &v, Max: &v, MinInclusive: true, MaxInclusive: true}
}

// NewRange builds an inclusive/exclusive interval [min, max) or similar,
// per the inclusive flags given.
func NewRange(min, max *Version, minInclusive, maxInclusive bool) Range {
	return Range{Min: min, Max: max, MinInclusive: minInclusive, MaxInclusive: maxInclusive}
}

// Intersect returns a Range matching exactly the versions both a and b
// match — the "refine" half of §4.9 step 4's "intersect any already-pinned
// version with the new range". Rather than reconciling a's and b's Min/Max
// bounds into one new interval (awkward once either side is a predicate-form
// range from an exotic constraint string), the result simply ANDs the two
// source ranges' own Matches together.
func Intersect(a, b Range) Range {
	return Range{and: []Range{a, b}}
}

// GreaterEqual returns a Range matching v and everything above it.
func GreaterEqual(v Version) Range {
	return Range{Min: &v, MinInclusive: true}
}

// LessThan returns a Range matching everything strictly below v.
func LessThan(v Version) Range {
	return Range{Max: &v, MaxInclusive: false}
}

// Matches is the only primitive for range membership, per C3/C4's contract:
// every constraint check in the manifest/resolver packages goes through this.
func (r Range) Matches(v Version) bool {
	if len(r.and) > 0 {
		for _, sub := range r.and {
			if !sub.Matches(v) {
				return false
			}
		}
		return true
	}
	if r.predicate != nil {
		sv, err := semver.NewVersion(v.String())
		if err != nil {
			return false
		}
		return r.predicate.Check(sv)
	}
	if r.Min != nil {
		c := Compare(v, *r.Min)
		if c < 0 || (c == 0 && !r.MinInclusive) {
			return false
		}
	}
	if r.Max != nil {
		c := Compare(v, *r.Max)
		if c > 0 || (c == 0 && !r.MaxInclusive) {
			return false
		}
	}
	return true
}

func (r Range) String() string {
	if len(r.and) > 0 {
		parts := make([]string, len(r.and))
		for i, sub := range r.and {
			parts[i] = sub.String()
		}
		return strings.Join(parts, ", ")
	}
	if r.Min == nil && r.Max == nil {
		return "*"
	}
	var b strings.Builder
	if r.Min != nil {
		if r.MinInclusive {
			fmt.Fprintf(&b, ">=%s", r.Min)
		} else {
			fmt.Fprintf(&b, ">%s", r.Min)
		}
	}
	if r.Max != nil {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		if r.MaxInclusive {
			fmt.Fprintf(&b, "<=%s", r.Max)
		} else {
			fmt.Fprintf(&b, "<%s", r.Max)
		}
	}
	return b.String()
}

// ParseConstraint parses the manifest's dependency-range syntax, e.g.
// ">=12, <23", "^1", "1.2.3", "*", into a Range. This is the bridge used by
// internal/manifest's ConstraintRule/DependencyDef ranges: syntax is shared
// with Masterminds/semver/v3 constraint strings (the same convention the
// teacher's registry/aqua package reuses for its own "semver(...)" overrides),
// but evaluated by Range.Matches so that Version's stricter prerelease law
// still governs resolution, not semver's.
func ParseConstraint(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return Any(), nil
	}

	c, err := semver.NewConstraint(s)
	if err != nil {
		return Range{}, fmt.Errorf("version: invalid constraint %q: %w", s, err)
	}

	// Derive min/max bounds by testing representative boundary versions
	// against the compiled semver constraint. This keeps constraint syntax
	// (including ^, ~, comma-separated AND ranges) delegated to
	// Masterminds/semver while the resulting Range still evaluates through
	// our own Version/Compare law.
	return rangeFromConstraintString(s, c)
}

// rangeFromConstraintString interprets common manifest constraint shapes
// directly (">=A, <B", "^N", "N.M.P", "*") so the resulting bounds are exact,
// falling back to a predicate-only Range (evaluated via the compiled semver
// constraint) for anything more exotic.
func rangeFromConstraintString(s string, c *semver.Constraints) (Range, error) {
	parts := strings.Split(s, ",")
	var r Range
	r.MinInclusive = true
	r.MaxInclusive = true
	matchedAny := false

	for _, raw := range parts {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		switch {
		case strings.HasPrefix(p, ">="):
			v, err := Parse(strings.TrimSpace(p[2:]))
			if err != nil {
				return predicateRange(c), nil
			}
			r.Min = &v
			r.MinInclusive = true
			matchedAny = true
		case strings.HasPrefix(p, ">"):
			v, err := Parse(strings.TrimSpace(p[1:]))
			if err != nil {
				return predicateRange(c), nil
			}
			r.Min = &v
			r.MinInclusive = false
			matchedAny = true
		case strings.HasPrefix(p, "<="):
			v, err := Parse(strings.TrimSpace(p[2:]))
			if err != nil {
				return predicateRange(c), nil
			}
			r.Max = &v
			r.MaxInclusive = true
			matchedAny = true
		case strings.HasPrefix(p, "<"):
			v, err := Parse(strings.TrimSpace(p[1:]))
			if err != nil {
				return predicateRange(c), nil
			}
			r.Max = &v
			r.MaxInclusive = false
			matchedAny = true
		case strings.HasPrefix(p, "^"):
			v, err := Parse(strings.TrimSpace(p[1:]))
			if err != nil {
				return predicateRange(c), nil
			}
			min := v
			max := Version{Major: v.Major + 1}
			r.Min = &min
			r.Max = &max
			r.MinInclusive = true
			r.MaxInclusive = false
			matchedAny = true
		default:
			v, err := Parse(p)
			if err != nil {
				return predicateRange(c), nil
			}
			r.Min = &v
			r.Max = &v
			r.MinInclusive = true
			r.MaxInclusive = true
			matchedAny = true
		}
	}

	if !matchedAny {
		return predicateRange(c), nil
	}
	return r, nil
}

// predicateRange wraps a compiled semver.Constraints as a Range whose Matches
// delegates to the constraint's own Check. Used only when the constraint
// syntax isn't one of the simple shapes ParseConstraint understands directly.
func predicateRange(c *semver.Constraints) Range {
	return Range{predicate: c}
}
