// Package version implements the Version value type and its total order.
//
// A Version is (major, minor, patch, pre). Ordering is lexicographic on
// (major, minor, patch), then a release is always greater than a prerelease
// at the same (major, minor, patch), then lexicographic on the prerelease
// string itself. Only Parse produces a Version; String round-trips exactly
// for well-formed input.
package version

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Version is an immutable semantic version value.
type Version struct {
	Major, Minor, Patch int
	Pre                 string // empty means "release"
}

// Parse parses a version string with an optional leading "v".
// Accepted forms: "1.2.3", "v1.2.3", "1.2.3-rc.1", "1.2", "1".
func Parse(s string) (Version, error) {
	orig := s
	s = strings.TrimPrefix(s, "v")
	if s == "" {
		return Version{}, fmt.Errorf("version: empty string")
	}

	var pre string
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		pre = s[idx+1:]
		s = s[:idx]
	}

	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return Version{}, fmt.Errorf("version: invalid format %q", orig)
	}

	nums := [3]int{}
	for i, p := range parts {
		if p == "" {
			return Version{}, fmt.Errorf("version: invalid format %q", orig)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("version: invalid component %q in %q", p, orig)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Pre: pre}, nil
}

// MustParse parses s and panics on error. Intended for constants in tests
// and built-in provider manifests, never for user input.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version in canonical "major.minor.patch[-pre]" form.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

// IsPrerelease reports whether this version carries a prerelease tag.
func (v Version) IsPrerelease() bool {
	return v.Pre != ""
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than other.
func Compare(a, b Version) int {
	if a.Major != b.Major {
		return cmpInt(a.Major, b.Major)
	}
	if a.Minor != b.Minor {
		return cmpInt(a.Minor, b.Minor)
	}
	if a.Patch != b.Patch {
		return cmpInt(a.Patch, b.Patch)
	}
	if a.Pre == b.Pre {
		return 0
	}
	// A prerelease is strictly less than the same (major,minor,patch) release.
	if a.Pre == "" {
		return 1
	}
	if b.Pre == "" {
		return -1
	}
	return strings.Compare(a.Pre, b.Pre)
}

// Less reports whether a sorts before b.
func Less(a, b Version) bool {
	return Compare(a, b) < 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Sort sorts versions ascending in place.
func Sort(vs []Version) {
	sort.Slice(vs, func(i, j int) bool { return Less(vs[i], vs[j]) })
}

// SortDescending sorts versions descending in place.
func SortDescending(vs []Version) {
	sort.Slice(vs, func(i, j int) bool { return Less(vs[j], vs[i]) })
}
