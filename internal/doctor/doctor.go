// Package doctor implements a supplemental store-integrity scan: for every
// installed (runtime, version) it verifies the expected executable is still
// present, that the "current" pointer (if any) still targets an installed
// version, and that every shim launcher under the store's bin directory
// still resolves.
//
// Grounded on the teacher's internal/doctor/{doctor,integrity}.go
// (Doctor/Result/Issue shape, os.Lstat+Readlink broken-symlink detection),
// trimmed from its state-file-driven "tool vs runtime" dual bookkeeping down
// to the single tree this spec actually tracks: the store itself, read
// directly rather than via a separate state record.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/terassyi/vx/internal/provider"
	"github.com/terassyi/vx/internal/store"
	"github.com/terassyi/vx/internal/version"
)

// IssueKind classifies one integrity finding.
type IssueKind string

const (
	// IssueMissingExecutable: an installed version directory exists but the
	// expected executable inside it is gone.
	IssueMissingExecutable IssueKind = "missing_executable"
	// IssueBrokenCurrentPointer: the "current" symlink for a runtime points
	// at a version that is no longer installed.
	IssueBrokenCurrentPointer IssueKind = "broken_current_pointer"
	// IssueBrokenShim: a launcher under the store's bin directory no longer
	// resolves (e.g. the vx binary it re-execs has moved or been removed).
	IssueBrokenShim IssueKind = "broken_shim"
)

// Issue is one integrity finding.
type Issue struct {
	Kind    IssueKind
	Runtime string
	Path    string
	Target  string
}

// Message renders a human-readable description of the issue.
func (i Issue) Message() string {
	switch i.Kind {
	case IssueMissingExecutable:
		return fmt.Sprintf("%s: expected executable missing at %s", i.Runtime, i.Path)
	case IssueBrokenCurrentPointer:
		return fmt.Sprintf("%s: current points at %s, which is not installed", i.Runtime, i.Target)
	case IssueBrokenShim:
		return fmt.Sprintf("%s: shim at %s points at %s, which does not exist", i.Runtime, i.Path, i.Target)
	default:
		return fmt.Sprintf("%s: unknown issue at %s", i.Runtime, i.Path)
	}
}

// Result is the outcome of one Check.
type Result struct {
	Issues []Issue
}

// HasIssues reports whether any finding was made.
func (r *Result) HasIssues() bool { return len(r.Issues) > 0 }

// Doctor scans a Store for integrity problems, optionally cross-checking
// expected executable paths against a Registry when one is available.
type Doctor struct {
	Store    *store.Store
	Registry *provider.Registry
}

// New builds a Doctor. reg may be nil, in which case executable-path checks
// are skipped in favor of a looser "version directory is non-empty" check.
func New(s *store.Store, reg *provider.Registry) *Doctor {
	return &Doctor{Store: s, Registry: reg}
}

// Check runs every integrity scan and aggregates the findings.
func (d *Doctor) Check() (*Result, error) {
	result := &Result{}

	names, err := d.runtimeNames()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		issues, err := d.checkRuntime(name)
		if err != nil {
			return nil, err
		}
		result.Issues = append(result.Issues, issues...)
	}

	shimIssues, err := d.checkShims()
	if err != nil {
		return nil, err
	}
	result.Issues = append(result.Issues, shimIssues...)

	return result, nil
}

func (d *Doctor) runtimeNames() ([]string, error) {
	entries, err := os.ReadDir(d.Store.ToolsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("doctor: list tools dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (d *Doctor) checkRuntime(name string) ([]Issue, error) {
	var issues []Issue

	versions, err := d.Store.ListToolVersions(name)
	if err != nil {
		return nil, fmt.Errorf("doctor: list versions for %s: %w", name, err)
	}

	for _, ver := range versions {
		if ok := d.hasExpectedExecutable(name, ver); !ok {
			issues = append(issues, Issue{
				Kind:    IssueMissingExecutable,
				Runtime: name,
				Path:    d.Store.ToolVersionDir(name, ver),
			})
		}
	}

	if current, ok := d.Store.CurrentVersion(name); ok {
		if !contains(versions, current) {
			issues = append(issues, Issue{
				Kind:    IssueBrokenCurrentPointer,
				Runtime: name,
				Path:    d.Store.ToolCurrentDir(name),
				Target:  current,
			})
		}
	}

	return issues, nil
}

func (d *Doctor) hasExpectedExecutable(name, ver string) bool {
	if d.Registry != nil {
		if rt, ok := d.Registry.Lookup(name); ok {
			parsed, err := version.Parse(ver)
			if err != nil {
				return false
			}
			execRel := rt.ExecutableRelativePath(parsed, version.Current())
			return d.Store.IsToolVersionInstalled(name, ver, execRel)
		}
	}
	info, err := os.Stat(d.Store.ToolVersionDir(name, ver))
	if err != nil {
		return false
	}
	entries, err := os.ReadDir(d.Store.ToolVersionDir(name, ver))
	return err == nil && info.IsDir() && len(entries) > 0
}

// shimTarget extracts the launcher path a shim script re-execs, by scanning
// its body for the first absolute path token. Returns ok=false for files
// that don't look like a shim (e.g. a stray non-launcher file in bin/).
func shimTarget(path string) (target string, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	for _, field := range strings.Fields(string(data)) {
		field = strings.Trim(field, `"`)
		if strings.HasPrefix(field, "/") || (len(field) > 2 && field[1] == ':') {
			return field, true, nil
		}
	}
	return "", false, nil
}

func (d *Doctor) checkShims() ([]Issue, error) {
	entries, err := os.ReadDir(d.Store.BinDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("doctor: list bin dir: %w", err)
	}

	var issues []Issue
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(d.Store.BinDir(), e.Name())
		target, ok, err := shimTarget(path)
		if err != nil {
			return nil, fmt.Errorf("doctor: read shim %s: %w", path, err)
		}
		if !ok {
			continue
		}
		if _, err := os.Stat(target); os.IsNotExist(err) {
			issues = append(issues, Issue{
				Kind:    IssueBrokenShim,
				Runtime: e.Name(),
				Path:    path,
				Target:  target,
			})
		}
	}
	return issues, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
