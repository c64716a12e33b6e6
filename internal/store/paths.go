// Package store implements the per-user root directory layout (C1): a
// content-addressed tree of installed tool payloads, a download cache,
// in-progress temp directories, global named environments, and shim
// launchers. Path operations never guess — every method here is the single
// source of truth for where something lives on disk (§4.1).
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/terassyi/vx/internal/version"
)

// envRootVar is the environment variable that overrides the per-user root,
// primarily for test isolation (§9 "Global state").
const envRootVar = "VX_HOME"

// Store owns the on-disk layout under a per-user root directory.
type Store struct {
	root string
}

// New creates a Store rooted at VX_HOME if set, else "~/.vx".
func New() (*Store, error) {
	if r := os.Getenv(envRootVar); r != "" {
		return &Store{root: r}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("store: resolve home directory: %w", err)
	}
	return &Store{root: filepath.Join(home, ".vx")}, nil
}

// NewAt creates a Store rooted at an explicit directory, bypassing VX_HOME.
// Used by tests that want isolation without touching the environment.
func NewAt(root string) *Store {
	return &Store{root: root}
}

// Root returns the per-user root directory.
func (s *Store) Root() string { return s.root }

// ToolsDir returns "<root>/tools".
func (s *Store) ToolsDir() string { return filepath.Join(s.root, "tools") }

// ToolVersionDir returns "<root>/tools/<runtime>/<version>" — the only path
// a provider install writes into (§4.1).
func (s *Store) ToolVersionDir(runtime, ver string) string {
	return filepath.Join(s.ToolsDir(), runtime, ver)
}

// ToolCurrentDir returns "<root>/tools/<runtime>/current", a pointer to the
// currently-selected version for that runtime.
func (s *Store) ToolCurrentDir(runtime string) string {
	return filepath.Join(s.ToolsDir(), runtime, "current")
}

// CacheDir returns "<root>/cache/<runtime>".
func (s *Store) CacheDir(runtime string) string {
	return filepath.Join(s.root, "cache", runtime)
}

// TmpDir returns "<root>/tmp/<runtime>-<version>", a scratch directory for
// in-progress installs.
func (s *Store) TmpDir(runtime, ver string) string {
	return filepath.Join(s.root, "tmp", runtime+"-"+ver)
}

// ConfigDir returns "<root>/config".
func (s *Store) ConfigDir() string { return filepath.Join(s.root, "config") }

// DefaultEnvFile returns "<root>/config/default-env".
func (s *Store) DefaultEnvFile() string { return filepath.Join(s.ConfigDir(), "default-env") }

// EnvDir returns "<root>/env/<name>", a global named environment link farm.
func (s *Store) EnvDir(name string) string { return filepath.Join(s.root, "env", name) }

// EnvBinDir returns "<root>/env/<name>/bin".
func (s *Store) EnvBinDir(name string) string { return filepath.Join(s.EnvDir(name), "bin") }

// EnvsRootDir returns "<root>/env", the parent of all named environments.
func (s *Store) EnvsRootDir() string { return filepath.Join(s.root, "env") }

// BinDir returns "<root>/bin", where shim launchers live.
func (s *Store) BinDir() string { return filepath.Join(s.root, "bin") }

// CreateToolVersionDir idempotently creates the install directory for
// (runtime, version) and returns its path.
func (s *Store) CreateToolVersionDir(runtime, ver string) (string, error) {
	dir := s.ToolVersionDir(runtime, ver)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: create tool version dir %s: %w", dir, err)
	}
	return dir, nil
}

// IsToolVersionInstalled reports whether the version directory exists and
// contains the given executable relative path (§4.1: "exists AND contains the
// expected executable"). execRelPath is relative to the version directory.
func (s *Store) IsToolVersionInstalled(runtime, ver, execRelPath string) bool {
	dir := s.ToolVersionDir(runtime, ver)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	execPath := filepath.Join(dir, execRelPath)
	execInfo, err := os.Stat(execPath)
	if err != nil || execInfo.IsDir() {
		return false
	}
	return isExecutable(execInfo)
}

// ListToolVersions yields the directory names under "<root>/tools/<runtime>/",
// sorted ascending by semver where parseable, then lexicographically,
// excluding the "current" pointer directory.
func (s *Store) ListToolVersions(runtime string) ([]string, error) {
	dir := filepath.Join(s.ToolsDir(), runtime)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: list versions for %s: %w", runtime, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "current" {
			continue
		}
		names = append(names, e.Name())
	}

	sort.Slice(names, func(i, j int) bool {
		vi, erri := version.Parse(names[i])
		vj, errj := version.Parse(names[j])
		if erri == nil && errj == nil {
			return version.Less(vi, vj)
		}
		if erri == nil {
			return true
		}
		if errj == nil {
			return false
		}
		return strings.Compare(names[i], names[j]) < 0
	})
	return names, nil
}

// SetCurrentVersion points "<root>/tools/<runtime>/current" at the install
// directory for ver, replacing any previous pointer (C14: "current pointer
// per runtime is updated to reflect the latest selection").
func (s *Store) SetCurrentVersion(runtime, ver string) error {
	target := s.ToolVersionDir(runtime, ver)
	link := s.ToolCurrentDir(runtime)
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return fmt.Errorf("store: create tools dir for %s: %w", runtime, err)
	}
	_ = os.Remove(link)
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("store: point current at %s: %w", target, err)
	}
	return nil
}

// CurrentVersion reads the "current" pointer for runtime, returning the
// version it points at and true, or ("", false) if no pointer is set.
func (s *Store) CurrentVersion(runtime string) (string, bool) {
	link := s.ToolCurrentDir(runtime)
	target, err := os.Readlink(link)
	if err != nil {
		return "", false
	}
	return filepath.Base(target), true
}

// ClearCurrentVersion removes the "current" pointer for runtime if it
// points at ver (C14: removing a version clears "current" only if it
// pointed at the removed version).
func (s *Store) ClearCurrentVersion(runtime, ver string) error {
	current, ok := s.CurrentVersion(runtime)
	if !ok || current != ver {
		return nil
	}
	if err := os.Remove(s.ToolCurrentDir(runtime)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: clear current pointer for %s: %w", runtime, err)
	}
	return nil
}

// EnsureDir creates path (and parents) if missing.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("store: create dir %s: %w", path, err)
	}
	return nil
}

func isExecutable(info os.FileInfo) bool {
	if info.Mode()&0o111 != 0 {
		return true
	}
	// Windows has no exec bit; presence of the file at the expected
	// executable name is sufficient there.
	return strings.HasSuffix(info.Name(), ".exe") || strings.HasSuffix(info.Name(), ".cmd") || strings.HasSuffix(info.Name(), ".bat")
}
