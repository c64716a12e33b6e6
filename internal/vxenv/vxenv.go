// Package vxenv implements global named environments and their shell export
// formatting: `vx env {create|list|show|use|delete}` (§6). A named
// environment is a set of runtime version pins plus a link farm of shim
// launchers under "<root>/env/<name>/bin" that force those pinned versions
// regardless of project config or the global default pointer.
//
// Grounded on the teacher's internal/env/{env,shell}.go (Formatter interface,
// POSIX/fish export statements, toShellPath/dedupStrings) and cmd/tomei/env.go
// (stdout vs --export file modes), extended from the teacher's single
// implicit global environment to multiple named ones, each with its own pin
// set, as required by the create/list/show/use/delete surface.
package vxenv

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/terassyi/vx/internal/shim"
	"github.com/terassyi/vx/internal/store"
)

// pinsFile is the TOML document naming an environment's runtime pins,
// mirroring the project config's own [tools] table shape.
type pinsFile struct {
	Tools map[string]string `toml:"tools"`
}

// Environment is one named, loaded environment.
type Environment struct {
	Name  string
	Tools map[string]string // runtime -> version
}

// Create writes a new named environment: its pins file and, for each pinned
// (runtime, version), a launcher in its bin dir that always invokes that
// exact version.
func Create(s *store.Store, launcherPath, name string, tools map[string]string) (*Environment, error) {
	if name == "" {
		return nil, fmt.Errorf("vxenv: environment name must not be empty")
	}
	if err := os.MkdirAll(s.EnvBinDir(name), 0o755); err != nil {
		return nil, fmt.Errorf("vxenv: create env bin dir for %s: %w", name, err)
	}
	if err := writePins(s, name, tools); err != nil {
		return nil, err
	}
	for runtimeName, ver := range tools {
		invokeArg := runtimeName + "@" + ver
		if _, err := shim.CreateIn(s.EnvBinDir(name), launcherPath, runtimeName, invokeArg); err != nil {
			return nil, fmt.Errorf("vxenv: create launcher for %s in %s: %w", runtimeName, name, err)
		}
	}
	return &Environment{Name: name, Tools: tools}, nil
}

// List returns the names of every environment under "<root>/env/".
func List(s *store.Store) ([]string, error) {
	entries, err := os.ReadDir(s.EnvsRootDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("vxenv: list environments: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load reads a named environment's pins file.
func Load(s *store.Store, name string) (*Environment, error) {
	data, err := os.ReadFile(pinsPath(s, name))
	if err != nil {
		return nil, fmt.Errorf("vxenv: load environment %s: %w", name, err)
	}
	var doc pinsFile
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("vxenv: parse environment %s: %w", name, err)
	}
	return &Environment{Name: name, Tools: doc.Tools}, nil
}

// Delete removes a named environment's entire directory. Absence is not an
// error.
func Delete(s *store.Store, name string) error {
	if err := os.RemoveAll(s.EnvDir(name)); err != nil {
		return fmt.Errorf("vxenv: delete environment %s: %w", name, err)
	}
	return nil
}

// Use points "<root>/config/default-env" at name, so future shells that
// source it pick up this environment's exports.
func Use(s *store.Store, name string) error {
	if err := os.MkdirAll(s.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("vxenv: create config dir: %w", err)
	}
	if err := os.WriteFile(s.DefaultEnvFile(), []byte(name+"\n"), 0o644); err != nil {
		return fmt.Errorf("vxenv: set default environment: %w", err)
	}
	return nil
}

// CurrentDefault reads the environment name written by Use, if any.
func CurrentDefault(s *store.Store) (string, bool) {
	data, err := os.ReadFile(s.DefaultEnvFile())
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", false
	}
	return name, true
}

// Show renders env.Tools as shell export statements for eval, prepending
// the environment's own bin dir to PATH.
func Show(env *Environment, binDir string, f Formatter) []string {
	var lines []string
	names := make([]string, 0, len(env.Tools))
	for name := range env.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		lines = append(lines, f.ExportVar(strings.ToUpper(name)+"_VERSION", env.Tools[name]))
	}
	lines = append(lines, f.ExportPath([]string{toShellPath(binDir)}))
	return lines
}

func writePins(s *store.Store, name string, tools map[string]string) error {
	data, err := toml.Marshal(pinsFile{Tools: tools})
	if err != nil {
		return fmt.Errorf("vxenv: encode pins for %s: %w", name, err)
	}
	if err := os.WriteFile(pinsPath(s, name), data, 0o644); err != nil {
		return fmt.Errorf("vxenv: write pins for %s: %w", name, err)
	}
	return nil
}

func pinsPath(s *store.Store, name string) string {
	return filepath.Join(s.EnvDir(name), "env.toml")
}

// toShellPath rewrites an absolute path under $HOME to "$HOME/..." form.
func toShellPath(p string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return p
	}
	if p == home {
		return shellHome
	}
	if strings.HasPrefix(p, home+string(filepath.Separator)) {
		return shellHome + "/" + filepath.ToSlash(p[len(home)+1:])
	}
	return p
}
