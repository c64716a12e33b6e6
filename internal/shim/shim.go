// Package shim implements the Shim Store (C14): thin launcher files placed
// under the store's bin directory that delegate back into the pipeline for
// a given runtime name, plus the "current version" pointer update that
// follows a successful install.
//
// Grounded on the teacher's internal/installer/place/placer.go (idempotent
// replace-if-exists symlink/file creation, os.Stat/os.Remove guard before
// write, Cleanup for removal) adapted from "symlink straight to the binary"
// to "write a small script that re-invokes the launching program", since a
// runtime invocation here must still go through Resolve/Ensure/Prepare, not
// just exec the installed payload directly.
package shim

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/terassyi/vx/internal/store"
)

// posixTemplate re-invokes the launching program with the runtime name
// fixed and the caller's arguments forwarded verbatim.
const posixTemplate = "#!/bin/sh\nexec %s %s \"$@\"\n"

// windowsTemplate is the .cmd equivalent; %%* forwards all arguments.
const windowsTemplate = "@echo off\r\n%s %s %%*\r\n"

// Create writes (or replaces) the launcher file for runtime under the
// store's bin directory, pointing it at launcherPath (the vx binary itself,
// typically from os.Executable()). It is idempotent: re-creating an
// existing shim for the same runtime simply overwrites it (§4.14).
func Create(s *store.Store, launcherPath, runtimeName string) (string, error) {
	return CreateIn(s.BinDir(), launcherPath, runtimeName, runtimeName)
}

// CreateIn writes (or replaces) a launcher named after runtimeName in dir,
// forwarding invokeArg to launcherPath as the first argument. A named
// environment's link farm uses invokeArg of the form "runtime@version" to
// pin a specific version regardless of project config or the global
// default; the ordinary store bin dir (see Create) just uses the bare
// runtime name and lets resolution pick the version.
func CreateIn(dir, launcherPath, runtimeName, invokeArg string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("shim: create launcher dir: %w", err)
	}

	name := runtimeName
	var body string
	if runtime.GOOS == "windows" {
		name += ".cmd"
		body = fmt.Sprintf(windowsTemplate, quoteArg(launcherPath), invokeArg)
	} else {
		body = fmt.Sprintf(posixTemplate, quoteArg(launcherPath), invokeArg)
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("shim: replace existing launcher for %s: %w", runtimeName, err)
		}
	}
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		return "", fmt.Errorf("shim: write launcher for %s: %w", runtimeName, err)
	}
	return path, nil
}

// Remove deletes the launcher file for runtime, if present. Absence is not
// an error (§4.14: "removal of a version removes its entries").
func Remove(s *store.Store, runtimeName string) error {
	name := runtimeName
	if runtime.GOOS == "windows" {
		name += ".cmd"
	}
	path := filepath.Join(s.BinDir(), name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shim: remove launcher for %s: %w", runtimeName, err)
	}
	return nil
}

// quoteArg wraps path in double quotes if it contains whitespace, so both
// the POSIX and cmd templates embed it safely.
func quoteArg(path string) string {
	if strings.ContainsAny(path, " \t") {
		return `"` + path + `"`
	}
	return path
}

// Installed publishes a newly-installed (runtime, version): it creates the
// runtime's launcher (and any bundled siblings it carries, e.g. MSBuild
// under a .NET SDK) and points "current" at ver.
func Installed(s *store.Store, launcherPath, runtimeName, ver string, siblings []string) error {
	if _, err := Create(s, launcherPath, runtimeName); err != nil {
		return err
	}
	for _, sib := range siblings {
		if _, err := Create(s, launcherPath, sib); err != nil {
			return err
		}
	}
	return s.SetCurrentVersion(runtimeName, ver)
}

// Removed retracts a removed (runtime, version): it clears "current" if it
// pointed at ver and, when no versions remain installed for runtime, drops
// the launcher files entirely.
func Removed(s *store.Store, runtimeName, ver string, siblings []string, remainingVersions int) error {
	if err := s.ClearCurrentVersion(runtimeName, ver); err != nil {
		return err
	}
	if remainingVersions > 0 {
		return nil
	}
	if err := Remove(s, runtimeName); err != nil {
		return err
	}
	for _, sib := range siblings {
		if err := Remove(s, sib); err != nil {
			return err
		}
	}
	return nil
}
