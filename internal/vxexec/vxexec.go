// Package vxexec implements the Execute Stage (C12): spawning the prepared
// child process with inherited stdio, the computed PATH/env overlay, an
// optional timeout, and signal propagation, translating the outcome into
// the runner's exit code or a typed ExecuteError.
//
// Grounded on the teacher's internal/installer/command/executor.go
// (exec.CommandContext dispatch, slog around start/success/failure), trimmed
// from its shell-template/output-capture variants down to this spec's single
// "spawn with inherited stdio, return exit status" contract (§4.12).
package vxexec

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	vxerrors "github.com/terassyi/vx/internal/vxerrors"
)

// pathListSeparator is the OS-specific PATH entry separator (§4.12:
// "prepended to PATH using the OS separator").
const pathListSeparator = string(os.PathListSeparator)

// Request is everything Execute needs to spawn the child (mirrors
// prepare.PreparedExecution without importing that package, so vxexec has
// no dependency on the earlier pipeline stages).
type Request struct {
	Executable string
	Argv       []string
	Cwd        string
	EnvOverlay map[string]string
	PathPrefix []string
	Timeout    time.Duration
}

// Result is the outcome of a successful (from vxexec's point of view —
// meaning the child was spawned and exited on its own with an exit code)
// execution. A child terminated by a signal is reported as an error.
type Result struct {
	ExitCode int
}

// Run spawns req.Executable with req.Argv, inheriting the caller's stdio,
// merging req.EnvOverlay over the caller's environment, and prepending
// req.PathPrefix to PATH. On Windows, a .cmd/.bat target is invoked via
// `cmd.exe /c` since those aren't directly executable (§4.12).
func Run(ctx context.Context, req Request) (Result, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	executable, argv := commandFor(req.Executable, req.Argv)

	cmd := exec.CommandContext(ctx, executable, argv...)
	cmd.Dir = req.Cwd
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = buildEnv(req.PathPrefix, req.EnvOverlay)

	slog.Debug("vxexec: spawning", "executable", req.Executable, "args", req.Argv)

	err := cmd.Run()
	switch {
	case err == nil:
		return Result{ExitCode: 0}, nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return Result{}, vxerrors.WrapExecute(vxerrors.NewExecuteError(vxerrors.ExecuteTimeout, req.Executable,
			"execution timed out"))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return Result{ExitCode: code}, nil
		}
		// Negative ExitCode means the process was terminated by a signal.
		return Result{}, vxerrors.WrapExecute(vxerrors.NewExecuteError(vxerrors.ExecuteKilled, req.Executable,
			"process terminated by signal"))
	}

	spawnErr := vxerrors.NewExecuteError(vxerrors.ExecuteSpawnFailed, req.Executable, "failed to start process")
	spawnErr.Cause = err
	return Result{}, vxerrors.WrapExecute(spawnErr)
}

// commandFor decides how to invoke executable: directly, or — on Windows,
// for a .cmd/.bat target — via `cmd.exe /c` with cmd-rules quoting, since
// CreateProcess can't exec a batch file directly (§4.12).
func commandFor(executable string, argv []string) (string, []string) {
	if runtime.GOOS != "windows" {
		return executable, argv
	}
	ext := strings.ToLower(filepath.Ext(executable))
	if ext != ".cmd" && ext != ".bat" {
		return executable, argv
	}

	parts := make([]string, 0, len(argv)+2)
	parts = append(parts, quoteForCmd(executable))
	for _, a := range argv {
		parts = append(parts, quoteForCmd(a))
	}
	return "cmd.exe", []string{"/c", strings.Join(parts, " ")}
}

// quoteForCmd wraps s in double quotes if it needs quoting for cmd.exe's
// rules (whitespace or an embedded quote), escaping any existing quote.
func quoteForCmd(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"&|<>^") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// buildEnv returns the caller's environment with pathPrefix dirs prepended
// to PATH and overlay applied on top (§4.12).
func buildEnv(pathPrefix []string, overlay map[string]string) []string {
	base := os.Environ()
	result := make([]string, 0, len(base)+len(overlay))

	pathKey := "PATH"
	if runtime.GOOS == "windows" {
		pathKey = "Path"
	}

	var existingPath string
	for _, kv := range base {
		k, v, ok := splitEnv(kv)
		if ok && strings.EqualFold(k, pathKey) {
			existingPath = v
			continue
		}
		if _, overridden := overlay[k]; overridden {
			continue
		}
		result = append(result, kv)
	}

	newPath := strings.Join(pathPrefix, pathListSeparator)
	if existingPath != "" {
		if newPath != "" {
			newPath += pathListSeparator
		}
		newPath += existingPath
	}
	result = append(result, pathKey+"="+newPath)

	for k, v := range overlay {
		if strings.EqualFold(k, pathKey) {
			continue
		}
		result = append(result, k+"="+v)
	}
	return result
}

func splitEnv(kv string) (key, value string, ok bool) {
	idx := strings.IndexByte(kv, '=')
	if idx < 0 {
		return "", "", false
	}
	return kv[:idx], kv[idx+1:], true
}
