//go:build !windows

package installer

import (
	"os"
	"syscall"
)

// processAlive sends signal 0 to pid, which performs permission/existence
// checks without actually delivering a signal. Best-effort: a reused PID
// can produce a false positive, which is why stale-lock reclaim is
// documented as best-effort rather than guaranteed (see DESIGN.md).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
