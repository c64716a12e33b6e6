//go:build windows

package installer

import "os"

// processAlive on Windows relies on os.FindProcess, which always succeeds
// for a plausible PID — this is a weaker best-effort check than the Unix
// signal-0 probe (see DESIGN.md's Open Question decision on stale-lock
// reliability).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
