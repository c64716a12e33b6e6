package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gofrs/flock"
)

// keyMutex is the in-process half of the at-most-once guarantee (§4.7): a
// keyed mutex table serialising concurrent Install calls on the same
// (runtime, version) within one process.
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var processLocks = &keyMutex{locks: make(map[string]*sync.Mutex)}

func (k *keyMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// LockKey builds the in-process mutex key for a (runtime, version) pair.
func LockKey(runtime, ver string) string {
	return runtime + "@" + ver
}

// FileLock is the cross-process half of the at-most-once guarantee: a lock
// file under the install's tmp directory, whose stale-holder detection
// reads the writing PID (§4.7).
type FileLock struct {
	path string
	fl   *flock.Flock
}

// NewFileLock creates a FileLock rooted at "<tmpDir>/install.lock".
func NewFileLock(tmpDir string) *FileLock {
	path := filepath.Join(tmpDir, "install.lock")
	return &FileLock{path: path, fl: flock.New(path)}
}

// TryLock attempts to acquire the lock, reclaiming it if the recorded PID
// is no longer alive (best-effort: see DESIGN.md's Open Question decision
// on stale-lock PID reliability). Returns false if another live process
// holds the lock.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("installer: create lock dir: %w", err)
	}

	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("installer: acquire lock %s: %w", l.path, err)
	}
	if !ok {
		if pid, readErr := l.readPID(); readErr == nil && !processAlive(pid) {
			_ = os.Remove(l.path)
			l.fl = flock.New(l.path)
			ok, err = l.fl.TryLock()
			if err != nil {
				return false, fmt.Errorf("installer: reclaim stale lock %s: %w", l.path, err)
			}
		}
	}
	if !ok {
		return false, nil
	}

	if err := os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		_ = l.fl.Unlock()
		return false, fmt.Errorf("installer: write lock pid: %w", err)
	}
	return true, nil
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("installer: release lock %s: %w", l.path, err)
	}
	return nil
}

func (l *FileLock) readPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}
