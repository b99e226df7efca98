// Package lockfile keeps two IntakeLine processes from sharing one state
// directory. The SQLite outbox allows a single writer, so a second instance
// pointed at the same directory must refuse to start.
//
// The lock is an flock on a file inside the directory; the kernel drops it
// when the process exits, however it exits.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is created inside the state directory.
const LockFileName = "intakeline.lock"

const pidPrefix = "pid="

// Lock is a held state-directory lock.
type Lock struct {
	file *os.File
	path string
}

// LockError reports a directory already locked by another process.
type LockError struct {
	LockPath string
	Holder   string
	Cause    error
}

func (e *LockError) Error() string {
	msg := fmt.Sprintf("another IntakeLine instance holds the state directory lock %s", e.LockPath)
	if e.Holder != "" {
		msg += " (" + e.Holder + ")"
	}
	return msg + "; remove the file only if no other instance is running"
}

func (e *LockError) Unwrap() error { return e.Cause }

// AcquireLock creates stateDir if needed and takes an exclusive,
// non-blocking lock on it.
func AcquireLock(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", stateDir, err)
	}
	path := filepath.Join(stateDir, LockFileName)

	// No O_TRUNC: the holder's pid must survive a failed attempt.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		holder := describeHolder(path)
		slog.Error("AcquireLock: state directory busy", "lockPath", path, "holder", holder)
		return nil, &LockError{LockPath: path, Holder: holder, Cause: err}
	}

	if err := f.Truncate(0); err == nil {
		_, err = f.WriteAt([]byte(pidPrefix+strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	if err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("write lock file %s: %w", path, err)
	}

	slog.Info("AcquireLock: state directory locked", "lockPath", path, "pid", os.Getpid())
	return &Lock{file: f, path: path}, nil
}

// Release drops the lock and removes the file. Calling it again is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("Lock.Release: unlock failed", "lockPath", l.path, "error", err)
	}
	closeErr := l.file.Close()
	l.file = nil
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Lock.Release: remove failed", "lockPath", l.path, "error", err)
	}
	slog.Debug("Lock.Release: released", "lockPath", l.path)
	return closeErr
}

// describeHolder summarizes who holds the lock at path.
func describeHolder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown holder"
	}
	pid := parsePID(string(data))
	if pid == 0 {
		return "unknown holder"
	}
	if processAlive(pid) {
		return fmt.Sprintf("PID %d running", pid)
	}
	return fmt.Sprintf("PID %d not running", pid)
}

// parsePID extracts the pid from lock file content, or 0.
func parsePID(content string) int {
	idx := strings.Index(content, pidPrefix)
	if idx < 0 {
		return 0
	}
	rest := content[idx+len(pidPrefix):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	pid, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return pid
}

// processAlive checks pid with signal 0.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
