// Package lockfile guards EnrollBot's state directory so only one bot process
// answers a WhatsApp number at a time.
//
// The lock is an flock on a file inside the state directory; the kernel drops
// it when the process exits, so a crash never leaves the directory locked.
package lockfile

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory
const LockFileName = "enrollbot.lock"

// ErrLocked is matched by errors.Is when another process holds the lock.
var ErrLocked = errors.New("state directory is locked by another process")

// Info is the owner record written into the lock file.
type Info struct {
	PID       int
	Transport string
	StartedAt time.Time
}

func (i Info) String() string {
	return fmt.Sprintf("pid=%d\ntransport=%s\nstarted=%s\n", i.PID, i.Transport, i.StartedAt.UTC().Format(time.RFC3339))
}

// ParseInfo reads an owner record. Unknown lines are ignored.
func ParseInfo(content string) Info {
	var info Info
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(value)
		case "transport":
			info.Transport = value
		case "started":
			info.StartedAt, _ = time.Parse(time.RFC3339, value)
		}
	}
	return info
}

// Lock represents an active directory lock
type Lock struct {
	file *os.File
	path string
}

// AcquireLock takes the exclusive lock on stateDir, creating the directory if
// needed. transport is recorded for the error shown to a second instance.
func AcquireLock(stateDir, transport string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	slog.Debug("Attempting to acquire lock", "lock_path", lockPath)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		lockErr := &LockError{LockPath: lockPath, Cause: err}
		if data, rerr := os.ReadFile(lockPath); rerr == nil {
			lockErr.Owner = ParseInfo(string(data))
		}
		slog.Error("Failed to acquire lock - another EnrollBot instance is running",
			"lock_path", lockPath, "owner_pid", lockErr.Owner.PID, "owner_transport", lockErr.Owner.Transport)
		return nil, lockErr
	}

	// Only the holder rewrites the record, so truncate after locking.
	info := Info{PID: os.Getpid(), Transport: transport, StartedAt: time.Now()}
	if err := file.Truncate(0); err == nil {
		_, err = file.WriteAt([]byte(info.String()), 0)
		if err != nil {
			slog.Warn("Failed to write lock owner record", "error", err, "lock_path", lockPath)
		}
	}
	if err := file.Sync(); err != nil {
		slog.Warn("Failed to sync lock file", "error", err, "lock_path", lockPath)
	}

	slog.Info("Acquired state directory lock", "lock_path", lockPath, "pid", info.PID)
	return &Lock{file: file, path: lockPath}, nil
}

// Release unlocks and removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove before unlocking so a waiting instance never sees our stale record.
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to remove lock file", "error", err, "lock_path", l.path)
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Error("Failed to release flock", "error", err, "lock_path", l.path)
	}
	err := l.file.Close()
	l.file = nil
	slog.Info("Released state directory lock", "lock_path", l.path)
	return err
}

// LockError reports the process holding the lock.
type LockError struct {
	LockPath string
	Owner    Info
	Cause    error
}

func (e *LockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "another EnrollBot instance is already running with this state directory (lock file %s)", e.LockPath)
	if e.Owner.PID > 0 {
		state := "running"
		if !isProcessRunning(e.Owner.PID) {
			state = "not running"
		}
		fmt.Fprintf(&b, "; owner pid %d (%s)", e.Owner.PID, state)
		if e.Owner.Transport != "" {
			fmt.Fprintf(&b, ", transport %s", e.Owner.Transport)
		}
		if !e.Owner.StartedAt.IsZero() {
			fmt.Fprintf(&b, ", started %s", e.Owner.StartedAt.Format(time.RFC3339))
		}
	}
	return b.String()
}

// Is makes errors.Is(err, ErrLocked) true.
func (e *LockError) Is(target error) bool {
	return target == ErrLocked
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// isProcessRunning sends signal 0, which checks existence without delivering anything.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
