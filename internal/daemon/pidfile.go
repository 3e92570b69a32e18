package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile is the flock-guarded PID file that makes "one sentinel per
// directory" enforceable: the advisory lock survives a crash of the file's
// contents but not of the process, so a stale file never blocks a restart.
//
// PIDFile is not safe for concurrent use; Create and Release belong to the
// single process lifecycle.
type PIDFile struct {
	path string
	file *os.File
}

// NewPIDFile creates a PID file manager for the given path
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Create acquires the lock and writes the current PID. Returns
// ErrPIDFileLocked when another live process holds it.
func (p *PIDFile) Create() error {
	f, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("opening PID file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return ErrPIDFileLocked
		}
		return fmt.Errorf("locking PID file: %w", err)
	}

	// The file may hold a dead process's PID; replace it wholesale
	if err := f.Truncate(0); err != nil {
		p.unlockAndClose(f)
		return fmt.Errorf("truncating PID file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		p.unlockAndClose(f)
		return fmt.Errorf("seeking PID file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		p.unlockAndClose(f)
		return fmt.Errorf("writing PID: %w", err)
	}
	if err := f.Sync(); err != nil {
		p.unlockAndClose(f)
		return fmt.Errorf("syncing PID file: %w", err)
	}

	p.file = f
	return nil
}

// Release unlocks and removes the PID file. Safe to call when Create never
// succeeded.
func (p *PIDFile) Release() error {
	if p.file == nil {
		return nil
	}

	_ = syscall.Flock(int(p.file.Fd()), syscall.LOCK_UN)
	_ = p.file.Close()
	p.file = nil

	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file: %w", err)
	}
	return nil
}

// unlockAndClose backs out of a half-finished Create, leaving the file on
// disk for the next attempt.
func (p *PIDFile) unlockAndClose(f *os.File) {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to unlock PID file: %v\n", err)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to close PID file: %v\n", err)
	}
}

// IsLocked reports whether another process currently holds the PID file
// lock. A missing or unreadable file counts as unlocked.
func IsLocked(path string) bool {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	defer f.Close()

	// A shared lock succeeds unless someone holds the exclusive lock
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB); err != nil {
		return true
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return false
}

// ReadPID reads the PID recorded in a PID file
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing PID: %w", err)
	}
	return pid, nil
}

// ProcessExists reports whether a process with the given PID is alive.
// EPERM means the process exists but belongs to someone else.
func ProcessExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}
