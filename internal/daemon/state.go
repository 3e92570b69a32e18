// Package daemon manages the on-disk runtime state of a running monitor:
// the PID file with its advisory lock, and the state file clients read to
// discover the diagnostics API address.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// StateDirName is the name of the directory storing runtime state
	StateDirName = ".sentinel"
	// StateFileName is the name of the state file
	StateFileName = "sentinel.state"
	// PIDFileName is the name of the PID file
	PIDFileName = "sentinel.pid"
)

// State holds the runtime state of a running sentinel instance.
//
// State is not safe for concurrent use. In typical usage the monitor writes
// state once at startup and clients read it, so concurrent access is not
// expected.
type State struct {
	PID        int       `json:"pid"`
	Port       int       `json:"port"`
	Host       string    `json:"host"`
	StartedAt  time.Time `json:"started_at"`
	ConfigFile string    `json:"config_file"`
}

// Write writes the state to the state file in the given directory
func (s *State) Write(dir string) error {
	if s.PID <= 0 {
		return fmt.Errorf("invalid PID: %d", s.PID)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}
	if s.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if s.ConfigFile == "" {
		return fmt.Errorf("config file cannot be empty")
	}

	stateDir := filepath.Join(dir, StateDirName)
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	statePath := filepath.Join(stateDir, StateFileName)
	f, err := os.OpenFile(statePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening state file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing state file: %w", err)
	}

	return nil
}

// LoadState reads the state from the state file in the given directory
func LoadState(dir string) (*State, error) {
	statePath := filepath.Join(dir, StateDirName, StateFileName)
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}

	return &state, nil
}

// RemoveState removes the state file from the given directory
func RemoveState(dir string) error {
	statePath := filepath.Join(dir, StateDirName, StateFileName)
	if err := os.Remove(statePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

// StateDir returns the path to the .sentinel directory in the given directory.
// If dir is empty, uses the current working directory.
func StateDir(dir string) string {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			// Fall back to relative path rather than creating at root
			return StateDirName
		}
	}
	return filepath.Join(dir, StateDirName)
}

// StatePath returns the full path to the state file
func StatePath(dir string) string {
	return filepath.Join(StateDir(dir), StateFileName)
}

// PIDPath returns the full path to the PID file
func PIDPath(dir string) string {
	return filepath.Join(StateDir(dir), PIDFileName)
}

// EnsureStateDir creates the .sentinel directory if it doesn't exist
func EnsureStateDir(dir string) error {
	stateDir := StateDir(dir)
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}

// CleanupStateDir removes the state and PID files from the .sentinel directory
func CleanupStateDir(dir string) error {
	stateDir := StateDir(dir)

	statePath := filepath.Join(stateDir, StateFileName)
	if err := os.Remove(statePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}

	pidPath := filepath.Join(stateDir, PIDFileName)
	if err := os.Remove(pidPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file: %w", err)
	}

	return nil
}

// IsRunning checks if a sentinel instance is running in the given directory.
//
// Note: This is a best-effort check. There is a small race window between
// checking the PID file lock and loading state where the process could stop.
// For authoritative checks, use PID file locking directly via NewPIDFile.
func IsRunning(dir string) bool {
	pidPath := PIDPath(dir)

	if IsLocked(pidPath) {
		return true
	}

	state, err := LoadState(dir)
	if err != nil {
		return false
	}

	return ProcessExists(state.PID)
}

// GetRunningState returns the state of a running sentinel instance, if any.
// Returns ErrNotRunning if no instance is running.
func GetRunningState(dir string) (*State, error) {
	if !IsRunning(dir) {
		return nil, ErrNotRunning
	}

	return LoadState(dir)
}

// CleanupStaleFiles removes stale state files if the process is not running.
// This handles crash recovery scenarios.
func CleanupStaleFiles(dir string) error {
	pidPath := PIDPath(dir)

	if IsLocked(pidPath) {
		return ErrAlreadyRunning
	}

	state, err := LoadState(dir)
	if err != nil {
		if err == ErrStateNotFound {
			return nil
		}
		return err
	}

	if ProcessExists(state.PID) {
		return ErrAlreadyRunning
	}

	return CleanupStateDir(dir)
}
