// Package daemon manages the background sync process: PID file
// handling, the filesystem watcher over the data directory, and the
// foreground run loop wiring the watcher to the sync coordinator.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrPIDFileNotFound indicates the PID file does not exist.
	ErrPIDFileNotFound = errors.New("pid file not found")
	// ErrInvalidPID indicates the PID file contains invalid data.
	ErrInvalidPID = errors.New("invalid pid in file")
)

// PIDFile tracks the daemon's process id on disk.
type PIDFile struct {
	path string
}

// NewPIDFile returns a PID file handle at the given path.
func NewPIDFile(path string) PIDFile {
	return PIDFile{path: path}
}

// Path returns the file's location on disk.
func (p PIDFile) Path() string {
	return p.path
}

// Write records the given pid.
func (p PIDFile) Write(pid int) error {
	return os.WriteFile(p.path, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

// Read returns the recorded pid.
// Returns ErrPIDFileNotFound if the file doesn't exist and ErrInvalidPID
// if the contents are not a positive integer.
func (p PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrPIDFileNotFound
		}
		return 0, fmt.Errorf("reading pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, ErrInvalidPID
	}

	return pid, nil
}

// Remove deletes the file. Returns nil if it doesn't exist (idempotent).
func (p PIDFile) Remove() error {
	err := os.Remove(p.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing pid file: %w", err)
	}
	return nil
}

// Alive reports whether the recorded process is still running. A file
// that is missing, unreadable, or names a dead process yields false;
// stale and invalid files are removed along the way so the next Start
// sees a clean slate.
func (p PIDFile) Alive() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		if errors.Is(err, ErrInvalidPID) {
			_ = p.Remove()
		}
		return 0, false
	}

	if !processRunning(pid) {
		_ = p.Remove()
		return 0, false
	}

	return pid, true
}

// processRunning probes a pid with signal 0. On Unix os.FindProcess
// always succeeds, so the signal is the actual liveness check.
func processRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}
