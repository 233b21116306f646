package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning reports that a live process already owns the PID file
var ErrAlreadyRunning = errors.New("daemon already running")

// PIDFile tracks which process owns a data directory
type PIDFile struct {
	path string
}

// New returns a PID file handle under the given data directory
func New(dataDir string) *PIDFile {
	return &PIDFile{path: filepath.Join(dataDir, "maestro.pid")}
}

// Path returns the location of the PID file
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire records the current process ID, refusing when a live process
// already owns the file. A stale file left behind by a crash is replaced.
func (p *PIDFile) Acquire() error {
	if pid, err := p.Read(); err == nil && processAlive(pid) {
		return fmt.Errorf("%w: pid %d", ErrAlreadyRunning, pid)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Release removes the PID file
func (p *PIDFile) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// Read returns the process ID stored in the file
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file %s: %w", p.path, err)
	}
	return pid, nil
}

// IsRunning reports whether the recorded process is alive
func (p *PIDFile) IsRunning() bool {
	pid, err := p.Read()
	return err == nil && processAlive(pid)
}

// Uptime derives daemon uptime from the PID file's age
func (p *PIDFile) Uptime() (time.Duration, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		return 0, err
	}
	return time.Since(info.ModTime()), nil
}

// Signal sends sig to the recorded process
func (p *PIDFile) Signal(sig os.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}

// processAlive probes the pid with signal 0. On Unix FindProcess always
// succeeds, so the probe is what actually answers the question.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
