// Package lock implements advisory interprocess file locks with
// timeout-bounded polling acquisition, plus the per-task running markers and
// the pid-liveness probe that turns crash-abandoned locks into reclaimable
// resources.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

const DefaultPollInterval = 100 * time.Millisecond

// Owner identifies the process holding a lock or running marker.
type Owner struct {
	PID        int    `json:"pid"`
	Host       string `json:"host"`
	AcquiredAt string `json:"acquired_at"`
}

func CurrentOwner() Owner {
	host, _ := os.Hostname()
	return Owner{
		PID:        os.Getpid(),
		Host:       host,
		AcquiredAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// FileLock is an advisory mutual-exclusion primitive keyed by a filesystem
// path. Acquisition polls a non-blocking OS lock until it succeeds or the
// timeout elapses.
type FileLock struct {
	path         string
	fl           *flock.Flock
	pollInterval time.Duration
	held         bool
}

func New(path string) *FileLock {
	return &FileLock{
		path:         path,
		fl:           flock.New(path),
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval overrides the retry cadence. Zero or negative values keep
// the default.
func (l *FileLock) SetPollInterval(d time.Duration) {
	if d > 0 {
		l.pollInterval = d
	}
}

func (l *FileLock) Path() string {
	return l.path
}

// Acquire attempts to take the lock, retrying until timeout. Returns true on
// success, and false without an error when the lock stayed contended for the
// whole window. On success the lock file carries the owner record.
func (l *FileLock) Acquire(timeout time.Duration) (bool, error) {
	var (
		ok  bool
		err error
	)
	if timeout <= 0 {
		ok, err = l.fl.TryLock()
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ok, err = l.fl.TryLockContext(ctx, l.pollInterval)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !ok {
		return false, nil
	}

	l.held = true
	if err := l.writeOwner(); err != nil {
		// Owner metadata is advisory; the OS lock is what excludes.
		return true, nil
	}
	return true, nil
}

// Release drops the OS lock and removes the lock file. Idempotent and safe
// to call when the lock was never held.
func (l *FileLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	_ = os.Remove(l.path)
	return nil
}

// IsHeld probes contention with an acquire/release cycle. True means some
// other holder currently owns the lock.
func (l *FileLock) IsHeld() (bool, error) {
	if l.held {
		return true, nil
	}
	probe := flock.New(l.path)
	ok, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe lock %s: %w", l.path, err)
	}
	if !ok {
		return true, nil
	}
	if err := probe.Unlock(); err != nil {
		return false, fmt.Errorf("release probe %s: %w", l.path, err)
	}
	return false, nil
}

func (l *FileLock) writeOwner() error {
	data, err := json.Marshal(CurrentOwner())
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, append(data, '\n'), 0o644)
}

// ReadOwner parses the owner record from a lock or marker file.
func ReadOwner(path string) (Owner, error) {
	var owner Owner
	data, err := os.ReadFile(path)
	if err != nil {
		return owner, err
	}
	if err := json.Unmarshal(data, &owner); err != nil {
		return owner, fmt.Errorf("parse owner record %s: %w", path, err)
	}
	return owner, nil
}
