package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Per-task files kept in the source's pending directory while a task
// executes. Both are hidden so directory scans skip them.
const (
	runningSuffix  = ".running"
	taskLockSuffix = ".lock"
)

func RunningMarkerPath(dir, taskID string) string {
	return filepath.Join(dir, "."+taskID+runningSuffix)
}

func TaskLockPath(dir, taskID string) string {
	return filepath.Join(dir, "."+taskID+taskLockSuffix)
}

// WriteRunningMarker records the owner of an executing task.
func WriteRunningMarker(path string, owner Owner) error {
	data, err := json.Marshal(owner)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ClearMarker removes a marker file; missing files are not an error.
func ClearMarker(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker %s: %w", path, err)
	}
	return nil
}

// MarkerBusy reports whether a running marker refers to a live owner. A
// marker with a dead owner is deleted and reported as reclaimed; the task it
// guarded is available again.
func MarkerBusy(path string) (busy bool, reclaimed bool, err error) {
	owner, err := ReadOwner(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, nil
		}
		// Unreadable marker: treat as abandoned and reclaim.
		if rerr := ClearMarker(path); rerr != nil {
			return false, false, rerr
		}
		return false, true, nil
	}

	if PIDAlive(owner.PID) {
		return true, false, nil
	}
	if err := ClearMarker(path); err != nil {
		return false, false, err
	}
	return false, true, nil
}
