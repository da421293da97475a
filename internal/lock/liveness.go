package lock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// PIDAlive reports whether a process id responds to a no-op signal. EPERM
// means the process exists but belongs to another user, which still counts
// as alive.
func PIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}
