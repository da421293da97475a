package lock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.lock")
	l := New(path)

	ok, err := l.Acquire(0)
	require.NoError(t, err)
	require.True(t, ok)

	owner, err := ReadOwner(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), owner.PID)
	assert.NotEmpty(t, owner.AcquiredAt)

	require.NoError(t, l.Release())

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file should be removed on release")
	}
}

func TestFileLock_ReleaseIdempotent(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "queue.lock"))

	// Never acquired.
	require.NoError(t, l.Release())

	ok, err := l.Acquire(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
}

func TestFileLock_ContentionTimesOutWithoutError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.lock")

	holder := New(path)
	ok, err := holder.Acquire(0)
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = holder.Release() }()

	contender := New(path)
	contender.SetPollInterval(10 * time.Millisecond)
	start := time.Now()
	ok, err = contender.Acquire(80 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestFileLock_AcquireSucceedsAfterHolderReleases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.lock")

	holder := New(path)
	ok, err := holder.Acquire(0)
	require.NoError(t, err)
	require.True(t, ok)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = holder.Release()
	}()

	contender := New(path)
	contender.SetPollInterval(10 * time.Millisecond)
	ok, err = contender.Acquire(2 * time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, contender.Release())
}

func TestFileLock_IsHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.lock")

	probe := New(path)
	held, err := probe.IsHeld()
	require.NoError(t, err)
	assert.False(t, held)

	holder := New(path)
	ok, err := holder.Acquire(0)
	require.NoError(t, err)
	require.True(t, ok)

	held, err = holder.IsHeld()
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, holder.Release())
}

func TestPIDAlive(t *testing.T) {
	assert.True(t, PIDAlive(os.Getpid()))
	assert.False(t, PIDAlive(0))
	assert.False(t, PIDAlive(-1))
	// PID spaces max out well below this on any test machine.
	assert.False(t, PIDAlive(1<<22+12345))
}
