//go:build unix

package pidfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_WritesPIDAndCloseRemoves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fand.pid")

	f, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())

	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, f.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "pid file should be removed")

	assert.NoError(t, f.Close(), "second Close is a no-op")
}

func TestAcquire_SecondInstanceIsRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fand.pid")

	first, err := Acquire(path)
	require.NoError(t, err)
	defer first.Close()

	second, err := Acquire(path)
	require.Error(t, err)
	assert.Nil(t, second)
	assert.True(t, errors.Is(err, ErrConcurrentInstance))

	var cie *ConcurrentInstanceError
	require.True(t, errors.As(err, &cie))
	assert.Equal(t, os.Getpid(), cie.PID)
	assert.Contains(t, err.Error(), "already running")

	// The holder's file is untouched.
	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquire_TakesOverStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fand.pid")
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0o644))

	require.NoError(t, Check(path), "unlocked file is stale")

	f, err := Acquire(path)
	require.NoError(t, err)
	defer f.Close()

	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestCheck_ReportsLiveHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fand.pid")
	f, err := Acquire(path)
	require.NoError(t, err)
	defer f.Close()

	// Pretend the checking process is someone else.
	old := getpid
	getpid = func() int { return old() + 1 }
	t.Cleanup(func() { getpid = old })

	err = Check(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConcurrentInstance))
}

func TestCheck_MissingFile(t *testing.T) {
	assert.NoError(t, Check(filepath.Join(t.TempDir(), "nope.pid")))
}

func TestParsePID(t *testing.T) {
	_, err := parsePID([]byte("\n"))
	assert.Error(t, err)
	_, err = parsePID([]byte("-4"))
	assert.Error(t, err)
	pid, err := parsePID([]byte(" 4242\n"))
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
}

func TestAcquire_RetriesWhenFileReplacedBeforeLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fand.pid")

	// The previous owner unlinks its file between our open and our flock,
	// and a newcomer recreates it.
	calls := 0
	old := lockFn
	lockFn = func(fd int, how int) error {
		calls++
		if calls == 1 {
			require.NoError(t, os.Remove(path))
			require.NoError(t, os.WriteFile(path, nil, 0o644))
		}
		return old(fd, how)
	}
	t.Cleanup(func() { lockFn = old })

	f, err := Acquire(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 2, calls, "lock on the orphaned inode must be retried")

	same, err := sameInode(f.f, path)
	require.NoError(t, err)
	assert.True(t, same, "held lock must be on the file at path")

	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	// A second instance now sees the live lock.
	_, err = Acquire(path)
	assert.True(t, errors.Is(err, ErrConcurrentInstance))
}

func TestAcquire_GivesUpWhenFileKeepsChanging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fand.pid")
	old := lockFn
	lockFn = func(fd int, how int) error {
		_ = os.Remove(path)
		return old(fd, how)
	}
	t.Cleanup(func() { lockFn = old })

	_, err := Acquire(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was replaced")
}

func TestAcquire_OpenErrorNamesPathOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodir", "fand.pid")
	_, err := Acquire(path)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1, strings.Count(err.Error(), path), "err=%q", err)
}
