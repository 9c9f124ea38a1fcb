//go:build unix

package pidfile

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var getpid = os.Getpid

// alive reports whether a process exists. EPERM means it exists but belongs
// to someone else.
func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Check reports a ConcurrentInstanceError when path is held by a live
// process. It does not take the lock.
func Check(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB); err == nil {
		// Nobody holds it: stale.
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		return nil
	}
	pid, err := ReadPID(path)
	if err != nil {
		return errors.Wrapf(err, "%s is locked", path)
	}
	if pid != getpid() && alive(pid) {
		return &ConcurrentInstanceError{Path: path, PID: pid}
	}
	return nil
}

// acquireAttempts bounds the retries when the file is replaced between
// open and lock.
const acquireAttempts = 5

var lockFn = unix.Flock

// Acquire creates or takes over path, locks it and writes the current PID.
func Acquire(path string) (*File, error) {
	for i := 0; i < acquireAttempts; i++ {
		f, err := openLocked(path)
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		if err := writePID(f); err != nil {
			_ = f.Close()
			return nil, errors.Wrapf(err, "write pid to %s", path)
		}
		return &File{path: path, f: f}, nil
	}
	return nil, errors.Errorf("%s was replaced %d times while locking", path, acquireAttempts)
}

// openLocked returns the locked file, or nil when the locked inode is no
// longer the one at path. A holder unlinks before it unlocks, so a lock
// taken on the orphaned inode guards nothing.
func openLocked(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := lockFn(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			pid, perr := ReadPID(path)
			if perr != nil {
				return nil, errors.Wrapf(perr, "%s is locked", path)
			}
			return nil, &ConcurrentInstanceError{Path: path, PID: pid}
		}
		return nil, errors.Wrapf(err, "lock %s", path)
	}

	same, err := sameInode(f, path)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !same {
		_ = f.Close()
		return nil, nil
	}
	return f, nil
}

func sameInode(f *os.File, path string) (bool, error) {
	var held, cur unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &held); err != nil {
		return false, errors.Wrap(err, "fstat pidfile")
	}
	if err := unix.Stat(path, &cur); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, nil
		}
		return false, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	return held.Dev == cur.Dev && held.Ino == cur.Ino, nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(getpid())+"\n"), 0); err != nil {
		return err
	}
	return f.Sync()
}

// Close removes the file and drops the lock. It is safe to call more than
// once.
func (f *File) Close() error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return nil
	}
	rerr := os.Remove(f.path)
	if os.IsNotExist(rerr) {
		rerr = nil
	}
	cerr := f.f.Close()
	f.f = nil
	if rerr != nil {
		return errors.Wrapf(rerr, "remove %s", f.path)
	}
	return cerr
}
