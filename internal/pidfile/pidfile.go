// Package pidfile keeps a second daemon instance from taking over a fan that
// is already owned.
//
// The file holds the owner's PID and stays flock(2)ed while held, so a
// crashed owner never blocks a restart: a stale file is simply overwritten.
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var ErrConcurrentInstance = errors.New("another instance is running")

// ConcurrentInstanceError reports the PID recorded by the running owner.
type ConcurrentInstanceError struct {
	Path string
	PID  int
}

func (e *ConcurrentInstanceError) Error() string {
	return fmt.Sprintf("%s: already running, pid %d", e.Path, e.PID)
}

func (e *ConcurrentInstanceError) Is(target error) bool { return target == ErrConcurrentInstance }

// File is a held lock file. Close removes it.
type File struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func (f *File) Path() string { return f.path }

func parsePID(b []byte) (int, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, errors.New("empty pid file")
	}
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "parse pid %q", s)
	}
	if pid <= 0 {
		return 0, errors.Errorf("invalid pid %d", pid)
	}
	return pid, nil
}

// ReadPID returns the PID stored in path.
func ReadPID(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return parsePID(b)
}
