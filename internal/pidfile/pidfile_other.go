//go:build !unix

package pidfile

import "github.com/pkg/errors"

var errUnsupported = errors.New("pidfile: unsupported OS")

func Check(path string) error { return errUnsupported }

func Acquire(path string) (*File, error) { return nil, errUnsupported }

func (f *File) Close() error { return nil }
