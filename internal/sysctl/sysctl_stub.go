//go:build !freebsd

package sysctl

import "github.com/pkg/errors"

var errUnsupported = errors.New("sysctl: unsupported OS (need freebsd)")

func Resolve(name string) (MIB, error) { return nil, errUnsupported }

func ReadInt(mib MIB) (int, error) { return 0, errUnsupported }

func WriteInt(mib MIB, v int) error { return errUnsupported }

func Count(name string) (int, error) { return 0, errUnsupported }
