//go:build !unix

package main

import "errors"

func isDaemonChild() bool { return false }

func daemonize(args []string) (int, error) {
	return 0, errors.New("background mode is not supported on this OS; run with -f")
}
