//go:build unix

package main

import (
	"os"
	"os/exec"
	"syscall"
)

// daemonEnv marks the detached child so it does not fork again.
const daemonEnv = "FAND_DAEMONIZED"

func isDaemonChild() bool { return os.Getenv(daemonEnv) == "1" }

// daemonize starts a copy of this binary in a new session with stdio on
// /dev/null and returns its PID. The Go runtime cannot fork(2) safely, so
// the child is a fresh exec.
func daemonize(args []string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}
	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), daemonEnv+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	return pid, cmd.Process.Release()
}
