//go:build !linux

package fancontrol

func isRaspberryPi() bool { return false }
