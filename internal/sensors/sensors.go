// Package sensors discovers the temperature sensors the control loop polls.
//
// Discovery runs once at startup and resolves everything the hot loop needs
// (sysctl MIBs, sysfs paths, 1-wire ids), so a read is a single syscall or
// file read. Any failure is fatal: the daemon has no degraded mode for a
// partially known sensor topology.
package sensors

import (
	"runtime"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"fand/internal/fancontrol"
)

const (
	SourceAuto     = "auto"
	SourceSysctl   = "sysctl"
	SourceThermal  = "thermal"
	SourceDS18B20  = "ds18b20"
	SourceGopsutil = "gopsutil"
)

type Config struct {
	Source string

	// sysctl source
	CountSysctl string
	NameFormat  string

	// thermal source
	Glob  string
	Types []string

	// ds18b20 source; empty means every sensor on the bus
	IDs []string

	// gopsutil source
	Prefixes []string
}

var goos = runtime.GOOS

// Discover resolves every configured sensor. The returned slice is never
// modified afterwards.
func Discover(cfg Config) ([]fancontrol.Sensor, error) {
	source := cfg.Source
	if source == "" || source == SourceAuto {
		source = SourceThermal
		if goos == "freebsd" {
			source = SourceSysctl
		}
	}

	var (
		out []fancontrol.Sensor
		err error
	)
	switch source {
	case SourceSysctl:
		out, err = discoverSysctl(cfg.CountSysctl, cfg.NameFormat)
	case SourceThermal:
		out, err = discoverThermal(cfg.Glob, cfg.Types)
	case SourceDS18B20:
		out, err = discoverDS18B20(cfg.IDs)
	case SourceGopsutil:
		out, err = discoverGopsutil(cfg.Prefixes)
	default:
		err = fancontrol.DiscoveryError("select sensor source", errors.Errorf("unknown source %q", source))
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fancontrol.DiscoveryError("discover "+source+" sensors", errors.New("no sensors found"))
	}

	l := log.WithField("component", "sensors")
	for _, s := range out {
		l.Debugf("using sensor %s", s.Name())
	}
	l.Infof("discovered %d %s sensors", len(out), source)
	return out, nil
}
