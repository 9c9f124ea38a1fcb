package sensors

import (
	"fmt"

	"github.com/pkg/errors"

	"fand/internal/fancontrol"
	"fand/internal/sysctl"
	"fand/internal/thermal"
)

const (
	DefaultCountSysctl = "kern.smp.cpus"
	DefaultNameFormat  = "dev.cpu.%d.temperature"
)

var (
	sysctlCountFn   = sysctl.Count
	sysctlResolveFn = sysctl.ResolveNode
	sysctlReadFn    = func(n sysctl.Node) (int, error) { return n.ReadInt() }
)

// sysctlSensor reads one dev.cpu.N.temperature node, already in
// tenths of a kelvin.
type sysctlSensor struct {
	cpu  int
	node sysctl.Node
}

// Name reads as "cpu 3" in gateway errors.
func (s *sysctlSensor) Name() string { return fmt.Sprintf("cpu %d", s.cpu) }

func (s *sysctlSensor) Read() (thermal.Temperature, error) {
	v, err := sysctlReadFn(s.node)
	if err != nil {
		return 0, errors.Wrap(err, s.node.Name)
	}
	return thermal.Temperature(v), nil
}

// discoverSysctl assumes one temperature node per CPU.
func discoverSysctl(countName, format string) ([]fancontrol.Sensor, error) {
	if countName == "" {
		countName = DefaultCountSysctl
	}
	if format == "" {
		format = DefaultNameFormat
	}
	n, err := sysctlCountFn(countName)
	if err != nil {
		return nil, fancontrol.DiscoveryError("could not get number of cpus", err)
	}
	if n <= 0 {
		return nil, fancontrol.DiscoveryError("could not get number of cpus", errors.Errorf("%s=%d", countName, n))
	}

	out := make([]fancontrol.Sensor, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf(format, i)
		node, err := sysctlResolveFn(name)
		if err != nil {
			return nil, fancontrol.DiscoveryError(fmt.Sprintf("could not find MIB for %q", name), err)
		}
		out = append(out, &sysctlSensor{cpu: i, node: node})
	}
	return out, nil
}
