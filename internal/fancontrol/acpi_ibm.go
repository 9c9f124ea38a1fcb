package fancontrol

import (
	"github.com/pkg/errors"

	"fand/internal/sysctl"
)

// Default acpi_ibm(4) nodes. Writing 0 to the fan node switches the EC to
// manual mode, 1 hands control back to the firmware.
const (
	DefaultACPIIBMFanSysctl   = "dev.acpi_ibm.0.fan"
	DefaultACPIIBMLevelSysctl = "dev.acpi_ibm.0.fan_level"

	acpiIBMManual   = 0
	acpiIBMFirmware = 1
)

var (
	sysctlResolveFn = sysctl.ResolveNode
	sysctlWriteFn   = func(n sysctl.Node, v int) error { return n.WriteInt(v) }
)

type acpiIBM struct {
	fan   sysctl.Node
	level sysctl.Node
}

// newACPIIBM resolves both nodes up front so a missing driver fails before
// the daemon touches anything.
func newACPIIBM(fanName, levelName string) (*acpiIBM, error) {
	if fanName == "" {
		fanName = DefaultACPIIBMFanSysctl
	}
	if levelName == "" {
		levelName = DefaultACPIIBMLevelSysctl
	}
	fan, err := sysctlResolveFn(fanName)
	if err != nil {
		return nil, errors.Wrapf(err, "could not find MIB for %q", fanName)
	}
	level, err := sysctlResolveFn(levelName)
	if err != nil {
		return nil, errors.Wrapf(err, "could not find MIB for %q", levelName)
	}
	return &acpiIBM{fan: fan, level: level}, nil
}

func (a *acpiIBM) TakeControl() error {
	return errors.Wrap(sysctlWriteFn(a.fan, acpiIBMManual), a.fan.Name)
}

func (a *acpiIBM) SetLevel(level Level) error {
	return errors.Wrap(sysctlWriteFn(a.level, int(level)), a.level.Name)
}

func (a *acpiIBM) ReleaseControl() error {
	return errors.Wrap(sysctlWriteFn(a.fan, acpiIBMFirmware), a.fan.Name)
}
