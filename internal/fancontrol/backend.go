package fancontrol

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

const (
	BackendAuto     = "auto"
	BackendACPIIBM  = "acpi_ibm"
	BackendThinkpad = "thinkpad"
	BackendPWM      = "pwm"
	BackendGPIO     = "gpio"
)

// DefaultMaxLevel is the highest level acpi_ibm and thinkpad_acpi accept.
const DefaultMaxLevel Level = 7

const (
	// DefaultPWMPin is BCM18, the hardware PWM0 channel on a Raspberry Pi.
	DefaultPWMPin       = 18
	DefaultPWMFrequency = 64000
)

// BackendConfig selects and parameterizes the fan actuator.
type BackendConfig struct {
	Backend  string
	MaxLevel Level

	ACPIIBMFanSysctl   string
	ACPIIBMLevelSysctl string

	ThinkpadPath     string
	ThinkpadWatchdog int

	// PWMPin is BCM GPIO numbering.
	PWMPin int
	// PWMFrequency is the output frequency in Hz.
	PWMFrequency int
	// PWMDutyMin is the duty (0-100) used for level 1.
	PWMDutyMin int

	GPIOPin int
}

var goos = runtime.GOOS

// ResolveBackend turns "auto" into a concrete backend name.
func ResolveBackend(cfg BackendConfig) (string, error) {
	if cfg.Backend != "" && cfg.Backend != BackendAuto {
		return cfg.Backend, nil
	}
	if goos == "freebsd" {
		return BackendACPIIBM, nil
	}
	path := cfg.ThinkpadPath
	if path == "" {
		path = DefaultThinkpadFanPath
	}
	if _, err := os.Stat(path); err == nil {
		return BackendThinkpad, nil
	}
	if isRaspberryPi() {
		return BackendPWM, nil
	}
	return "", errors.New("no fan backend detected; set fan.backend")
}

// NewActuator builds the configured backend. Hardware is not touched until
// TakeControl, except that acpi_ibm resolves its sysctl nodes here.
func NewActuator(cfg BackendConfig) (Actuator, error) {
	backend, err := ResolveBackend(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MaxLevel <= 0 {
		cfg.MaxLevel = DefaultMaxLevel
	}
	switch backend {
	case BackendACPIIBM:
		return newACPIIBM(cfg.ACPIIBMFanSysctl, cfg.ACPIIBMLevelSysctl)
	case BackendThinkpad:
		return newThinkpadFan(cfg.ThinkpadPath, cfg.ThinkpadWatchdog)
	case BackendPWM:
		pin := cfg.PWMPin
		if pin == 0 {
			pin = DefaultPWMPin
		}
		freq := cfg.PWMFrequency
		if freq == 0 {
			freq = DefaultPWMFrequency
		}
		return &dutyFan{
			open:      openPWMFn,
			pin:       pin,
			frequency: freq,
			dutyMin:   float64(cfg.PWMDutyMin),
			maxLevel:  cfg.MaxLevel,
		}, nil
	case BackendGPIO:
		pin := cfg.GPIOPin
		if pin == 0 {
			pin = DefaultPWMPin
		}
		return &dutyFan{
			open:      openGPIOFn,
			pin:       pin,
			frequency: 1,
			maxLevel:  cfg.MaxLevel,
		}, nil
	default:
		return nil, errors.Errorf("unknown fan backend %q", backend)
	}
}
