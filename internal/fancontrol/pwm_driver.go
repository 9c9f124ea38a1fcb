package fancontrol

// pwmDriver is what the pwm and gpio backends need from the hardware.
//
// Duty is a percentage (0..100). Close must leave the fan running.
//
//nolint:revive // internal interface name matches domain.
type pwmDriver interface {
	SetFrequencyHz(hz int) error
	SetDutyPercent(p float64) error
	Close() error
}

var (
	openPWMFn  = openPWM
	openGPIOFn = openGPIO
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
