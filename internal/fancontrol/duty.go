package fancontrol

import (
	"math"

	"github.com/pkg/errors"
)

// dutyFan adapts a pwmDriver (sysfs PWM or on/off GPIO) to fan levels.
//
// Level 0 is 0% duty; levels 1..maxLevel spread linearly over
// [dutyMin..100]. The driver is opened on TakeControl and closed on release,
// which leaves the fan running at full speed.
type dutyFan struct {
	open      func(pin int) (pwmDriver, error)
	pin       int
	frequency int
	dutyMin   float64
	maxLevel  Level

	drv pwmDriver
}

func (d *dutyFan) dutyFor(level Level) float64 {
	if level <= 0 {
		return 0
	}
	if level >= d.maxLevel {
		return 100
	}
	lo := clamp(d.dutyMin, 0, 100)
	return clamp(lo+float64(level)*(100.0-lo)/float64(d.maxLevel), 0, 100)
}

func (d *dutyFan) TakeControl() error {
	drv, err := d.open(d.pin)
	if err != nil {
		return err
	}
	// The driver takes the base clock, 100x the output frequency.
	if err := drv.SetFrequencyHz(d.frequency * 100); err != nil {
		_ = drv.Close()
		return errors.Wrap(err, "set pwm frequency")
	}
	d.drv = drv
	return nil
}

func (d *dutyFan) SetLevel(level Level) error {
	if d.drv == nil {
		return errors.New("fan driver not open")
	}
	duty := d.dutyFor(level)
	return errors.Wrapf(d.drv.SetDutyPercent(duty), "set duty %d%%", int(math.Round(duty)))
}

func (d *dutyFan) ReleaseControl() error {
	if d.drv == nil {
		return nil
	}
	err := d.drv.Close()
	d.drv = nil
	return err
}
