//go:build linux && (arm || arm64)

package fancontrol

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// sysfsPWM drives a hardware PWM channel through /sys/class/pwm.
//
// On a Raspberry Pi GPIO18 is only exposed as a PWM channel with
// `dtoverlay=pwm-2chan` (or equivalent). sysfs is used instead of
// memory-mapped GPIO because the Pi 5 breaks the latter.
type sysfsPWM struct {
	chipPath string
	pwmPath  string
	channel  int

	periodNS uint64
	enabled  bool
}

var pwmSysfsBase = "/sys/class/pwm"

func openPWM(pin int) (pwmDriver, error) {
	// Channel 0 of the first chip is GPIO18 with the pwm-2chan overlay.
	if pin != 18 {
		return nil, errors.Errorf("fancontrol: sysfs pwm supports only pin 18, got %d", pin)
	}

	chipPath, channel, err := findPWMChip()
	if err != nil {
		return nil, err
	}

	d := &sysfsPWM{
		chipPath: chipPath,
		channel:  channel,
		pwmPath:  filepath.Join(chipPath, fmt.Sprintf("pwm%d", channel)),
	}
	if err := d.ensureExported(); err != nil {
		return nil, err
	}
	if err := d.writeBool("enable", false); err == nil {
		d.enabled = false
	}
	return d, nil
}

func findPWMChip() (chipPath string, channel int, err error) {
	base := pwmSysfsBase
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", 0, errors.Wrapf(err, "fancontrol: read %s", base)
	}

	// pwmchipN entries are usually symlinks, so match on name only.
	preferred := []string{"pwmchip0", "pwmchip1", "pwmchip2"}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "pwmchip") {
			seen[e.Name()] = true
		}
	}
	candidates := make([]string, 0, len(preferred)+len(entries))
	for _, name := range preferred {
		if seen[name] {
			candidates = append(candidates, name)
		}
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "pwmchip") && !slices.Contains(candidates, name) {
			candidates = append(candidates, name)
		}
	}

	for _, name := range candidates {
		chip := filepath.Join(base, name)
		n, rerr := readInt(filepath.Join(chip, "npwm"))
		if rerr != nil || n <= 0 {
			continue
		}
		return chip, 0, nil
	}
	return "", 0, errors.New("fancontrol: no sysfs pwmchip found (is the pwm overlay enabled?)")
}

func (d *sysfsPWM) ensureExported() error {
	if _, err := os.Stat(d.pwmPath); err == nil {
		return nil
	}
	exportPath := filepath.Join(d.chipPath, "export")
	if err := writeSysfs(exportPath, strconv.Itoa(d.channel)); err != nil {
		// Someone else may have exported it in the meantime.
		if _, statErr := os.Stat(d.pwmPath); statErr == nil {
			return nil
		}
		return errors.Wrap(err, "fancontrol: export pwm")
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(d.pwmPath); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := os.Stat(d.pwmPath); err != nil {
		return errors.Wrap(err, "fancontrol: pwm path not created after export")
	}
	return nil
}

// Close leaves the fan at full duty before disabling the channel.
func (d *sysfsPWM) Close() error {
	_ = d.SetDutyPercent(100)
	err := d.writeBool("enable", false)
	d.enabled = false
	return err
}

// SetFrequencyHz takes the base frequency (output frequency * 100).
func (d *sysfsPWM) SetFrequencyHz(hz int) error {
	if hz <= 0 {
		return errors.Errorf("fancontrol: invalid frequency %d", hz)
	}
	outHz := hz / 100
	if outHz <= 0 {
		outHz = 1
	}
	periodNS := uint64(1_000_000_000 / outHz)
	if periodNS == 0 {
		periodNS = 1
	}

	// Most drivers refuse period changes while enabled.
	_ = d.writeBool("enable", false)
	d.enabled = false

	if err := d.writeUint("period", periodNS); err != nil {
		return err
	}
	d.periodNS = periodNS

	if err := d.writeBool("enable", true); err != nil {
		return err
	}
	d.enabled = true
	return nil
}

func (d *sysfsPWM) SetDutyPercent(p float64) error {
	p = clamp(p, 0, 100)
	if d.periodNS == 0 {
		d.periodNS = 1_000_000_000 / 64_000
	}

	duty := uint64(math.Round(float64(d.periodNS) * (p / 100.0)))
	if duty > d.periodNS {
		duty = d.periodNS
	}
	if err := d.writeUint("duty_cycle", duty); err != nil {
		return err
	}
	if !d.enabled {
		_ = d.writeBool("enable", true)
		d.enabled = true
	}
	return nil
}

func (d *sysfsPWM) writeUint(name string, v uint64) error {
	return writeSysfs(filepath.Join(d.pwmPath, name), strconv.FormatUint(v, 10))
}

func (d *sysfsPWM) writeBool(name string, v bool) error {
	val := "0"
	if v {
		val = "1"
	}
	return writeSysfs(filepath.Join(d.pwmPath, name), val)
}
