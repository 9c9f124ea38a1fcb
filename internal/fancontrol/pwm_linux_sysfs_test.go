//go:build linux && (arm || arm64)

package fancontrol

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindPWMChip_FollowsSymlinkedChip(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "pwm")
	if err := os.MkdirAll(base, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	// sysfs exposes pwmchipN as a symlink into /sys/devices.
	realChip := filepath.Join(dir, "realchip0")
	if err := os.MkdirAll(realChip, 0o755); err != nil {
		t.Fatalf("MkdirAll realChip: %v", err)
	}
	if err := os.WriteFile(filepath.Join(realChip, "npwm"), []byte("2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile npwm: %v", err)
	}

	link := filepath.Join(base, "pwmchip0")
	if err := os.Symlink(realChip, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	old := pwmSysfsBase
	pwmSysfsBase = base
	t.Cleanup(func() { pwmSysfsBase = old })

	chipPath, channel, err := findPWMChip()
	if err != nil {
		t.Fatalf("findPWMChip: %v", err)
	}
	if chipPath != link {
		t.Fatalf("chipPath=%q want %q", chipPath, link)
	}
	if channel != 0 {
		t.Fatalf("channel=%d want 0", channel)
	}
}

func TestOpenPWM_OnlyHardwareChannelPin(t *testing.T) {
	old := pwmSysfsBase
	pwmSysfsBase = filepath.Join(t.TempDir(), "missing")
	t.Cleanup(func() { pwmSysfsBase = old })

	_, err := openPWM(12)
	if err == nil || err.Error() != "fancontrol: sysfs pwm supports only pin 18, got 12" {
		t.Fatalf("err=%v", err)
	}

	// Pin 18 gets past the pin check and fails on the missing sysfs tree.
	_, err = openPWM(DefaultPWMPin)
	if err == nil || !strings.Contains(err.Error(), "fancontrol: read ") {
		t.Fatalf("err=%v want sysfs read error", err)
	}
}

func TestFindPWMChip_SkipsChipsWithoutChannels(t *testing.T) {
	base := t.TempDir()
	for name, npwm := range map[string]string{"pwmchip0": "0\n", "pwmchip3": "2\n"} {
		chip := filepath.Join(base, name)
		if err := os.MkdirAll(chip, 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(filepath.Join(chip, "npwm"), []byte(npwm), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	old := pwmSysfsBase
	pwmSysfsBase = base
	t.Cleanup(func() { pwmSysfsBase = old })

	chipPath, _, err := findPWMChip()
	if err != nil {
		t.Fatalf("findPWMChip: %v", err)
	}
	if want := filepath.Join(base, "pwmchip3"); chipPath != want {
		t.Fatalf("chipPath=%q want %q", chipPath, want)
	}
}

func TestDutyFan_SysfsDriverDutyMapping(t *testing.T) {
	d := &dutyFan{dutyMin: 30, maxLevel: DefaultMaxLevel}
	for _, tc := range []struct {
		level Level
		want  float64
	}{{0, 0}, {7, 100}, {1, 40}} {
		if got := d.dutyFor(tc.level); got != tc.want {
			t.Fatalf("dutyFor(%d)=%v want %v", tc.level, got, tc.want)
		}
	}
}
