//go:build linux && (arm || arm64)

package fancontrol

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// openGPIO drives a BCM GPIO as a plain on/off output through the GPIO
// character device. It is meant for 2-wire fans switched by a transistor:
// any duty > 0 is ON.
func openGPIO(pin int) (pwmDriver, error) {
	if pin <= 0 {
		return nil, errors.Errorf("fancontrol: invalid gpio pin %d", pin)
	}

	// Header lines are named "GPIO18" etc. on the Pi.
	lineName := fmt.Sprintf("GPIO%d", pin)

	// The Pi 5 exposes the header on gpiochip0 or gpiochip4 depending on the
	// kernel; try those first, then everything else.
	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", e.Name()))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		// Start ON; the first control cycle sets the real level.
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(1), gpiocdev.WithConsumer("fand"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpiodFan{chip: chip, line: line}, nil
	}

	return nil, errors.Errorf("fancontrol: gpio line %q not found (or busy)", lineName)
}

type gpiodFan struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// SetFrequencyHz is a no-op; the line is either on or off.
func (g *gpiodFan) SetFrequencyHz(hz int) error {
	return nil
}

func (g *gpiodFan) SetDutyPercent(p float64) error {
	if g == nil || g.line == nil {
		return errors.New("fancontrol: gpio driver not initialized")
	}
	v := 0
	if p > 0 {
		v = 1
	}
	return g.line.SetValue(v)
}

// Close switches the fan ON before giving the line back.
func (g *gpiodFan) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	serr := g.line.SetValue(1)
	cerr := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	if serr != nil {
		return errors.Wrap(serr, "fancontrol: switch fan on")
	}
	return cerr
}
