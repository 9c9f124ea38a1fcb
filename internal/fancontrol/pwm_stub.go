//go:build !linux || (!arm && !arm64)

package fancontrol

import "github.com/pkg/errors"

func openPWM(pin int) (pwmDriver, error) {
	return nil, errors.New("fancontrol: pwm unsupported on this platform")
}
