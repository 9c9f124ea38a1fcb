//go:build !linux || (!arm && !arm64)

package fancontrol

import "github.com/pkg/errors"

func openGPIO(pin int) (pwmDriver, error) {
	return nil, errors.New("fancontrol: gpio unsupported on this platform")
}
