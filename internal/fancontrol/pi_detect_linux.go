//go:build linux

package fancontrol

import (
	"os"
	"strings"
)

var modelPaths = []string{
	"/sys/firmware/devicetree/base/model",
	"/proc/device-tree/model",
}

// isRaspberryPi checks the device-tree model string.
func isRaspberryPi() bool {
	for _, p := range modelPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		model := strings.Trim(strings.TrimSpace(string(b)), "\x00")
		if strings.Contains(model, "Raspberry Pi") {
			return true
		}
	}
	return false
}
