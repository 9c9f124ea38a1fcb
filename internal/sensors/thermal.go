package sensors

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"fand/internal/fancontrol"
	"fand/internal/thermal"
)

// DefaultThermalGlob matches every Linux thermal zone. hwmon inputs
// (/sys/class/hwmon/hwmon*/temp*_input) use the same format.
const DefaultThermalGlob = "/sys/class/thermal/thermal_zone*/temp"

// parseSysfsTemp accepts the usual milli-degree integer (52345) and, like some
// boards do, a value already in whole degrees.
func parseSysfsTemp(s string) (thermal.Temperature, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("temperature empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "parse temperature %q", s)
	}
	if n > 1000 || n < -1000 {
		return thermal.FromMilliCelsius(n), nil
	}
	return thermal.FromCelsius(n), nil
}

func readSysfsTemp(path string) (thermal.Temperature, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return parseSysfsTemp(string(b))
}

type sysfsSensor struct {
	name string
	path string
}

func (s *sysfsSensor) Name() string { return s.name }

func (s *sysfsSensor) Read() (thermal.Temperature, error) {
	return readSysfsTemp(s.path)
}

// zoneType reads the sibling "type" (thermal) or "name" (hwmon) attribute.
func zoneType(path string) string {
	dir := filepath.Dir(path)
	for _, attr := range []string{"type", "name"} {
		b, err := os.ReadFile(filepath.Join(dir, attr))
		if err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	return ""
}

func discoverThermal(glob string, types []string) ([]fancontrol.Sensor, error) {
	if glob == "" {
		glob = DefaultThermalGlob
	}
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, fancontrol.DiscoveryError("glob "+glob, err)
	}
	sort.Strings(paths)

	out := make([]fancontrol.Sensor, 0, len(paths))
	for _, p := range paths {
		typ := zoneType(p)
		if len(types) > 0 && !slices.Contains(types, typ) {
			continue
		}
		// A zone that cannot be read now will not be readable in the loop.
		if _, err := readSysfsTemp(p); err != nil {
			return nil, fancontrol.DiscoveryError("read "+p, err)
		}
		name := filepath.Base(filepath.Dir(p))
		if typ != "" {
			name += "/" + typ
		}
		if base := filepath.Base(p); base != "temp" {
			name += "/" + base
		}
		out = append(out, &sysfsSensor{name: name, path: p})
	}
	return out, nil
}
