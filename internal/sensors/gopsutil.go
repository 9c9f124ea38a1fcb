package sensors

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/host"

	"fand/internal/fancontrol"
	"fand/internal/thermal"
)

var DefaultGopsutilPrefixes = []string{"coretemp", "k10temp", "cpu"}

var sensorsTemperaturesFn = host.SensorsTemperaturesWithContext

// readAll returns every key gopsutil reports. gopsutil returns partial
// results together with warnings; only a completely empty result is an
// error.
func readAll() (map[string]float64, error) {
	stats, err := sensorsTemperaturesFn(context.Background())
	if len(stats) == 0 {
		if err == nil {
			err = errors.New("no temperatures reported")
		}
		return nil, err
	}
	out := make(map[string]float64, len(stats))
	for _, st := range stats {
		out[st.SensorKey] = st.Temperature
	}
	return out, nil
}

// gopsutilScan shares one host scan between all gopsutil sensors. A sensor
// whose value was already taken since the last scan triggers a new one, so
// a control cycle costs a single scan however many keys are polled.
type gopsutilScan struct {
	mu    sync.Mutex
	vals  map[string]float64
	fresh map[string]bool
}

func (g *gopsutilScan) read(key string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.fresh[key] {
		all, err := readAll()
		if err != nil {
			return 0, err
		}
		g.vals = all
		g.fresh = make(map[string]bool, len(all))
		for k := range all {
			g.fresh[k] = true
		}
	}
	c, ok := g.vals[key]
	if !ok {
		return 0, errors.Errorf("sensor %s disappeared", key)
	}
	g.fresh[key] = false
	return c, nil
}

type gopsutilSensor struct {
	key  string
	scan *gopsutilScan
}

func (s *gopsutilSensor) Name() string { return s.key }

func (s *gopsutilSensor) Read() (thermal.Temperature, error) {
	c, err := s.scan.read(s.key)
	if err != nil {
		return 0, err
	}
	return thermal.FromCelsiusFloat(c), nil
}

func discoverGopsutil(prefixes []string) ([]fancontrol.Sensor, error) {
	if len(prefixes) == 0 {
		prefixes = DefaultGopsutilPrefixes
	}
	all, err := readAll()
	if err != nil {
		return nil, fancontrol.DiscoveryError("read host temperatures", err)
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		for _, p := range prefixes {
			if strings.HasPrefix(k, p) {
				keys = append(keys, k)
				break
			}
		}
	}
	sort.Strings(keys)

	scan := &gopsutilScan{}
	out := make([]fancontrol.Sensor, 0, len(keys))
	for _, k := range keys {
		out = append(out, &gopsutilSensor{key: k, scan: scan})
	}
	return out, nil
}
