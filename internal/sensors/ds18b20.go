package sensors

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/yryz/ds18b20"

	"fand/internal/fancontrol"
	"fand/internal/thermal"
)

var (
	ds18b20ListFn = ds18b20.Sensors
	ds18b20ReadFn = ds18b20.Temperature
)

// oneWireSensor is a DS18B20 on the w1 bus, addressed by its id.
type oneWireSensor struct {
	id string
}

func (s *oneWireSensor) Name() string { return "w1/" + s.id }

func (s *oneWireSensor) Read() (thermal.Temperature, error) {
	c, err := ds18b20ReadFn(s.id)
	if err != nil {
		return 0, err
	}
	return thermal.FromCelsiusFloat(c), nil
}

// discoverDS18B20 uses every sensor on the bus, or exactly ids when given.
// A listed id that is not present is an error.
func discoverDS18B20(ids []string) ([]fancontrol.Sensor, error) {
	found, err := ds18b20ListFn()
	if err != nil {
		return nil, fancontrol.DiscoveryError("list ds18b20 sensors", err)
	}
	want := found
	if len(ids) > 0 {
		for _, id := range ids {
			if !slices.Contains(found, id) {
				return nil, fancontrol.DiscoveryError("find ds18b20 sensor", errors.Errorf("%s not on the bus", id))
			}
		}
		want = ids
	}
	out := make([]fancontrol.Sensor, 0, len(want))
	for _, id := range want {
		out = append(out, &oneWireSensor{id: id})
	}
	return out, nil
}
