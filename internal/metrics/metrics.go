// Package metrics exposes control loop state over HTTP: Prometheus series on
// /metrics and the loop snapshot as JSON on /api/status.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"fand/internal/fancontrol"
	"fand/internal/thermal"
)

const namespace = "fand"

// Collector implements fancontrol.Observer on top of a private registry.
type Collector struct {
	reg *prometheus.Registry

	sensorTemp  *prometheus.GaugeVec
	maxTemp     prometheus.Gauge
	level       prometheus.Gauge
	owned       prometheus.Gauge
	cycles      prometheus.Counter
	transitions prometheus.Counter

	mu    sync.Mutex
	names []string
}

// New registers all series. names labels the sensors in the order the loop
// reads them.
func New(names []string) *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		sensorTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_temperature_celsius",
			Help:      "Last reading of each temperature sensor.",
		}, []string{"sensor"}),
		maxTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_temperature_celsius",
			Help:      "Hottest reading of the last control cycle.",
		}),
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fan_level",
			Help:      "Fan level selected by the last control cycle.",
		}),
		owned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fan_owned",
			Help:      "1 while the daemon holds fan control.",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_cycles_total",
			Help:      "Completed control cycles.",
		}),
		transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fan_level_transitions_total",
			Help:      "Fan level writes.",
		}),
		names: append([]string(nil), names...),
	}
	c.reg.MustRegister(c.sensorTemp, c.maxTemp, c.level, c.owned, c.cycles, c.transitions)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) ObserveCycle(readings []thermal.Temperature, maxTemp thermal.Temperature, level fancontrol.Level) {
	c.mu.Lock()
	for i, t := range readings {
		if i < len(c.names) {
			c.sensorTemp.WithLabelValues(c.names[i]).Set(t.CelsiusFloat())
		}
	}
	c.mu.Unlock()
	c.maxTemp.Set(maxTemp.CelsiusFloat())
	c.level.Set(float64(level))
	c.cycles.Inc()
}

func (c *Collector) ObserveTransition(from, to fancontrol.Level) {
	c.transitions.Inc()
}

func (c *Collector) SetOwnership(s fancontrol.OwnershipState) {
	if s == fancontrol.Owned {
		c.owned.Set(1)
		return
	}
	c.owned.Set(0)
}
