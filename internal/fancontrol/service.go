package fancontrol

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"fand/internal/thermal"
)

var afterFn = time.After

// DefaultInterval is the pacing between control cycles.
const DefaultInterval = 500 * time.Millisecond

type Config struct {
	Table Table
	// Interval is the fixed pause after each cycle.
	Interval time.Duration
}

// Observer is told about every cycle. Implementations must be cheap; they run
// on the control goroutine.
type Observer interface {
	ObserveCycle(readings []thermal.Temperature, maxTemp thermal.Temperature, level Level)
	ObserveTransition(from, to Level)
}

type Snapshot struct {
	Sensors int `json:"sensors"`

	MaxTempValid bool    `json:"max_temp_valid"`
	MaxTempC     float64 `json:"max_temp_c"`

	Level      int    `json:"level"`
	LevelValid bool   `json:"level_valid"`
	Cycles     uint64 `json:"cycles"`
	DryRun     bool   `json:"dry_run"`

	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Service is the control loop: read every sensor, pick a level from the
// hottest reading, write it when it changed, wait, repeat.
//
// Run must not be called concurrently with itself. Snapshot is safe from any
// goroutine.
type Service struct {
	cfg     Config
	sensors []Sensor
	gw      *Gateway
	obs     Observer
	log     *log.Entry

	// previously applied level; unset until the first write
	oldLevel Level
	haveOld  bool

	readings []thermal.Temperature

	mu   sync.RWMutex
	snap Snapshot
}

func New(cfg Config, sensors []Sensor, gw *Gateway, obs Observer) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Table.Len() == 0 {
		cfg.Table = DefaultTable()
	}
	s := &Service{
		cfg:      cfg,
		sensors:  append([]Sensor(nil), sensors...),
		gw:       gw,
		obs:      obs,
		log:      log.WithField("component", "fancontrol"),
		readings: make([]thermal.Temperature, len(sensors)),
	}
	s.snap.Sensors = len(sensors)
	if gw != nil {
		s.snap.DryRun = gw.DryRun()
	}
	return s
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) setState(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
	s.snap.LastUpdateAt = time.Now().UTC()
}

func (s *Service) setErr(err error) {
	s.setState(func(sn *Snapshot) { sn.LastError = err.Error() })
}

// Run loops until ctx is cancelled (returns nil) or a cycle fails (returns
// the error). Failures are never retried.
func (s *Service) Run(ctx context.Context) error {
	if s == nil {
		return errors.New("fancontrol: service is nil")
	}
	if len(s.sensors) == 0 {
		return DiscoveryError("start control loop", errors.New("no sensors"))
	}
	if s.gw == nil {
		return errors.New("fancontrol: gateway is nil")
	}
	s.log.Infof("control loop running: %d sensors, interval %s, curve %v", len(s.sensors), s.cfg.Interval, s.cfg.Table.Steps())

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := s.cycle(); err != nil {
			s.setErr(err)
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-afterFn(s.cfg.Interval):
		}
	}
}

func (s *Service) cycle() error {
	maxTemp, err := s.sample()
	if err != nil {
		return err
	}

	newLevel := s.cfg.Table.Select(maxTemp)
	if !s.haveOld || newLevel != s.oldLevel {
		s.log.Debugf("temp %d, %d -> %d", maxTemp.Celsius(), s.oldLevel, newLevel)
		if err := s.gw.SetFanLevel(s.oldLevel, newLevel); err != nil {
			return err
		}
		if s.obs != nil {
			s.obs.ObserveTransition(s.oldLevel, newLevel)
		}
	}
	s.oldLevel = newLevel
	s.haveOld = true

	if s.obs != nil {
		s.obs.ObserveCycle(s.readings, maxTemp, newLevel)
	}
	s.setState(func(sn *Snapshot) {
		sn.MaxTempValid = true
		sn.MaxTempC = maxTemp.CelsiusFloat()
		sn.Level = int(newLevel)
		sn.LevelValid = true
		sn.Cycles++
		sn.LastError = ""
	})
	return nil
}

// sample reads every sensor and returns the hottest value.
func (s *Service) sample() (thermal.Temperature, error) {
	var maxTemp thermal.Temperature
	for i, sensor := range s.sensors {
		t, err := s.gw.ReadTemperature(sensor)
		if err != nil {
			return 0, err
		}
		s.readings[i] = t
		if i == 0 || t > maxTemp {
			maxTemp = t
		}
	}
	return maxTemp, nil
}
