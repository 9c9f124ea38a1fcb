package fancontrol

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"fand/internal/thermal"
)

// Sensor is a temperature source resolved once at startup.
type Sensor interface {
	Name() string
	Read() (thermal.Temperature, error)
}

// Actuator is the minimal interface a fan backend implements.
//
// TakeControl moves the fan from firmware policy to manual control,
// ReleaseControl hands it back. Both must leave the hardware in a safe state
// when they fail.
type Actuator interface {
	TakeControl() error
	SetLevel(level Level) error
	ReleaseControl() error
}

// Gateway is the only path from the daemon to hardware state.
//
// In dry-run mode nothing is written; sensor reads still go through.
type Gateway struct {
	act    Actuator
	dryRun bool
	log    *log.Entry
}

func NewGateway(act Actuator, dryRun bool) *Gateway {
	return &Gateway{
		act:    act,
		dryRun: dryRun,
		log:    log.WithField("component", "gateway"),
	}
}

func (g *Gateway) DryRun() bool { return g.dryRun }

func (g *Gateway) ReadTemperature(s Sensor) (thermal.Temperature, error) {
	t, err := s.Read()
	if err != nil {
		return 0, opError(ErrSensorRead, fmt.Sprintf("could not get temperature for %s", s.Name()), err)
	}
	return t, nil
}

// SetFanLevel commands a level. prev is only used in the error message.
func (g *Gateway) SetFanLevel(prev, level Level) error {
	if g.dryRun {
		g.log.Debugf("dry-run: fan level %d -> %d", prev, level)
		return nil
	}
	if g.act == nil {
		return opError(ErrActuatorWrite, "set fan level", errors.New("no fan backend"))
	}
	if err := g.act.SetLevel(level); err != nil {
		return opError(ErrActuatorWrite, fmt.Sprintf("could not set fan level: %d -> %d", prev, level), err)
	}
	return nil
}

func (g *Gateway) AcquireFanOwnership() error {
	if g.dryRun {
		g.log.Debug("dry-run: not taking over fan control")
		return nil
	}
	if g.act == nil {
		return opError(ErrOwnership, "could not take over fan control", errors.New("no fan backend"))
	}
	if err := g.act.TakeControl(); err != nil {
		return opError(ErrOwnership, "could not take over fan control", err)
	}
	return nil
}

func (g *Gateway) ReleaseFanOwnership() error {
	if g.dryRun {
		g.log.Debug("dry-run: no fan control to hand over")
		return nil
	}
	if g.act == nil {
		return nil
	}
	if err := g.act.ReleaseControl(); err != nil {
		return opError(ErrOwnership, "could not hand over fan control", err)
	}
	return nil
}
