package fancontrol

import (
	"fmt"

	"github.com/pkg/errors"

	"fand/internal/thermal"
)

// Level is the value written to the fan controller. Some hardware aliases
// levels (acpi_ibm treats 4 as 3 and 6 as 5); it is passed through as is.
type Level int

// Step maps a threshold to the level used once the reading exceeds it.
type Step struct {
	Threshold thermal.Temperature
	Level     Level
}

func (s Step) String() string {
	return fmt.Sprintf("%dC:%d", s.Threshold.Celsius(), s.Level)
}

// Table is an ordered fan curve, strictly increasing by threshold.
//
// Build it with NewTable; the zero Table selects level 0 for everything.
type Table struct {
	steps []Step
}

// DefaultTable is the reference ThinkPad curve. Levels 4 and 6 are skipped on
// purpose.
func DefaultTable() Table {
	return Table{steps: []Step{
		{Threshold: thermal.FromCelsius(0), Level: 0},
		{Threshold: thermal.FromCelsius(40), Level: 1},
		{Threshold: thermal.FromCelsius(45), Level: 2},
		{Threshold: thermal.FromCelsius(50), Level: 3},
		{Threshold: thermal.FromCelsius(55), Level: 5},
		{Threshold: thermal.FromCelsius(60), Level: 7},
	}}
}

// NewTable validates and copies steps. maxLevel <= 0 disables the upper bound
// check.
func NewTable(steps []Step, maxLevel Level) (Table, error) {
	if len(steps) == 0 {
		return Table{}, errors.New("fan curve is empty")
	}
	out := make([]Step, len(steps))
	copy(out, steps)
	for i, s := range out {
		if s.Level < 0 {
			return Table{}, errors.Errorf("fan curve step %d: level %d must be >= 0", i, s.Level)
		}
		if maxLevel > 0 && s.Level > maxLevel {
			return Table{}, errors.Errorf("fan curve step %d: level %d exceeds max level %d", i, s.Level, maxLevel)
		}
		if i > 0 && s.Threshold <= out[i-1].Threshold {
			return Table{}, errors.Errorf("fan curve step %d: threshold %s must be above %s", i, s.Threshold, out[i-1].Threshold)
		}
		if i > 0 && s.Level < out[i-1].Level {
			return Table{}, errors.Errorf("fan curve step %d: level %d is below the previous level %d", i, s.Level, out[i-1].Level)
		}
	}
	return Table{steps: out}, nil
}

// Steps returns a copy of the curve.
func (t Table) Steps() []Step {
	out := make([]Step, len(t.steps))
	copy(out, t.steps)
	return out
}

func (t Table) Len() int { return len(t.steps) }

// Select maps the hottest reading to a level.
//
// The table is scanned from the top; the first step whose threshold is
// strictly below maxTemp wins. A reading equal to a threshold stays on the
// lower step. Readings at or below the first threshold get the first level.
func (t Table) Select(maxTemp thermal.Temperature) Level {
	if len(t.steps) == 0 {
		return 0
	}
	for i := len(t.steps) - 1; i >= 0; i-- {
		if maxTemp > t.steps[i].Threshold {
			return t.steps[i].Level
		}
	}
	return t.steps[0].Level
}

// Select is Table.Select in function form.
func Select(maxTemp thermal.Temperature, table Table) Level {
	return table.Select(maxTemp)
}
