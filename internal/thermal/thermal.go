package thermal

import (
	"fmt"
	"math"
)

// ZeroCelsius is 0 degrees C in tenths of a kelvin, matching the encoding the
// acpi and cpu temperature sysctls report.
const ZeroCelsius = 2732

// Temperature is a reading in tenths of a kelvin.
//
// All comparisons (readings vs. thresholds) happen in this encoding; Celsius
// is only used for diagnostics.
type Temperature int

// FromCelsius returns the encoding of a whole-degree Celsius value.
func FromCelsius(c int) Temperature {
	return Temperature(c*10 + ZeroCelsius)
}

// FromCelsiusFloat converts a floating Celsius reading, rounded to the nearest
// tenth of a degree.
func FromCelsiusFloat(c float64) Temperature {
	return Temperature(int(math.Round(c*10)) + ZeroCelsius)
}

// FromMilliCelsius converts the milli-degree integers Linux sysfs exposes.
func FromMilliCelsius(mc int) Temperature {
	return FromCelsiusFloat(float64(mc) / 1000.0)
}

// Celsius rounds to whole degrees.
func (t Temperature) Celsius() int {
	d := int(t) - ZeroCelsius
	if d >= 0 {
		return (d + 5) / 10
	}
	return -((-d + 5) / 10)
}

// CelsiusFloat returns degrees C with one decimal of precision.
func (t Temperature) CelsiusFloat() float64 {
	return float64(int(t)-ZeroCelsius) / 10.0
}

func (t Temperature) String() string {
	return fmt.Sprintf("%.1fC", t.CelsiusFloat())
}
