package thermal

import "testing"

func TestFromCelsius(t *testing.T) {
	if got := FromCelsius(0); got != 2732 {
		t.Fatalf("FromCelsius(0)=%d want 2732", got)
	}
	if got := FromCelsius(45); got != 3182 {
		t.Fatalf("FromCelsius(45)=%d want 3182", got)
	}
	if got := FromCelsius(-10); got != 2632 {
		t.Fatalf("FromCelsius(-10)=%d want 2632", got)
	}
}

func TestFromCelsiusFloat_MatchesWholeDegrees(t *testing.T) {
	for _, c := range []int{0, 38, 40, 45, 60} {
		if a, b := FromCelsiusFloat(float64(c)), FromCelsius(c); a != b {
			t.Fatalf("c=%d float=%d int=%d", c, a, b)
		}
	}
	if got := FromCelsiusFloat(45.1); got != FromCelsius(45)+1 {
		t.Fatalf("45.1C=%d want %d", got, FromCelsius(45)+1)
	}
}

func TestFromMilliCelsius(t *testing.T) {
	if got := FromMilliCelsius(52345); got != FromCelsius(52)+3 {
		t.Fatalf("52345mC=%d want %d", got, FromCelsius(52)+3)
	}
}

func TestCelsius_Rounds(t *testing.T) {
	cases := []struct {
		in   Temperature
		want int
	}{
		{FromCelsius(50), 50},
		{FromCelsius(50) + 4, 50},
		{FromCelsius(50) + 5, 51},
		{FromCelsius(50) - 5, 50},
		{FromCelsius(-3), -3},
		{FromCelsius(-3) - 5, -4},
	}
	for _, tc := range cases {
		if got := tc.in.Celsius(); got != tc.want {
			t.Fatalf("Celsius(%d)=%d want %d", tc.in, got, tc.want)
		}
	}
}

func TestString(t *testing.T) {
	if got := (FromCelsius(52) + 3).String(); got != "52.3C" {
		t.Fatalf("String=%q want 52.3C", got)
	}
}
