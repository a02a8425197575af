package rtp_test

import (
	"testing"

	"github.com/evetabi/plinko/internal/rtp"
)

func equalSet(got, want []int) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[int]bool, len(got))
	for _, v := range got {
		seen[v] = true
	}
	for _, v := range want {
		if !seen[v] {
			return false
		}
	}
	return true
}

// TestDeriveZonesDefault pins the zone partition for the production
// multiplier array.
//
//	[4, 2, 1.4, 0, 0.5, 0, 1.2, 1.5, 5]
//	  RED    = {3, 5}            (the zero slots)
//	  GREEN  = {0, 1, 7, 8}      high {0, 8}, low {1, 7}
//	  YELLOW = {2, 4, 6}         high {2, 6}, low {4}
func TestDeriveZonesDefault(t *testing.T) {
	z := rtp.DeriveZones([]float64{4, 2, 1.4, 0, 0.5, 0, 1.2, 1.5, 5})

	cases := []struct {
		name string
		got  []int
		want []int
	}{
		{"red", z.Red, []int{3, 5}},
		{"green", z.Green, []int{0, 1, 7, 8}},
		{"green high", z.GreenHigh, []int{0, 8}},
		{"green low", z.GreenLow, []int{1, 7}},
		{"yellow", z.Yellow, []int{2, 4, 6}},
		{"yellow high", z.YellowHigh, []int{2, 6}},
		{"yellow low", z.YellowLow, []int{4}},
	}
	for _, tc := range cases {
		if !equalSet(tc.got, tc.want) {
			t.Errorf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

// TestDeriveZonesNoZeros covers a degenerate array with no loss slot: RED is
// empty and the engine falls back to the lowest multiplier for negative
// deltas.
func TestDeriveZonesNoZeros(t *testing.T) {
	z := rtp.DeriveZones([]float64{3, 1, 0.5, 2})

	if len(z.Red) != 0 {
		t.Errorf("red = %v, want empty", z.Red)
	}
	// Magnitude order: 3 (idx 0), 2 (idx 3), 1 (idx 1), 0.5 (idx 2).
	if !equalSet(z.Green, []int{0, 3}) {
		t.Errorf("green = %v, want {0, 3}", z.Green)
	}
	if !equalSet(z.Yellow, []int{1, 2}) {
		t.Errorf("yellow = %v, want {1, 2}", z.Yellow)
	}
}

func TestDeriveZonesTieBreaksByIndex(t *testing.T) {
	// Two equal top multipliers: the earlier index ranks first.
	// Three nonzero slots → green gets the top two {0, 1}, high gets {0}.
	z := rtp.DeriveZones([]float64{2, 2, 1, 0})
	if !equalSet(z.Green, []int{0, 1}) {
		t.Errorf("green = %v, want {0, 1}", z.Green)
	}
	if !equalSet(z.GreenHigh, []int{0}) {
		t.Errorf("green high = %v, want {0}", z.GreenHigh)
	}
}
