package rtp

import "sort"

// Zones is the partition of the multiplier array into the three color zones
// and their high/low subsets. Derived once from configuration at boot.
//
// Derivation: zero-valued slots form the RED (loss) zone. The remaining
// slots, ordered by multiplier magnitude descending with ties broken by
// index, split in half — the stronger half is GREEN, the weaker half is
// YELLOW. Each of GREEN and YELLOW splits in half again the same way to
// form its high and low subsets. With the default nine-slot array
// [4, 2, 1.4, 0, 0.5, 0, 1.2, 1.5, 5] this yields RED {3,5},
// GREEN {8,0,1,7} (high {8,0}, low {1,7}) and YELLOW {2,6,4}
// (high {2,6}, low {4}).
type Zones struct {
	Multipliers []float64

	Red    []int
	Yellow []int
	Green  []int

	GreenHigh  []int
	GreenLow   []int
	YellowHigh []int
	YellowLow  []int
}

// DeriveZones partitions the multiplier array. Multipliers must have
// length ≥ 2 (enforced by config validation).
func DeriveZones(multipliers []float64) Zones {
	z := Zones{Multipliers: multipliers}

	var nonzero []int
	for i, m := range multipliers {
		if m == 0 {
			z.Red = append(z.Red, i)
		} else {
			nonzero = append(nonzero, i)
		}
	}

	// Order by magnitude descending, ties broken by index.
	sort.SliceStable(nonzero, func(a, b int) bool {
		if multipliers[nonzero[a]] != multipliers[nonzero[b]] {
			return multipliers[nonzero[a]] > multipliers[nonzero[b]]
		}
		return nonzero[a] < nonzero[b]
	})

	z.Green, z.Yellow = splitHalf(nonzero)
	z.GreenHigh, z.GreenLow = splitHalf(z.Green)
	z.YellowHigh, z.YellowLow = splitHalf(z.Yellow)
	return z
}

// splitHalf splits an ordered index list into its stronger first half
// (rounded up) and the remainder.
func splitHalf(ordered []int) (high, low []int) {
	if len(ordered) == 0 {
		return nil, nil
	}
	cut := (len(ordered) + 1) / 2
	return ordered[:cut], ordered[cut:]
}

// nonRed returns every winning-or-fractional index, used as the fallback
// when a requested zone is empty for a degenerate multiplier array.
func (z *Zones) nonRed() []int {
	out := make([]int, 0, len(z.Green)+len(z.Yellow))
	out = append(out, z.Green...)
	out = append(out, z.Yellow...)
	return out
}

// lowestIndex returns the index of the smallest multiplier, the fallback
// for a RED pick when the array has no zero slot.
func (z *Zones) lowestIndex() int {
	best := 0
	for i, m := range z.Multipliers {
		if m < z.Multipliers[best] {
			best = i
		}
	}
	return best
}
