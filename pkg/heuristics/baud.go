package heuristics

import (
	"math"
	"sort"
)

// CommonBauds lists the standard rates, in preference order. The host UART
// probe tries them in this order and the edge estimator snaps to them.
var CommonBauds = []int{115200, 57600, 38400, 19200, 9600}

// snapTolerance is the maximum relative distance between the raw estimate
// and the snapped rate.
const snapTolerance = 0.4

// EstimateBaud derives a baud rate from edge intervals given in microseconds.
//
// The intervals are sorted and the element at len/2 is taken as the bit
// period. For even lengths that is the upper-middle element, not the mean of
// the two middle values. The resulting rate is snapped to the nearest entry of
// CommonBauds and accepted only if it lies within 40% of it.
func EstimateBaud(edges []float64) (int, bool) {
	if len(edges) == 0 {
		return 0, false
	}

	sorted := append([]float64(nil), edges...)
	sort.Float64s(sorted)

	median := sorted[len(sorted)/2]
	if median <= 0 || math.IsNaN(median) || math.IsInf(median, 0) {
		return 0, false
	}

	estimate := int(math.Round(1_000_000 / median))

	snap := CommonBauds[0]
	best := absInt(snap - estimate)
	for _, b := range CommonBauds[1:] {
		if d := absInt(b - estimate); d < best {
			snap, best = b, d
		}
	}

	if float64(best)/float64(snap) >= snapTolerance {
		return 0, false
	}
	return snap, true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
