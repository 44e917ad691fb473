package cycle

import (
	"github.com/sanspareilsmyn/cyclelens/internal/series"
)

// Segment splits power into ON cycles. A sample is ON when its value is
// strictly greater than threshold.
//
// Boundary detection starts at the second sample: the first sample is never a
// boundary, whatever its state. A cycle already running when the series
// starts has no observed start and is dropped, and so is one still running
// when the series ends. Pairs whose start and end share a timestamp (possible
// with duplicate timestamps) are dropped as they bound no time.
func Segment(power series.Series, threshold float64) ([]Cycle, error) {
	if err := series.Validate(power); err != nil {
		return nil, err
	}

	boundaries := make([]int, 0)
	prevOn := power[0].Value > threshold
	for i := 1; i < len(power); i++ {
		on := power[i].Value > threshold
		if on != prevOn {
			boundaries = append(boundaries, i)
		}
		prevOn = on
	}
	if len(boundaries) == 0 {
		return nil, nil
	}

	// First boundary turning OFF closes a cycle with no observed start.
	if !(power[boundaries[0]].Value > threshold) {
		boundaries = boundaries[1:]
	}
	// Last boundary turning ON opens a cycle with no observed end.
	if n := len(boundaries); n > 0 && power[boundaries[n-1]].Value > threshold {
		boundaries = boundaries[:n-1]
	}

	cycles := make([]Cycle, 0, len(boundaries)/2)
	for k := 0; k+1 < len(boundaries); k += 2 {
		c := Cycle{Start: power[boundaries[k]].Time, End: power[boundaries[k+1]].Time}
		if !c.Start.Before(c.End) {
			continue
		}
		cycles = append(cycles, c)
	}
	return cycles, nil
}
