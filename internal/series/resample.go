package series

import (
	"math"
	"sort"
	"time"
)

// Timestamps returns the sorted, de-duplicated union of the timestamps of
// every series given.
func Timestamps(all ...Series) []time.Time {
	n := 0
	for _, s := range all {
		n += len(s)
	}
	out := make([]time.Time, 0, n)
	for _, s := range all {
		for _, smp := range s {
			out = append(out, smp.Time)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	uniq := out[:0]
	for i, t := range out {
		if i > 0 && t.Equal(uniq[len(uniq)-1]) {
			continue
		}
		uniq = append(uniq, t)
	}
	return uniq
}

// Resample evaluates s at every timestamp in at, which must be sorted. Each
// value is interpolated linearly in time between the nearest valid samples of
// s on either side; an exact match takes the sample's value. Timestamps before
// the first or after the last valid sample get NaN.
func Resample(s Series, at []time.Time) Series {
	valid := make(Series, 0, len(s))
	for _, smp := range s {
		if !math.IsNaN(smp.Value) {
			valid = append(valid, smp)
		}
	}

	out := make(Series, len(at))
	j := 0 // first valid sample with Time > t
	for i, t := range at {
		for j < len(valid) && !valid[j].Time.After(t) {
			j++
		}
		v := math.NaN()
		switch {
		case j > 0 && valid[j-1].Time.Equal(t):
			v = valid[j-1].Value
		case j > 0 && j < len(valid):
			v = lerp(valid[j-1], valid[j], t)
		}
		out[i] = Sample{Time: t, Value: v}
	}
	return out
}
