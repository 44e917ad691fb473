package series

import (
	"math"
	"time"
)

// Interpolate fills gaps in s linearly in time. NaN values lying between two
// valid samples are replaced; leading and trailing NaN values are left as they
// are. When step is positive, samples are also inserted wherever two
// consecutive valid samples are more than step apart, so the returned series
// has no hole wider than step. s is not modified.
func Interpolate(s Series, step time.Duration) Series {
	out := make(Series, 0, len(s))
	prev := -1 // index in s of the last valid sample
	for i, smp := range s {
		if math.IsNaN(smp.Value) {
			continue
		}
		if prev >= 0 {
			out = appendBetween(out, s, prev, i, step)
		} else {
			out = append(out, s[:i]...)
		}
		out = append(out, smp)
		prev = i
	}
	if prev < 0 {
		return append(out, s...)
	}
	return append(out, s[prev+1:]...)
}

// appendBetween appends the interpolated replacements for s[a+1:b] and, with
// a positive step, the points needed to close any remaining wide hole.
func appendBetween(out Series, s Series, a, b int, step time.Duration) Series {
	left, right := s[a], s[b]
	last := left.Time
	for _, smp := range s[a+1 : b] {
		out = fillHole(out, left, right, last, smp.Time, step)
		out = append(out, Sample{Time: smp.Time, Value: lerp(left, right, smp.Time)})
		last = smp.Time
	}
	return fillHole(out, left, right, last, right.Time, step)
}

func fillHole(out Series, left, right Sample, from, to time.Time, step time.Duration) Series {
	if step <= 0 {
		return out
	}
	for t := from.Add(step); to.Sub(t) > 0 && to.Sub(from) > step; t = t.Add(step) {
		out = append(out, Sample{Time: t, Value: lerp(left, right, t)})
	}
	return out
}

func lerp(left, right Sample, t time.Time) float64 {
	span := right.Time.Sub(left.Time)
	if span <= 0 {
		return left.Value
	}
	frac := float64(t.Sub(left.Time)) / float64(span)
	return left.Value + frac*(right.Value-left.Value)
}
