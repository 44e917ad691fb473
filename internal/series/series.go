package series

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Quantity names one monitored physical quantity.
type Quantity string

const (
	Power    Quantity = "power"
	Heat     Quantity = "heat"
	Flow     Quantity = "flow"
	Entering Quantity = "entering_t"
	Leaving  Quantity = "leaving_t"
	Outdoor  Quantity = "out_t"
)

// Quantities lists every quantity the cycle pipeline reads, power first.
var Quantities = []Quantity{Power, Heat, Flow, Entering, Leaving, Outdoor}

// Sample is a single timestamped reading.
type Sample struct {
	Time  time.Time `json:"ts"`
	Value float64   `json:"val"`
}

// Series is an ordered sequence of samples for one quantity. Timestamps are
// non-decreasing and may repeat.
type Series []Sample

// Validate reports whether s is non-empty and time-ordered. Failures wrap
// ErrInvalidInput.
func Validate(s Series) error {
	if len(s) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, ErrEmptySeries)
	}
	for i := 1; i < len(s); i++ {
		if s[i].Time.Before(s[i-1].Time) {
			return fmt.Errorf("%w: %w at index %d (%s < %s)", ErrInvalidInput, ErrUnordered,
				i, s[i].Time.Format(time.RFC3339), s[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Window returns the samples with from <= t < to. The result shares storage
// with s.
func Window(s Series, from, to time.Time) Series {
	if !from.Before(to) {
		return nil
	}
	lo := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(from) })
	hi := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(to) })
	if lo >= hi {
		return nil
	}
	return s[lo:hi]
}

// Mean is the arithmetic mean of the non-NaN values in s, or NaN when there
// are none.
func Mean(s Series) float64 {
	var sum float64
	var n int
	for _, smp := range s {
		if math.IsNaN(smp.Value) {
			continue
		}
		sum += smp.Value
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Start and End return the first and last timestamps, zero for an empty series.
func (s Series) Start() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[0].Time
}

func (s Series) End() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Time
}
