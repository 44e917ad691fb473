package cycle

import (
	"time"

	"github.com/sanspareilsmyn/cyclelens/internal/series"
)

// DefaultCOPConstant converts BTU/hr to Watts.
const DefaultCOPConstant = 3.413

// Cycle is one contiguous ON interval of the power series, [Start, End).
type Cycle struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Midpoint returns Start + (End-Start)/2.
func (c Cycle) Midpoint() time.Time {
	return c.Start.Add(c.End.Sub(c.Start) / 2)
}

func (c Cycle) Duration() time.Duration {
	return c.End.Sub(c.Start)
}

// ExclusionWindow is a closed interval of known-bad sensor data.
type ExclusionWindow struct {
	Start  time.Time `json:"start" mapstructure:"start"`
	End    time.Time `json:"end" mapstructure:"end"`
	Reason string    `json:"reason,omitempty" mapstructure:"reason"`
}

// Contains reports whether Start <= t <= End.
func (w ExclusionWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Excluded reports whether t lies inside any of the windows.
func Excluded(windows []ExclusionWindow, t time.Time) bool {
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

// AuxSeries holds the auxiliary measurements read alongside power. Any series
// may be empty; the affected means come out NaN.
type AuxSeries struct {
	Heat     series.Series
	Flow     series.Series
	Entering series.Series
	Leaving  series.Series
	Outdoor  series.Series
}

// Params configures Aggregate.
type Params struct {
	// Extension lengthens the window used for heat and hence COP.
	Extension   time.Duration
	Exclusions  []ExclusionWindow
	COPConstant float64
	// Now is the reference instant for Record.Age.
	Now time.Time
	// Parallelism bounds the number of cycles aggregated concurrently. Values
	// below 2 aggregate sequentially.
	Parallelism int
}
