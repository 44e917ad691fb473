package cycle

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanspareilsmyn/cyclelens/internal/series"
)

func constSeries(from, to int, v float64) series.Series {
	s := make(series.Series, 0, to-from)
	for m := from; m < to; m++ {
		s = append(s, series.Sample{Time: at(m), Value: v})
	}
	return s
}

func defaultParams() Params {
	return Params{
		COPConstant: DefaultCOPConstant,
		Now:         at(120),
	}
}

func fullAux(from, to int) AuxSeries {
	return AuxSeries{
		Heat:     constSeries(from, to, 3413),
		Flow:     constSeries(from, to, 2.5),
		Entering: constSeries(from, to, 95),
		Leaving:  constSeries(from, to, 105),
		Outdoor:  constSeries(from, to, 20),
	}
}

func TestAggregateDerivedFields(t *testing.T) {
	power := constSeries(0, 60, 1000)
	cycles := []Cycle{{Start: at(10), End: at(30)}}

	records, err := Aggregate(cycles, power, fullAux(0, 60), defaultParams())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.InDelta(t, 1.0, r.COP, 1e-9)
	assert.InDelta(t, 1000.0, r.Power, 1e-9)
	assert.InDelta(t, 10.0, r.HeatDeltaT, 1e-9)
	assert.InDelta(t, 75.0, r.EnteringOutdoorDelta, 1e-9)
	assert.InDelta(t, 20.0, r.DurationMinutes, 1e-9)
	assert.Equal(t, at(20), r.Midpoint)
	assert.Equal(t, 100*time.Minute, r.Age)
	assert.Equal(t, 2.5, r.Flow)
}

func TestAggregateExtensionOnlyAffectsCOP(t *testing.T) {
	// Power 1000 W inside the cycle, 0 W after; heat lags by a few minutes.
	power := append(constSeries(0, 10, 0), constSeries(10, 20, 1000)...)
	power = append(power, constSeries(20, 40, 0)...)
	heat := append(constSeries(0, 10, 0), constSeries(10, 20, 3413)...)
	heat = append(heat, constSeries(20, 25, 3413)...)
	heat = append(heat, constSeries(25, 40, 0)...)

	aux := fullAux(0, 40)
	aux.Heat = heat
	p := defaultParams()
	p.Extension = 5 * time.Minute

	records, err := Aggregate([]Cycle{{Start: at(10), End: at(20)}}, power, aux, p)
	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]

	assert.InDelta(t, 1000.0, r.Power, 1e-9)
	assert.InDelta(t, 1000.0*10/15, r.PowerExt, 1e-9)
	assert.InDelta(t, 3413.0, r.Heat, 1e-9)
	assert.InDelta(t, 3413.0, r.HeatExt, 1e-9)
	assert.InDelta(t, 1.5, r.COP, 1e-9)
	assert.InDelta(t, 10.0, r.DurationMinutes, 1e-9)
}

func TestAggregateMissingDataYieldsNaN(t *testing.T) {
	power := constSeries(0, 60, 1000)
	aux := fullAux(0, 60)
	// Flow sensor is silent during the second cycle.
	aux.Flow = append(constSeries(0, 20, 2.5), constSeries(45, 60, 2.5)...)

	cycles := []Cycle{{Start: at(5), End: at(15)}, {Start: at(25), End: at(35)}}
	records, err := Aggregate(cycles, power, aux, defaultParams())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 2.5, records[0].Flow)
	assert.True(t, math.IsNaN(records[1].Flow))
	assert.InDelta(t, 1.0, records[1].COP, 1e-9)
	assert.InDelta(t, 10.0, records[1].HeatDeltaT, 1e-9)
	assert.InDelta(t, 1000.0, records[1].Power, 1e-9)
}

func TestAggregateMissingHeatPropagatesIntoCOP(t *testing.T) {
	power := constSeries(0, 60, 1000)
	aux := fullAux(0, 60)
	aux.Heat = nil
	aux.Outdoor = nil

	records, err := Aggregate([]Cycle{{Start: at(5), End: at(15)}}, power, aux, defaultParams())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.True(t, math.IsNaN(r.Heat))
	assert.True(t, math.IsNaN(r.COP))
	assert.True(t, math.IsNaN(r.EnteringOutdoorDelta))
	assert.InDelta(t, 10.0, r.HeatDeltaT, 1e-9)
}

func TestAggregateExclusionBoundsAreInclusive(t *testing.T) {
	power := constSeries(0, 120, 1000)
	cycles := []Cycle{{Start: at(10), End: at(20)}, {Start: at(40), End: at(50)}}
	// Midpoints are at 15 and 45 minutes.
	tests := []struct {
		name   string
		window ExclusionWindow
		kept   []time.Time
	}{
		{"start on midpoint", ExclusionWindow{Start: at(15), End: at(30)}, []time.Time{at(45)}},
		{"end on midpoint", ExclusionWindow{Start: at(30), End: at(45)}, []time.Time{at(15)}},
		{"one unit before", ExclusionWindow{Start: at(15).Add(time.Nanosecond), End: at(30)}, []time.Time{at(15), at(45)}},
		{"one unit after", ExclusionWindow{Start: at(30), End: at(45).Add(-time.Nanosecond)}, []time.Time{at(15), at(45)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := defaultParams()
			p.Exclusions = []ExclusionWindow{tt.window}

			records, err := Aggregate(cycles, power, fullAux(0, 120), p)
			require.NoError(t, err)

			mids := make([]time.Time, len(records))
			for i, r := range records {
				mids[i] = r.Midpoint
			}
			assert.Equal(t, tt.kept, mids)
		})
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	power := minuteSeries(0, 150, 150, 0, 0, 200, 200, 200, 0, 0)
	aux := fullAux(0, 10)

	run := func(parallelism int) []Record {
		cycles, err := Segment(power, 120)
		require.NoError(t, err)
		p := defaultParams()
		p.Parallelism = parallelism
		records, err := Aggregate(cycles, power, aux, p)
		require.NoError(t, err)
		return records
	}

	first := run(1)
	require.Len(t, first, 2)
	assert.Equal(t, first, run(1))
	assert.Equal(t, first, run(4), "parallel aggregation must preserve order and values")
}

func TestAggregateRejectsBadCycles(t *testing.T) {
	power := constSeries(0, 60, 1000)
	aux := fullAux(0, 60)

	_, err := Aggregate([]Cycle{{Start: at(20), End: at(30)}, {Start: at(25), End: at(40)}}, power, aux, defaultParams())
	require.ErrorIs(t, err, series.ErrInvalidInput)
	require.ErrorIs(t, err, ErrInvalidCycles)

	_, err = Aggregate([]Cycle{{Start: at(30), End: at(40)}, {Start: at(5), End: at(10)}}, power, aux, defaultParams())
	require.ErrorIs(t, err, ErrInvalidCycles)

	_, err = Aggregate([]Cycle{{Start: at(30), End: at(30)}}, power, aux, defaultParams())
	require.ErrorIs(t, err, ErrInvalidCycles)
}

func TestAggregateRejectsBadParams(t *testing.T) {
	power := constSeries(0, 60, 1000)
	cycles := []Cycle{{Start: at(5), End: at(10)}}

	p := defaultParams()
	p.COPConstant = 0
	_, err := Aggregate(cycles, power, fullAux(0, 60), p)
	require.ErrorIs(t, err, ErrInvalidCOPConstant)

	p = defaultParams()
	p.Extension = -time.Minute
	_, err = Aggregate(cycles, power, fullAux(0, 60), p)
	require.ErrorIs(t, err, ErrInvalidExtension)

	aux := fullAux(0, 60)
	aux.Leaving = series.Series{{Time: at(3), Value: 1}, {Time: at(1), Value: 1}}
	_, err = Aggregate(cycles, power, aux, defaultParams())
	require.ErrorIs(t, err, series.ErrInvalidInput)
}

func TestAggregateNoCycles(t *testing.T) {
	records, err := Aggregate(nil, nil, AuxSeries{}, defaultParams())
	require.NoError(t, err)
	assert.Empty(t, records)
}
