package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC)

func at(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }

func build(vals ...float64) Series {
	s := make(Series, len(vals))
	for i, v := range vals {
		s[i] = Sample{Time: at(i), Value: v}
	}
	return s
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(build(1, 2, 3)))

	dup := Series{{Time: at(0), Value: 1}, {Time: at(0), Value: 2}, {Time: at(1), Value: 3}}
	require.NoError(t, Validate(dup), "duplicate timestamps are allowed")

	err := Validate(nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, err, ErrEmptySeries)

	unordered := Series{{Time: at(1), Value: 1}, {Time: at(0), Value: 2}}
	err = Validate(unordered)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, err, ErrUnordered)
}

func TestWindowIsHalfOpen(t *testing.T) {
	s := build(0, 1, 2, 3, 4)

	w := Window(s, at(1), at(3))
	require.Len(t, w, 2)
	assert.Equal(t, 1.0, w[0].Value)
	assert.Equal(t, 2.0, w[1].Value)

	assert.Empty(t, Window(s, at(3), at(3)))
	assert.Empty(t, Window(s, at(4), at(2)))
	assert.Empty(t, Window(s, at(10), at(20)))
	assert.Len(t, Window(s, at(-5), at(50)), 5)
}

func TestWindowKeepsDuplicateTimestamps(t *testing.T) {
	s := Series{{Time: at(0), Value: 1}, {Time: at(1), Value: 2}, {Time: at(1), Value: 4}, {Time: at(2), Value: 8}}
	w := Window(s, at(1), at(2))
	require.Len(t, w, 2)
	assert.Equal(t, 3.0, Mean(w))
}

func TestMean(t *testing.T) {
	assert.Equal(t, 2.0, Mean(build(1, 2, 3)))
	assert.Equal(t, 2.0, Mean(build(1, math.NaN(), 3)), "NaN values are skipped")
	assert.True(t, math.IsNaN(Mean(nil)))
	assert.True(t, math.IsNaN(Mean(build(math.NaN(), math.NaN()))))
}

func TestStartEnd(t *testing.T) {
	s := build(1, 2, 3)
	assert.Equal(t, at(0), s.Start())
	assert.Equal(t, at(2), s.End())
	assert.True(t, Series(nil).Start().IsZero())
	assert.True(t, Series(nil).End().IsZero())
}

func TestInterpolateReplacesInteriorNaN(t *testing.T) {
	s := build(10, math.NaN(), math.NaN(), 40)
	out := Interpolate(s, 0)

	require.Len(t, out, 4)
	assert.InDelta(t, 20.0, out[1].Value, 1e-9)
	assert.InDelta(t, 30.0, out[2].Value, 1e-9)
	assert.Equal(t, at(1), out[1].Time)
	assert.True(t, math.IsNaN(s[1].Value), "input must not be modified")
}

func TestInterpolateLeavesEdgesAlone(t *testing.T) {
	s := build(math.NaN(), 5, math.NaN(), 7, math.NaN())
	out := Interpolate(s, 0)

	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0].Value))
	assert.InDelta(t, 6.0, out[2].Value, 1e-9)
	assert.True(t, math.IsNaN(out[4].Value))
}

func TestInterpolateAllNaN(t *testing.T) {
	s := build(math.NaN(), math.NaN())
	out := Interpolate(s, time.Minute)
	require.Len(t, out, 2)
	assert.True(t, math.IsNaN(out[0].Value))
}

func TestInterpolateFillsWideHoles(t *testing.T) {
	s := Series{{Time: at(0), Value: 0}, {Time: at(10), Value: 10}, {Time: at(12), Value: 12}}
	out := Interpolate(s, 5*time.Minute)

	require.Len(t, out, 4)
	assert.Equal(t, at(5), out[1].Time)
	assert.InDelta(t, 5.0, out[1].Value, 1e-9)
	assert.Equal(t, at(10), out[2].Time)
	assert.Equal(t, at(12), out[3].Time)
	require.NoError(t, Validate(out))
}

func TestInterpolateMixedNaNAndHoles(t *testing.T) {
	s := Series{
		{Time: at(0), Value: 0},
		{Time: at(6), Value: math.NaN()},
		{Time: at(20), Value: 20},
	}
	out := Interpolate(s, 5*time.Minute)

	times := make([]time.Time, len(out))
	for i, smp := range out {
		times[i] = smp.Time
		assert.InDelta(t, float64(smp.Time.Sub(t0)/time.Minute), smp.Value, 1e-9)
	}
	assert.Equal(t, []time.Time{at(0), at(5), at(6), at(11), at(16), at(20)}, times)
}

func TestTimestampsUnion(t *testing.T) {
	a := Series{{Time: at(0)}, {Time: at(2)}, {Time: at(2)}}
	b := Series{{Time: at(1)}, {Time: at(2)}, {Time: at(5)}}

	assert.Equal(t, []time.Time{at(0), at(1), at(2), at(5)}, Timestamps(a, b, nil))
	assert.Empty(t, Timestamps())
}

func TestResampleAcrossTimeGap(t *testing.T) {
	s := Series{{Time: at(0), Value: 10}, {Time: at(10), Value: 20}}
	out := Resample(s, []time.Time{at(-1), at(0), at(3), at(4), at(5), at(10), at(11)})

	require.Len(t, out, 7)
	assert.True(t, math.IsNaN(out[0].Value), "before the first sample")
	assert.Equal(t, 10.0, out[1].Value)
	assert.InDelta(t, 13.0, out[2].Value, 1e-9)
	assert.InDelta(t, 14.0, out[3].Value, 1e-9)
	assert.InDelta(t, 15.0, out[4].Value, 1e-9)
	assert.Equal(t, 20.0, out[5].Value)
	assert.True(t, math.IsNaN(out[6].Value), "after the last sample")
	assert.Equal(t, at(3), out[2].Time)
}

func TestResampleSkipsNaNSamples(t *testing.T) {
	s := build(10, math.NaN(), math.NaN(), 40)
	out := Resample(s, []time.Time{at(1), at(2)})

	assert.InDelta(t, 20.0, out[0].Value, 1e-9)
	assert.InDelta(t, 30.0, out[1].Value, 1e-9)
}

func TestResampleEmptySeries(t *testing.T) {
	out := Resample(nil, []time.Time{at(0)})
	require.Len(t, out, 1)
	assert.True(t, math.IsNaN(out[0].Value))
}
