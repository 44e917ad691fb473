package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/cyclelens/internal/config"
	"github.com/sanspareilsmyn/cyclelens/internal/cycle"
	"github.com/sanspareilsmyn/cyclelens/internal/series"
	"github.com/sanspareilsmyn/cyclelens/internal/source"
)

var p0 = time.Date(2021, 2, 1, 6, 0, 0, 0, time.UTC)

func pmin(m int) time.Time { return p0.Add(time.Duration(m) * time.Minute) }

func minutes(vals ...float64) series.Series {
	s := make(series.Series, len(vals))
	for i, v := range vals {
		s[i] = series.Sample{Time: pmin(i), Value: v}
	}
	return s
}

func flat(n int, v float64) series.Series {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = v
	}
	return minutes(vals...)
}

func testConfig() *config.Config {
	return &config.Config{
		Source: config.SourceConfig{StartTime: p0},
		Cycles: config.CyclesConfig{
			Threshold:   120,
			COPConstant: cycle.DefaultCOPConstant,
			Parallelism: 2,
		},
	}
}

func fixedClock() time.Time { return pmin(60) }

func testReader() source.Static {
	return source.Static{
		series.Power:    minutes(0, 1000, 1000, 1000, 1000, 0, 0, 0, 1000, 1000, 0, 0),
		series.Heat:     flat(12, 3413),
		series.Flow:     flat(12, 3),
		series.Entering: flat(12, 100),
		series.Leaving:  flat(12, 110),
		series.Outdoor:  minutes(10, math.NaN(), math.NaN(), 16, 18, 20, 20, 20, 20, 20, 20, 20),
	}
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls [][]cycle.Record
	err   error
}

func (r *recordingPublisher) Publish(_ context.Context, records []cycle.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, records)
	return r.err
}

func TestComputeEndToEnd(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	p := New(testConfig(), testReader(), zap.NewNop(), WithClock(fixedClock), WithPublisher(pub))

	records, err := p.Compute(context.Background())
	require.NoError(t, err, "publisher failures must not fail the computation")
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, pmin(1), first.Start)
	assert.Equal(t, pmin(5), first.End)
	assert.InDelta(t, 1.0, first.COP, 1e-9)
	assert.InDelta(t, 10.0, first.HeatDeltaT, 1e-9)
	// Outdoor readings at minutes 1 and 2 are interpolated to 12 and 14.
	assert.InDelta(t, (12.0+14+16+18)/4, first.Outdoor, 1e-9)
	assert.Equal(t, 4.0, first.DurationMinutes)
	assert.Equal(t, pmin(60).Sub(pmin(3)), first.Age)

	assert.Equal(t, pmin(8), records[1].Start)
	assert.Equal(t, pmin(10), records[1].End)

	require.Len(t, pub.calls, 1)
	assert.Len(t, pub.calls[0], 2)
}

func TestComputeInterpolatesOutdoorAcrossTimeGap(t *testing.T) {
	reader := testReader()
	reader[series.Power] = minutes(0, 0, 0, 1000, 1000, 1000, 0, 0, 0, 0, 0)
	reader[series.Outdoor] = series.Series{
		{Time: pmin(0), Value: 10},
		{Time: pmin(10), Value: 20},
	}

	for _, step := range []time.Duration{0, 5 * time.Minute} {
		cfg := testConfig()
		cfg.Cycles.OutdoorGapStep = step
		p := New(cfg, reader, zap.NewNop(), WithClock(fixedClock))

		records, err := p.Compute(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 1)
		rec := records[0]
		assert.Equal(t, pmin(3), rec.Start)
		assert.Equal(t, pmin(6), rec.End)
		// Resampled at minutes 3, 4 and 5: 13, 14 and 15.
		assert.InDelta(t, 14.0, rec.Outdoor, 1e-9, "step %s", step)
		assert.InDelta(t, 100.0-14.0, rec.EnteringOutdoorDelta, 1e-9, "step %s", step)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	p := New(testConfig(), testReader(), zap.NewNop(), WithClock(fixedClock))

	first, err := p.Compute(context.Background())
	require.NoError(t, err)
	second, err := p.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeAppliesExclusions(t *testing.T) {
	cfg := testConfig()
	cfg.Cycles.Exclusions = []cycle.ExclusionWindow{{Start: pmin(3), End: pmin(3), Reason: "sensor swap"}}
	p := New(cfg, testReader(), zap.NewNop(), WithClock(fixedClock))

	records, err := p.Compute(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, pmin(8), records[0].Start)
}

func TestComputeMissingAuxSeriesGivesNaN(t *testing.T) {
	reader := testReader()
	delete(reader, series.Flow)
	p := New(testConfig(), reader, zap.NewNop(), WithClock(fixedClock))

	records, err := p.Compute(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, math.IsNaN(records[0].Flow))
	assert.InDelta(t, 1.0, records[0].COP, 1e-9)
}

func TestComputeEmptyPowerIsInvalidInput(t *testing.T) {
	reader := testReader()
	delete(reader, series.Power)
	p := New(testConfig(), reader, zap.NewNop(), WithClock(fixedClock))

	_, err := p.Compute(context.Background())
	require.ErrorIs(t, err, series.ErrInvalidInput)
	require.ErrorIs(t, err, ErrSegmentFailed)
}

type failingReader struct {
	source.Static
	failOn series.Quantity
}

func (f failingReader) Series(ctx context.Context, q series.Quantity, start time.Time) (series.Series, error) {
	if q == f.failOn {
		return nil, source.ErrFetchFailed
	}
	return f.Static.Series(ctx, q, start)
}

func TestComputeFetchFailurePropagates(t *testing.T) {
	p := New(testConfig(), failingReader{Static: testReader(), failOn: series.Leaving}, zap.NewNop(), WithClock(fixedClock))

	_, err := p.Compute(context.Background())
	require.ErrorIs(t, err, ErrFetchSeriesFailed)
	require.ErrorIs(t, err, source.ErrFetchFailed)
}

func TestAlerterCountsViolations(t *testing.T) {
	lo, hi := 1.5, 5.0
	a := NewAlerter(config.Bounds{Min: &lo, Max: &hi}, zap.NewNop())

	records := []cycle.Record{{COP: 1.0}, {COP: 3.0}, {COP: 6.0}, {COP: math.NaN()}}
	assert.Equal(t, 2, a.Check(records))

	unbounded := NewAlerter(config.Bounds{}, zap.NewNop())
	assert.Equal(t, 0, unbounded.Check(records))
}
