package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/cyclelens/internal/message"
	"github.com/sanspareilsmyn/cyclelens/internal/series"
)

var b0 = time.Date(2021, 1, 10, 8, 0, 0, 0, time.UTC)

func reading(id string, min int, v float64) message.Reading {
	return message.Reading{SensorID: id, Time: b0.Add(time.Duration(min) * time.Minute), Value: v}
}

func TestBufferKeepsOrder(t *testing.T) {
	b := NewBuffer(testSensors, zap.NewNop())
	id := testSensors[series.Power]

	b.Append(reading(id, 0, 1))
	b.Append(reading(id, 2, 3))
	b.Append(reading(id, 1, 2)) // late
	b.Append(reading(id, 2, 4)) // duplicate timestamp
	b.Append(reading("someone_else", 0, 99))

	s, err := b.Series(context.Background(), series.Power, b0)
	require.NoError(t, err)
	require.NoError(t, series.Validate(s))
	vals := make([]float64, len(s))
	for i, smp := range s {
		vals[i] = smp.Value
	}
	assert.Equal(t, []float64{1, 2, 3, 4}, vals)
	assert.Equal(t, 5, b.Len())

	s, err = b.Series(context.Background(), series.Power, b0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Len(t, s, 2)
}

func TestBufferReturnsCopies(t *testing.T) {
	b := NewBuffer(testSensors, zap.NewNop())
	b.Append(reading(testSensors[series.Outdoor], 0, -5))

	s, err := b.Series(context.Background(), series.Outdoor, b0)
	require.NoError(t, err)
	s[0].Value = 100

	again, err := b.Series(context.Background(), series.Outdoor, b0)
	require.NoError(t, err)
	assert.Equal(t, -5.0, again[0].Value)
}

func TestBufferPrune(t *testing.T) {
	b := NewBuffer(testSensors, zap.NewNop())
	id := testSensors[series.Power]
	for m := 0; m < 10; m++ {
		b.Append(reading(id, m, float64(m)))
	}

	assert.Equal(t, 4, b.Prune(b0.Add(4*time.Minute)))
	assert.Equal(t, 6, b.Len())
	assert.Equal(t, 0, b.Prune(b0))
}

func TestBufferUnknownQuantity(t *testing.T) {
	b := NewBuffer(testSensors, zap.NewNop())
	_, err := b.Series(context.Background(), series.Heat, b0)
	require.ErrorIs(t, err, ErrUnknownQuantity)
}

func TestStaticReader(t *testing.T) {
	s := Static{series.Power: {{Time: b0, Value: 1}, {Time: b0.Add(time.Minute), Value: 2}}}
	got, err := s.Series(context.Background(), series.Power, b0.Add(30*time.Second))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Value)

	got, err = s.Series(context.Background(), series.Heat, b0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
