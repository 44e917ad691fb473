package source

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sanspareilsmyn/cyclelens/internal/config"
	"github.com/sanspareilsmyn/cyclelens/internal/series"
)

// Reader supplies time-ordered readings for one quantity from start onwards.
// An empty series with a nil error means the source has no readings.
type Reader interface {
	Series(ctx context.Context, q series.Quantity, start time.Time) (series.Series, error)
}

// Static is a Reader over fixed, in-memory series.
type Static map[series.Quantity]series.Series

func (s Static) Series(_ context.Context, q series.Quantity, start time.Time) (series.Series, error) {
	all, ok := s[q]
	if !ok {
		return nil, nil
	}
	i := sort.Search(len(all), func(i int) bool { return !all[i].Time.Before(start) })
	out := make(series.Series, len(all)-i)
	copy(out, all[i:])
	return out, nil
}

// SensorMap resolves quantities to the sensor ids used by a telemetry source.
type SensorMap map[series.Quantity]string

func (m SensorMap) lookup(q series.Quantity) (string, error) {
	id, ok := m[q]
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownQuantity, q)
	}
	return id, nil
}

// SensorsFromConfig builds the quantity to sensor id mapping.
func SensorsFromConfig(cfg config.SensorsConfig) SensorMap {
	m := make(SensorMap, len(series.Quantities))
	for _, q := range series.Quantities {
		m[q] = cfg.SensorID(q)
	}
	return m
}
