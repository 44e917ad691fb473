package source

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/cyclelens/internal/message"
	"github.com/sanspareilsmyn/cyclelens/internal/series"
)

// Buffer keeps readings received from the ingestion topic in memory, ordered
// per sensor, and serves them as a Reader.
type Buffer struct {
	sensors SensorMap
	logger  *zap.Logger

	mu       sync.RWMutex
	bySensor map[string]series.Series
}

func NewBuffer(sensors SensorMap, logger *zap.Logger) *Buffer {
	return &Buffer{
		sensors:  sensors,
		logger:   logger,
		bySensor: make(map[string]series.Series),
	}
}

// Append stores r, keeping the sensor's series time-ordered. Readings that
// arrive late are inserted after any reading with the same timestamp.
func (b *Buffer) Append(r message.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.bySensor[r.SensorID]
	smp := series.Sample{Time: r.Time, Value: r.Value}
	if n := len(s); n == 0 || !r.Time.Before(s[n-1].Time) {
		b.bySensor[r.SensorID] = append(s, smp)
		return
	}

	i := sort.Search(len(s), func(i int) bool { return s[i].Time.After(r.Time) })
	s = append(s, series.Sample{})
	copy(s[i+1:], s[i:])
	s[i] = smp
	b.bySensor[r.SensorID] = s
}

// Series implements Reader, returning a copy.
func (b *Buffer) Series(_ context.Context, q series.Quantity, start time.Time) (series.Series, error) {
	id, err := b.sensors.lookup(q)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.bySensor[id]
	i := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(start) })
	out := make(series.Series, len(s)-i)
	copy(out, s[i:])
	return out, nil
}

// Prune drops readings older than before and returns how many were dropped.
func (b *Buffer) Prune(before time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for id, s := range b.bySensor {
		i := sort.Search(len(s), func(i int) bool { return !s[i].Time.Before(before) })
		if i == 0 {
			continue
		}
		dropped += i
		b.bySensor[id] = append(series.Series(nil), s[i:]...)
	}
	if dropped > 0 {
		b.logger.Debug("Pruned buffered readings", zap.Int("dropped", dropped), zap.Time("before", before))
	}
	return dropped
}

// Len returns the number of buffered readings across all sensors.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, s := range b.bySensor {
		n += len(s)
	}
	return n
}
