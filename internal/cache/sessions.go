package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type sessionEntry struct {
	cache    *Cache
	lastUsed time.Time
}

// Sessions gives every session its own Cache. A single cache is never shared
// between sessions.
type Sessions struct {
	compute ComputeFunc
	logger  *zap.Logger
	now     func() time.Time

	mu   sync.Mutex
	byID map[string]*sessionEntry
}

func NewSessions(compute ComputeFunc, logger *zap.Logger) *Sessions {
	return &Sessions{
		compute: compute,
		logger:  logger,
		now:     time.Now,
		byID:    make(map[string]*sessionEntry),
	}
}

// Get returns the cache owned by id, creating it on first use.
func (s *Sessions) Get(id string) *Cache {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		e = &sessionEntry{cache: New(s.compute, s.logger.With(zap.String("session_id", id)))}
		s.byID[id] = e
		s.logger.Debug("Session cache created", zap.String("session_id", id))
	}
	e.lastUsed = s.now()
	return e.cache
}

// Drop forgets the cache owned by id.
func (s *Sessions) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many were
// dropped.
func (s *Sessions) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	dropped := 0
	for id, e := range s.byID {
		if e.lastUsed.Before(cutoff) {
			delete(s.byID, id)
			dropped++
		}
	}
	if dropped > 0 {
		s.logger.Debug("Idle sessions swept", zap.Int("dropped", dropped), zap.Int("remaining", len(s.byID)))
	}
	return dropped
}
