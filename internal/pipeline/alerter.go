package pipeline

import (
	"math"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/cyclelens/internal/config"
	"github.com/sanspareilsmyn/cyclelens/internal/cycle"
)

// Alerter checks freshly computed records against the configured COP bounds
// and publishes the latest cycle's figures as gauges. A COP outside the
// bounds usually points at a flow or heat meter fault rather than the heat
// pump itself.
type Alerter struct {
	bounds config.Bounds
	logger *zap.Logger
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(bounds config.Bounds, logger *zap.Logger) *Alerter {
	logger.Debug("Alerter initialized",
		zap.Bool("cop_min_set", bounds.Min != nil),
		zap.Bool("cop_max_set", bounds.Max != nil),
	)
	return &Alerter{bounds: bounds, logger: logger}
}

// Check inspects records and returns how many violated the bounds.
func (a *Alerter) Check(records []cycle.Record) int {
	violations := 0
	for _, r := range records {
		if a.checkCOP(r) {
			violations++
		}
	}
	a.updateLatest(records)
	return violations
}

func (a *Alerter) checkCOP(r cycle.Record) bool {
	if math.IsNaN(r.COP) {
		return false
	}
	if a.bounds.Min != nil && r.COP < *a.bounds.Min {
		a.warn(r, *a.bounds.Min, "<")
		return true
	}
	if a.bounds.Max != nil && r.COP > *a.bounds.Max {
		a.warn(r, *a.bounds.Max, ">")
		return true
	}
	return false
}

func (a *Alerter) warn(r cycle.Record, threshold float64, comparison string) {
	a.logger.Warn("COP outside plausibility bounds",
		zap.Time("cycle_start", r.Start),
		zap.Time("cycle_end", r.End),
		zap.Float64("cop", r.COP),
		zap.Float64("threshold", threshold),
		zap.String("comparison", comparison),
	)
	copViolations.WithLabelValues(comparison).Inc()
}

// updateLatest sets the latest-cycle gauges from the newest record that has
// the value defined; records are in ascending order.
func (a *Alerter) updateLatest(records []cycle.Record) {
	copSet, outSet := false, false
	for i := len(records) - 1; i >= 0 && !(copSet && outSet); i-- {
		r := records[i]
		if !copSet && !math.IsNaN(r.COP) {
			latestCOP.Set(r.COP)
			copSet = true
		}
		if !outSet && !math.IsNaN(r.Outdoor) {
			latestOutdoor.Set(r.Outdoor)
			outSet = true
		}
	}
}
