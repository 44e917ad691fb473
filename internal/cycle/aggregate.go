package cycle

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sanspareilsmyn/cyclelens/internal/series"
)

// Aggregate turns each cycle into a Record, in cycle order. Cycles whose
// midpoint falls inside an exclusion window are dropped. Heat and power are
// also averaged over [Start, End+Extension) for the COP; every other mean uses
// [Start, End).
//
// Missing samples never fail the call: the affected fields are NaN.
func Aggregate(cycles []Cycle, power series.Series, aux AuxSeries, p Params) ([]Record, error) {
	if err := checkParams(cycles, power, aux, p); err != nil {
		return nil, err
	}

	slots := make([]*Record, len(cycles))
	build := func(i int) {
		c := cycles[i]
		if Excluded(p.Exclusions, c.Midpoint()) {
			return
		}
		rec := aggregateOne(c, power, aux, p)
		slots[i] = &rec
	}

	if p.Parallelism > 1 && len(cycles) > 1 {
		var g errgroup.Group
		g.SetLimit(p.Parallelism)
		for i := range cycles {
			g.Go(func() error {
				build(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range cycles {
			build(i)
		}
	}

	records := make([]Record, 0, len(cycles))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func aggregateOne(c Cycle, power series.Series, aux AuxSeries, p Params) Record {
	s, e := c.Start, c.End
	eExt := e.Add(p.Extension)
	mid := c.Midpoint()

	r := Record{
		Start:    s,
		End:      e,
		Midpoint: mid,
		Power:    series.Mean(series.Window(power, s, e)),
		PowerExt: series.Mean(series.Window(power, s, eExt)),
		Heat:     series.Mean(series.Window(aux.Heat, s, e)),
		HeatExt:  series.Mean(series.Window(aux.Heat, s, eExt)),
		Flow:     series.Mean(series.Window(aux.Flow, s, e)),
		Entering: series.Mean(series.Window(aux.Entering, s, e)),
		Leaving:  series.Mean(series.Window(aux.Leaving, s, e)),
		Outdoor:  series.Mean(series.Window(aux.Outdoor, s, e)),

		DurationMinutes: c.Duration().Minutes(),
		Age:             p.Now.Sub(mid),
	}
	r.COP = r.HeatExt / r.PowerExt / p.COPConstant
	r.HeatDeltaT = r.Leaving - r.Entering
	r.EnteringOutdoorDelta = r.Entering - r.Outdoor
	return r
}

func checkParams(cycles []Cycle, power series.Series, aux AuxSeries, p Params) error {
	if p.COPConstant <= 0 {
		return fmt.Errorf("%w: %w (%v)", series.ErrInvalidInput, ErrInvalidCOPConstant, p.COPConstant)
	}
	if p.Extension < 0 {
		return fmt.Errorf("%w: %w (%s)", series.ErrInvalidInput, ErrInvalidExtension, p.Extension)
	}
	for i, c := range cycles {
		if !c.Start.Before(c.End) {
			return fmt.Errorf("%w: %w: cycle %d ends before it starts", series.ErrInvalidInput, ErrInvalidCycles, i)
		}
		if i > 0 && c.Start.Before(cycles[i-1].End) {
			return fmt.Errorf("%w: %w: cycle %d overlaps cycle %d", series.ErrInvalidInput, ErrInvalidCycles, i, i-1)
		}
	}
	if len(cycles) == 0 {
		return nil
	}
	if err := series.Validate(power); err != nil {
		return fmt.Errorf("power: %w", err)
	}
	named := []struct {
		name string
		s    series.Series
	}{
		{"heat", aux.Heat}, {"flow", aux.Flow}, {"entering_t", aux.Entering},
		{"leaving_t", aux.Leaving}, {"out_t", aux.Outdoor},
	}
	for _, n := range named {
		if len(n.s) == 0 {
			continue
		}
		if err := series.Validate(n.s); err != nil {
			return fmt.Errorf("%s: %w", n.name, err)
		}
	}
	return nil
}
