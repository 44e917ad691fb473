package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sanspareilsmyn/cyclelens/internal/config"
	"github.com/sanspareilsmyn/cyclelens/internal/cycle"
	"github.com/sanspareilsmyn/cyclelens/internal/series"
	"github.com/sanspareilsmyn/cyclelens/internal/source"
)

// Publisher receives every successfully computed record set.
type Publisher interface {
	Publish(ctx context.Context, records []cycle.Record) error
}

// Pipeline runs fetch -> interpolate -> segment -> aggregate as one
// synchronous call. It holds no results; caching belongs to the caller.
type Pipeline struct {
	reader    source.Reader
	source    config.SourceConfig
	cycles    config.CyclesConfig
	alerter   *Alerter
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithPublisher forwards each computed record set to pub.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithClock overrides the clock used for the fetch start and record ages.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New wires a Pipeline reading from reader.
func New(cfg *config.Config, reader source.Reader, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		reader:  reader,
		source:  cfg.Source,
		cycles:  cfg.Cycles,
		alerter: NewAlerter(cfg.Cycles.COPBounds, logger.Named("alerter")),
		logger:  logger.Named("pipeline"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger.Info("Pipeline created",
		zap.Float64("threshold_w", cfg.Cycles.Threshold),
		zap.Duration("extension", cfg.Cycles.Extension),
		zap.Float64("cop_constant", cfg.Cycles.COPConstant),
		zap.Int("exclusions", len(cfg.Cycles.Exclusions)),
		zap.Int("parallelism", cfg.Cycles.Parallelism),
	)
	return p
}

// Compute fetches every series and returns the ordered cycle records. Fetch
// failures and malformed power data are returned as errors; missing samples
// inside a cycle only produce NaN fields.
func (p *Pipeline) Compute(ctx context.Context) ([]cycle.Record, error) {
	started := time.Now()
	records, err := p.compute(ctx)
	computeDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		computeRuns.WithLabelValues("error").Inc()
		p.logger.Error("Cycle computation failed", zap.Error(err))
		return nil, err
	}
	computeRuns.WithLabelValues("ok").Inc()

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, records); err != nil {
			p.logger.Warn("Publishing records failed", zap.Error(err))
		}
	}
	return records, nil
}

func (p *Pipeline) compute(ctx context.Context) ([]cycle.Record, error) {
	now := p.now()
	start := p.source.Start(now)

	fetched, err := p.fetchAll(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchSeriesFailed, err)
	}
	power := fetched[series.Power]
	aux := cycle.AuxSeries{
		Heat:     fetched[series.Heat],
		Flow:     fetched[series.Flow],
		Entering: fetched[series.Entering],
		Leaving:  fetched[series.Leaving],
	}
	// Only the outdoor sensor is gap-filled. It is resampled onto every
	// timestamp the other sensors report so a cycle falling between two
	// outdoor readings still gets an interpolated value.
	outdoor := series.Interpolate(fetched[series.Outdoor], p.cycles.OutdoorGapStep)
	aux.Outdoor = series.Resample(outdoor,
		series.Timestamps(power, aux.Heat, aux.Flow, aux.Entering, aux.Leaving, outdoor))

	cycles, err := cycle.Segment(power, p.cycles.Threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSegmentFailed, err)
	}

	records, err := cycle.Aggregate(cycles, power, aux, cycle.Params{
		Extension:   p.cycles.Extension,
		Exclusions:  p.cycles.Exclusions,
		COPConstant: p.cycles.COPConstant,
		Now:         now,
		Parallelism: p.cycles.Parallelism,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAggregateFailed, err)
	}

	excluded := len(cycles) - len(records)
	cyclesDetected.Set(float64(len(cycles)))
	cyclesExcluded.Set(float64(excluded))
	p.countMissing(records)
	violations := p.alerter.Check(records)

	p.logger.Info("Cycles computed",
		zap.Time("start", start),
		zap.Int("power_samples", len(power)),
		zap.Time("power_first", power.Start()),
		zap.Time("power_last", power.End()),
		zap.Int("outdoor_samples", len(aux.Outdoor)),
		zap.Int("cycles", len(cycles)),
		zap.Int("excluded", excluded),
		zap.Int("records", len(records)),
		zap.Int("cop_violations", violations),
	)
	return records, nil
}

// fetchAll reads every quantity concurrently. The first failure cancels the
// remaining fetches.
func (p *Pipeline) fetchAll(ctx context.Context, start time.Time) (map[series.Quantity]series.Series, error) {
	var mu sync.Mutex
	out := make(map[series.Quantity]series.Series, len(series.Quantities))

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range series.Quantities {
		g.Go(func() error {
			s, err := p.reader.Series(gctx, q, start)
			if err != nil {
				return fmt.Errorf("%s: %w", q, err)
			}
			mu.Lock()
			out[q] = s
			mu.Unlock()
			seriesSamples.WithLabelValues(string(q)).Set(float64(len(s)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) countMissing(records []cycle.Record) {
	for _, name := range cycle.FieldNames() {
		n := 0
		for _, r := range records {
			if v, _ := r.Field(name); math.IsNaN(v) {
				n++
			}
		}
		recordMissingFields.WithLabelValues(name).Set(float64(n))
		if n > 0 {
			p.logger.Debug("Records with undefined field",
				zap.String("field", name),
				zap.Int("records", n),
			)
		}
	}
}
