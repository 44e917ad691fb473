package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/cyclelens/internal/config"
	"github.com/sanspareilsmyn/cyclelens/internal/message"
)

const (
	channelBufferSize = 100
	pruneInterval     = time.Minute
)

// ReadingSink stores parsed readings; source.Buffer implements it.
type ReadingSink interface {
	Append(r message.Reading)
	Prune(before time.Time) int
}

// Ingestor moves readings from the Kafka topic into a ReadingSink:
// consumer -> parser -> sink. Readings older than the retention are pruned
// periodically.
type Ingestor struct {
	consumer  *Consumer
	sink      ReadingSink
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time

	rawMessages chan []byte
}

// NewIngestor wires a Kafka consumer in front of sink.
func NewIngestor(cfg config.KafkaConfig, sink ReadingSink, retention time.Duration, logger *zap.Logger) (*Ingestor, error) {
	raw := make(chan []byte, channelBufferSize)
	consumer, err := NewConsumer(cfg, raw, logger.Named("consumer"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConsumerCreationFailed, err)
	}
	return newIngestor(consumer, raw, sink, retention, logger), nil
}

func newIngestor(consumer *Consumer, raw chan []byte, sink ReadingSink, retention time.Duration, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		consumer:    consumer,
		sink:        sink,
		retention:   retention,
		logger:      logger.Named("ingest"),
		now:         time.Now,
		rawMessages: raw,
	}
}

// Run starts the consumer and parser goroutines and waits for both. It
// returns nil on cancellation.
func (in *Ingestor) Run(ctx context.Context) error {
	sugar := in.logger.Sugar()
	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	sugar.Info("Ingestor Run: Starting components...")
	wg.Add(2)
	go in.runConsumer(ctx, &wg, errCh)
	go in.runParser(ctx, &wg)

	wg.Wait()
	sugar.Info("Ingestor Run: All components finished.")

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func (in *Ingestor) runConsumer(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer close(in.rawMessages)

	if err := in.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		in.logger.Error("Consumer component exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrConsumerRunFailed, err)
		return
	}
	in.logger.Debug("Consumer goroutine finished")
}

// runParser drains raw messages into the sink until the channel closes.
func (in *Ingestor) runParser(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	parserLogger := in.logger.Named("parser").Sugar()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case raw, ok := <-in.rawMessages:
			if !ok {
				parserLogger.Debug("Parser finished (raw message channel closed).")
				return
			}
			in.store(parserLogger, raw)

		case <-ticker.C:
			in.prune()

		case <-ctx.Done():
			parserLogger.Debugw("Parser context cancelled.", "error", ctx.Err())
			// Keep draining so the consumer never blocks on a full channel.
			for raw := range in.rawMessages {
				in.store(parserLogger, raw)
			}
			return
		}
	}
}

func (in *Ingestor) store(sugar *zap.SugaredLogger, raw []byte) {
	r, err := message.ParseReading(raw)
	if err != nil {
		ingestedReadings.WithLabelValues("rejected").Inc()
		sugar.Warnw("Failed to parse reading, skipping", zap.Error(err))
		return
	}
	in.sink.Append(r)
	ingestedReadings.WithLabelValues("stored").Inc()
}

func (in *Ingestor) prune() {
	if in.retention <= 0 {
		return
	}
	in.sink.Prune(in.now().Add(-in.retention))
}
