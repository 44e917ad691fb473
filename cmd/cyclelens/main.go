package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/sanspareilsmyn/cyclelens/internal/cache"
	"github.com/sanspareilsmyn/cyclelens/internal/config"
	"github.com/sanspareilsmyn/cyclelens/internal/logging"
	"github.com/sanspareilsmyn/cyclelens/internal/lora"
	"github.com/sanspareilsmyn/cyclelens/internal/pipeline"
	"github.com/sanspareilsmyn/cyclelens/internal/server"
	"github.com/sanspareilsmyn/cyclelens/internal/source"
	"github.com/sanspareilsmyn/cyclelens/internal/store"
)

var (
	configFile = flag.String("config", "configs/config.dev.yaml", "Path to the configuration file")
	logger     *zap.Logger
)

func main() {
	// Initialize Configuration
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration from %s: %v\n", *configFile, err)
		os.Exit(1)
	}

	// Initialize Logger
	var logErr error
	logger, logErr = logging.NewLogger(cfg.Log)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", logErr)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync() // Flush buffered logs on exit
	}()

	sugar := logger.Sugar()
	sugar.Infow("Logger initialized",
		"level", cfg.Log.Level,
		"format", cfg.Log.Format,
	)
	sugar.Infow("Configuration loaded successfully", "path", *configFile, "source", cfg.Source.Kind)

	// Handle Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := run(ctx, cfg)

	// Evaluate Run Result
	finalLogLevel := zapcore.InfoLevel
	shutdownReason := "gracefully"
	var finalErrorField = zap.Skip()

	switch {
	case runErr == nil:
		sugar.Info("CycleLens stopped without error.")
	case errors.Is(runErr, context.Canceled):
		sugar.Info("CycleLens cancelled (expected on shutdown).")
	default:
		shutdownReason = "due to error"
		finalLogLevel = zapcore.ErrorLevel
		finalErrorField = zap.Error(runErr)
	}

	logger.Log(finalLogLevel, fmt.Sprintf("CycleLens shutdown %s.", shutdownReason),
		zap.String("reason", shutdownReason),
		finalErrorField,
	)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	sensors := source.SensorsFromConfig(cfg.Sensors)

	// Setup that can fail runs before any goroutine starts, so an early
	// return never leaves a worker behind.
	var (
		opts    []pipeline.Option
		srvOpts []server.Option
	)
	if cfg.Redis.Enabled {
		pub, err := store.NewRedisPublisher(ctx, cfg.Redis, logger.Named("redis"))
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, pipeline.WithPublisher(pub))
		srvOpts = append(srvOpts, server.WithFallback(pub))
	}
	if cfg.LoRa.Enabled {
		rep, err := lora.NewReporter(cfg.LoRa, logger.Named("lora"))
		if err != nil {
			return fmt.Errorf("failed to initialize lora reporter: %w", err)
		}
		srvOpts = append(srvOpts, server.WithLoRa(rep))
	}

	// Select Source
	var (
		reader   source.Reader
		ingestor *pipeline.Ingestor
	)
	switch cfg.Source.Kind {
	case config.SourceKafka:
		buf := source.NewBuffer(sensors, logger.Named("buffer"))
		var err error
		ingestor, err = pipeline.NewIngestor(cfg.Kafka, buf, cfg.Source.Lookback, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize ingestor: %w", err)
		}
		reader = buf
	default:
		reader = source.NewHTTPReader(cfg.Source, sensors, logger.Named("source"))
	}

	// Initialize Pipeline
	pipe := pipeline.New(cfg, reader, logger, opts...)
	sessions := cache.NewSessions(pipe.Compute, logger.Named("cache"))
	srv := server.New(cfg.Server, cfg.Cycles, sessions, logger.Named("server"), srvOpts...)
	logger.Info("Pipeline initialized")

	g, ctx := errgroup.WithContext(ctx)
	if ingestor != nil {
		g.Go(func() error { return ingestor.Run(ctx) })
	}

	// Sweep Idle Sessions
	g.Go(func() error {
		ticker := time.NewTicker(max(cfg.Server.SessionMaxIdle/4, time.Second))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				sessions.Sweep(cfg.Server.SessionMaxIdle)
			}
		}
	})

	// Serve HTTP
	g.Go(func() error { return srv.Run(ctx) })

	return g.Wait()
}
