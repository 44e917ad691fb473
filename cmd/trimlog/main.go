// Command trimlog shortens a dated, line-oriented log in place or into a new
// file, keeping the header line and the last N days.
//
//	trimlog -in gateway.csv -days 7
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sanspareilsmyn/cyclelens/internal/config"
	"github.com/sanspareilsmyn/cyclelens/internal/logging"
	"github.com/sanspareilsmyn/cyclelens/internal/trim"
)

var (
	inFile   = flag.String("in", "", "Input file (required)")
	outFile  = flag.String("out", "", "Output file, defaults to the input file")
	days     = flag.Float64("days", 7, "Number of days to keep")
	filter   = flag.String("filter", "", "Keep only lines containing this substring")
	logLevel = flag.String("log-level", "info", "Log level")
)

func main() {
	flag.Parse()
	if *inFile == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *outFile == "" {
		*outFile = *inFile
	}

	logger, err := logging.NewLogger(config.LogConfig{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	sugar := logger.Sugar()

	now := time.Now()
	n, err := trim.File(*inFile, *outFile, *days, now, *filter)
	switch {
	case errors.Is(err, trim.ErrStartNotFound):
		sugar.Warnw("Start date not found, output left unchanged",
			"in", *inFile, "out", *outFile, "start", trim.StartDate(now, *days))
	case err != nil:
		sugar.Errorw("Trim failed", "in", *inFile, "error", err)
		_ = logger.Sync()
		os.Exit(1)
	default:
		sugar.Infow("File trimmed", "in", *inFile, "out", *outFile, "lines_kept", n)
	}
}
