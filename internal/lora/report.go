package lora

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/cyclelens/internal/config"
	"github.com/sanspareilsmyn/cyclelens/internal/trim"
)

// Report is the success table for one window.
type Report struct {
	Since   time.Time       `json:"since"`
	Until   time.Time       `json:"until"`
	Skipped int             `json:"skipped_rows"`
	Devices []DeviceSummary `json:"devices"`
}

// Reporter builds reports from the gateway log on disk. The file is only
// read, never modified; the tail is extracted in memory.
type Reporter struct {
	path   string
	loc    *time.Location
	window time.Duration
	lowPct float64
	logger *zap.Logger
	now    func() time.Time
}

func NewReporter(cfg config.LoRaConfig, logger *zap.Logger) (*Reporter, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidLoRaTimezone, err)
	}
	return &Reporter{
		path:   cfg.File,
		loc:    loc,
		window: cfg.Window,
		lowPct: cfg.LowSuccessPct,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Report summarises the window ending now.
func (r *Reporter) Report(ctx context.Context) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := r.now().In(r.loc)
	since := now.Add(-r.window)

	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadLogFailed, err)
	}
	defer f.Close()

	// Start the extract on the first line of the window's first day; rows
	// are then filtered by timestamp. Without such a line the whole file is
	// scanned.
	var tail bytes.Buffer
	var src io.Reader = &tail
	_, err = trim.Lines(f, &tail, since.Format("2006-01-02"), "")
	switch {
	case errors.Is(err, trim.ErrStartNotFound):
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReadLogFailed, err)
		}
		src = f
	case errors.Is(err, trim.ErrEmptyFile):
		// No header, no rows.
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrReadLogFailed, err)
	}

	devices, skipped, err := Summarize(src, since, r.loc, r.lowPct)
	if err != nil {
		return nil, err
	}
	observe(devices)

	if skipped > 0 {
		r.logger.Warn("Skipped gateway rows with unreadable timestamps", zap.Int("rows", skipped))
	}
	r.logger.Debug("LoRa success report built",
		zap.Time("since", since),
		zap.Int("devices", len(devices)),
	)
	return &Report{Since: since, Until: now, Skipped: skipped, Devices: devices}, nil
}
