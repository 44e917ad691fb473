package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/cyclelens/internal/config"
	"github.com/sanspareilsmyn/cyclelens/internal/series"
)

const readingsPath = "/api/v2/readings/"

// startLayout is the start_ts format the readings API expects.
const startLayout = "2006-01-02 15:04:05"

// readingsResponse is the readings API payload: two parallel arrays, values
// may be null.
type readingsResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    struct {
		TS  []string   `json:"ts"`
		Val []*float64 `json:"val"`
	} `json:"data"`
}

// HTTPReader fetches readings from a BMON-style HTTP API. Calls go through a
// circuit breaker so a dead server fails fast instead of stalling every
// refresh. It never retries.
type HTTPReader struct {
	baseURL string
	sensors SensorMap
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewHTTPReader creates an HTTPReader for the configured server.
func NewHTTPReader(cfg config.SourceConfig, sensors SensorMap, logger *zap.Logger) *HTTPReader {
	bc := cfg.Breaker
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "telemetry-http",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return bc.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= bc.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	logger.Info("HTTP telemetry reader created",
		zap.String("base_url", cfg.BaseURL),
		zap.Duration("timeout", cfg.Timeout),
		zap.Uint32("breaker_consecutive_failures", bc.ConsecutiveFailures),
	)

	return &HTTPReader{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		sensors: sensors,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Series implements Reader. Fetch failures wrap both ErrFetchFailed and
// series.ErrInvalidInput.
func (r *HTTPReader) Series(ctx context.Context, q series.Quantity, start time.Time) (series.Series, error) {
	sensorID, err := r.sensors.lookup(q)
	if err != nil {
		return nil, err
	}

	res, err := r.breaker.Execute(func() (interface{}, error) {
		return r.fetch(ctx, sensorID, start)
	})
	if err != nil {
		r.logger.Warn("Telemetry fetch failed",
			zap.String("quantity", string(q)),
			zap.String("sensor_id", sensorID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w: %s: %w", series.ErrInvalidInput, ErrFetchFailed, sensorID, err)
	}

	s := res.(series.Series)
	r.logger.Debug("Telemetry series fetched",
		zap.String("quantity", string(q)),
		zap.String("sensor_id", sensorID),
		zap.Int("samples", len(s)),
	)
	return s, nil
}

func (r *HTTPReader) fetch(ctx context.Context, sensorID string, start time.Time) (series.Series, error) {
	q := url.Values{}
	q.Set("sensor_id", sensorID)
	q.Set("start_ts", start.UTC().Format(startLayout))
	endpoint := r.baseURL + readingsPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var payload readingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return decodeReadings(payload)
}

func decodeReadings(p readingsResponse) (series.Series, error) {
	if p.Status != "" && p.Status != "success" {
		return nil, fmt.Errorf("%w: status %q: %s", ErrBadResponse, p.Status, p.Message)
	}
	if len(p.Data.TS) != len(p.Data.Val) {
		return nil, fmt.Errorf("%w: %d timestamps but %d values", ErrBadResponse, len(p.Data.TS), len(p.Data.Val))
	}

	out := make(series.Series, len(p.Data.TS))
	for i, raw := range p.Data.TS {
		ts, err := parseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
		}
		v := math.NaN()
		if p.Data.Val[i] != nil {
			v = *p.Data.Val[i]
		}
		out[i] = series.Sample{Time: ts, Value: v}
	}
	if len(out) > 0 {
		if err := series.Validate(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, startLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", raw)
}
