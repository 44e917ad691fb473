package lora

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Columns read from the gateway reception log. Other columns are ignored.
const (
	colTimestamp = "ts"
	colDevice    = "dev_id"
	colDataRate  = "data_rate"
	colCounter   = "counter"
)

var tsLayouts = []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", time.RFC3339}

// DeviceSummary describes one sensor's transmissions inside the report
// window. Every transmission carries an incrementing frame counter, so the
// counter span gives the number sent and the distinct counters seen give the
// number received. A sensor reboot resets the counter and distorts the rate.
type DeviceSummary struct {
	DevID        string   `json:"dev_id"`
	LastDataRate string   `json:"last_data_rate"`
	CounterFirst int64    `json:"counter_first"`
	CounterLast  int64    `json:"counter_last"`
	Expected     int64    `json:"expected"`
	Received     int      `json:"received"`
	SuccessPct   *float64 `json:"success_pct"` // nil when the counter went backwards
	Low          bool     `json:"low"`
}

type deviceAcc struct {
	dataRate   string
	first      int64
	last       int64
	hasCounter bool
	counters   map[int64]struct{}
}

// Summarize reads a tab-separated gateway log with a header row and
// summarises every device's rows with a timestamp at or after since.
// Timestamps without a zone are read in loc. Rows with an unreadable
// timestamp are skipped. Devices are returned sorted by id; a success rate
// below lowPct marks the device Low.
func Summarize(r io.Reader, since time.Time, loc *time.Location, lowPct float64) ([]DeviceSummary, int, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []DeviceSummary{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrReadLogFailed, err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, 0, err
	}

	accs := make(map[string]*deviceAcc)
	skipped := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("%w: %w", ErrReadLogFailed, err)
		}
		field := func(name string) string {
			if i := idx[name]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		ts, ok := parseTimestamp(field(colTimestamp), loc)
		if !ok {
			skipped++
			continue
		}
		if ts.Before(since) {
			continue
		}

		dev := field(colDevice)
		acc, ok := accs[dev]
		if !ok {
			acc = &deviceAcc{counters: make(map[int64]struct{})}
			accs[dev] = acc
		}
		if dr := field(colDataRate); dr != "" {
			acc.dataRate = dr
		}
		if c, ok := parseCounter(field(colCounter)); ok {
			if !acc.hasCounter {
				acc.first = c
				acc.hasCounter = true
			}
			acc.last = c
			acc.counters[c] = struct{}{}
		}
	}

	out := make([]DeviceSummary, 0, len(accs))
	for dev, acc := range accs {
		out = append(out, acc.summary(dev, lowPct))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DevID < out[j].DevID })
	return out, skipped, nil
}

func (a *deviceAcc) summary(dev string, lowPct float64) DeviceSummary {
	s := DeviceSummary{
		DevID:        dev,
		LastDataRate: strings.ReplaceAll(a.dataRate, ".0", ""),
		CounterFirst: a.first,
		CounterLast:  a.last,
		Received:     len(a.counters),
	}
	if !a.hasCounter {
		return s
	}
	s.Expected = a.last - a.first + 1
	if s.Expected <= 0 {
		return s
	}
	pct := math.Round(float64(s.Received)/float64(s.Expected)*1000) / 10
	s.SuccessPct = &pct
	s.Low = pct < lowPct
	return s
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, want := range []string{colTimestamp, colDevice, colDataRate, colCounter} {
		if _, ok := idx[want]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, want)
		}
	}
	return idx, nil
}

func parseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	for _, layout := range tsLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseCounter accepts integral counters written as floats ("17.0").
func parseCounter(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	if c, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return c, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
