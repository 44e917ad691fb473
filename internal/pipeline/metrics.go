package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	computeRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclelens_compute_runs_total",
			Help: "Total number of full segment and aggregate runs, by result.",
		},
		[]string{"result"}, // ok, error
	)
	computeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cyclelens_compute_duration_seconds",
			Help:    "Wall time of a full fetch, segment and aggregate run.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
	seriesSamples = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyclelens_series_samples",
			Help: "Number of samples fetched per quantity in the last run.",
		},
		[]string{"quantity"},
	)
	cyclesDetected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cyclelens_cycles_detected",
			Help: "Number of complete ON cycles found in the last run.",
		},
	)
	cyclesExcluded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cyclelens_cycles_excluded",
			Help: "Number of cycles dropped by exclusion windows in the last run.",
		},
	)
	recordMissingFields = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyclelens_record_missing_fields",
			Help: "Records of the last run whose field is NaN for lack of samples.",
		},
		[]string{"field"},
	)
	latestCOP = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cyclelens_latest_cycle_cop",
			Help: "COP of the most recent cycle with a defined COP.",
		},
	)
	latestOutdoor = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cyclelens_latest_cycle_outdoor_temperature",
			Help: "Mean outdoor temperature of the most recent cycle with a defined outdoor mean.",
		},
	)
	copViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclelens_cop_bound_violations_total",
			Help: "Cycles whose COP fell outside the configured plausibility bounds.",
		},
		[]string{"comparison"}, // <, >
	)
	ingestedReadings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclelens_ingested_readings_total",
			Help: "Readings taken off the ingestion topic, by result.",
		},
		[]string{"result"}, // stored, rejected
	)
)
