package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/sanspareilsmyn/cyclelens/internal/cycle"
	"github.com/sanspareilsmyn/cyclelens/internal/series"
)

const (
	defaultServerAddr         = ":8080"
	defaultServerReadTimeout  = 10 * time.Second
	defaultServerWriteTimeout = 60 * time.Second
	defaultSessionMaxIdle     = 2 * time.Hour
	defaultSourceKind         = SourceHTTP
	defaultSourceTimeout      = 30 * time.Second
	defaultSourceLookback     = 30 * 24 * time.Hour
	defaultBreakerMaxRequests = 1
	defaultBreakerInterval    = time.Minute
	defaultBreakerTimeout     = 30 * time.Second
	defaultBreakerFailures    = 3
	defaultThreshold          = 120.0
	defaultExtension          = 5 * time.Minute
	defaultOutdoorGapStep     = 0
	defaultParallelism        = 4
	defaultRecencyHalfLife    = 7 * 24 * time.Hour
	defaultKafkaGroupID       = "cyclelens-default-group"
	defaultRedisKey           = "cyclelens:records"
	defaultRedisTTL           = time.Hour
	defaultLoRaFile           = "lora-data/gateways.tsv"
	defaultLoRaTimezone       = "America/Anchorage"
	defaultLoRaWindow         = 24 * time.Hour
	defaultLoRaLowSuccessPct  = 90.0
	defaultLogLevel           = "info"
	defaultLogFormat          = "console"
	defaultLogFileEnabled     = false
	defaultLogDirectory       = "log"
	defaultLogFilename        = "cyclelens.log"
	defaultLogMaxSizeMB       = 100
	defaultLogMaxBackups      = 3
	defaultLogMaxAgeDays      = 7
	defaultLogCompress        = false

	// Environment variable prefix
	envPrefix = "CYCLELENS"
)

// Source kinds.
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Source  SourceConfig  `mapstructure:"source"`
	Sensors SensorsConfig `mapstructure:"sensors"`
	Cycles  CyclesConfig  `mapstructure:"cycles"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Redis   RedisConfig   `mapstructure:"redis"`
	LoRa    LoRaConfig    `mapstructure:"lora"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	SessionMaxIdle time.Duration `mapstructure:"sessionMaxIdle"`
}

type SourceConfig struct {
	Kind      string        `mapstructure:"kind"` // "http" or "kafka"
	BaseURL   string        `mapstructure:"baseURL"`
	Timeout   time.Duration `mapstructure:"timeout"`
	StartTime time.Time     `mapstructure:"startTime"` // fixed start, wins over lookback
	Lookback  time.Duration `mapstructure:"lookback"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"maxRequests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutiveFailures"`
}

// SensorsConfig maps each quantity onto the telemetry source's sensor id.
type SensorsConfig struct {
	Power    string `mapstructure:"power"`
	Heat     string `mapstructure:"heat"`
	Flow     string `mapstructure:"flow"`
	Entering string `mapstructure:"entering"`
	Leaving  string `mapstructure:"leaving"`
	Outdoor  string `mapstructure:"outdoor"`
}

type CyclesConfig struct {
	Threshold       float64                 `mapstructure:"threshold"` // W, ON when power > threshold
	Extension       time.Duration           `mapstructure:"extension"`
	COPConstant     float64                 `mapstructure:"copConstant"`
	OutdoorGapStep  time.Duration           `mapstructure:"outdoorGapStep"`
	Parallelism     int                     `mapstructure:"parallelism"`
	RecencyHalfLife time.Duration           `mapstructure:"recencyHalfLife"`
	Exclusions      []cycle.ExclusionWindow `mapstructure:"exclusions"`
	COPBounds       Bounds                  `mapstructure:"copBounds"`
}

// Bounds are optional plausibility limits; a nil side is unchecked.
type Bounds struct {
	Min *float64 `mapstructure:"min"`
	Max *float64 `mapstructure:"max"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"groupID"`
}

type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	Key     string        `mapstructure:"key"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// LoRaConfig points at the gateway reception log behind the sensor success
// report. Timestamps in the file are local to Timezone.
type LoRaConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	File          string        `mapstructure:"file"`
	Timezone      string        `mapstructure:"timezone"`
	Window        time.Duration `mapstructure:"window"`
	LowSuccessPct float64       `mapstructure:"lowSuccessPct"`
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`   // Compress rotated files?
}

// SensorID returns the sensor id configured for q.
func (s SensorsConfig) SensorID(q series.Quantity) string {
	switch q {
	case series.Power:
		return s.Power
	case series.Heat:
		return s.Heat
	case series.Flow:
		return s.Flow
	case series.Entering:
		return s.Entering
	case series.Leaving:
		return s.Leaving
	case series.Outdoor:
		return s.Outdoor
	}
	return ""
}

// Start returns the first timestamp to fetch, relative to now when no fixed
// start is configured.
func (s SourceConfig) Start(now time.Time) time.Time {
	if !s.StartTime.IsZero() {
		return s.StartTime
	}
	return now.Add(-s.Lookback)
}

// Load initializes viper, reads config, applies defaults, unmarshals, and validates.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)

	setDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// configureViper sets up viper instance for file and environment variables.
func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults applies default configuration values using Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", defaultServerAddr)
	v.SetDefault("server.readTimeout", defaultServerReadTimeout)
	v.SetDefault("server.writeTimeout", defaultServerWriteTimeout)
	v.SetDefault("server.sessionMaxIdle", defaultSessionMaxIdle)
	v.SetDefault("source.kind", defaultSourceKind)
	v.SetDefault("source.timeout", defaultSourceTimeout)
	v.SetDefault("source.lookback", defaultSourceLookback)
	v.SetDefault("source.breaker.maxRequests", defaultBreakerMaxRequests)
	v.SetDefault("source.breaker.interval", defaultBreakerInterval)
	v.SetDefault("source.breaker.timeout", defaultBreakerTimeout)
	v.SetDefault("source.breaker.consecutiveFailures", defaultBreakerFailures)
	v.SetDefault("cycles.threshold", defaultThreshold)
	v.SetDefault("cycles.extension", defaultExtension)
	v.SetDefault("cycles.copConstant", cycle.DefaultCOPConstant)
	v.SetDefault("cycles.outdoorGapStep", defaultOutdoorGapStep)
	v.SetDefault("cycles.parallelism", defaultParallelism)
	v.SetDefault("cycles.recencyHalfLife", defaultRecencyHalfLife)
	v.SetDefault("kafka.groupID", defaultKafkaGroupID)
	v.SetDefault("redis.key", defaultRedisKey)
	v.SetDefault("redis.ttl", defaultRedisTTL)
	v.SetDefault("lora.file", defaultLoRaFile)
	v.SetDefault("lora.timezone", defaultLoRaTimezone)
	v.SetDefault("lora.window", defaultLoRaWindow)
	v.SetDefault("lora.lowSuccessPct", defaultLoRaLowSuccessPct)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileEnabled)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", defaultLogCompress)
}

// readConfigFile attempts to read the configuration file specified in viper.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return ErrEmptyServerAddr
	}
	if cfg.Server.SessionMaxIdle <= 0 {
		return ErrInvalidSessionMaxIdle
	}

	switch cfg.Source.Kind {
	case SourceHTTP:
		if cfg.Source.BaseURL == "" {
			return ErrEmptySourceBaseURL
		}
	case SourceKafka:
		if err := validateKafka(cfg.Kafka); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownSourceKind, cfg.Source.Kind)
	}
	if cfg.Source.StartTime.IsZero() && cfg.Source.Lookback <= 0 {
		return ErrInvalidLookback
	}

	for _, q := range series.Quantities {
		if cfg.Sensors.SensorID(q) == "" {
			return fmt.Errorf("%w: %s", ErrMissingSensor, q)
		}
	}

	if cfg.Cycles.COPConstant <= 0 {
		return ErrInvalidCOPConstant
	}
	if cfg.Cycles.Extension < 0 {
		return ErrInvalidExtension
	}
	if b := cfg.Cycles.COPBounds; b.Min != nil && b.Max != nil && *b.Max < *b.Min {
		return ErrInvalidCOPBounds
	}
	for i, w := range cfg.Cycles.Exclusions {
		if w.End.Before(w.Start) {
			return fmt.Errorf("%w: exclusion %d (%s)", ErrInvalidExclusion, i, w.Reason)
		}
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return ErrEmptyRedisAddr
	}
	if cfg.LoRa.Enabled {
		if err := validateLoRa(cfg.LoRa); err != nil {
			return err
		}
	}
	return nil
}

func validateLoRa(l LoRaConfig) error {
	if l.File == "" {
		return ErrEmptyLoRaFile
	}
	if l.Window <= 0 {
		return ErrInvalidLoRaWindow
	}
	if _, err := time.LoadLocation(l.Timezone); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLoRaTimezone, err)
	}
	return nil
}

func validateKafka(k KafkaConfig) error {
	if len(k.Brokers) == 0 {
		return ErrEmptyKafkaBrokers
	}
	if k.Topic == "" {
		return ErrEmptyKafkaTopic
	}
	if k.GroupID == "" {
		return ErrEmptyKafkaGroupID
	}
	return nil
}
