package config

import "errors"

var (
	ErrReadingConfigFile     = errors.New("failed to read config file")
	ErrUnmarshallingConfig   = errors.New("failed to unmarshal config")
	ErrConfigFileMissing     = errors.New("config file not found")
	ErrUnknownSourceKind     = errors.New("source kind must be \"http\" or \"kafka\"")
	ErrEmptySourceBaseURL    = errors.New("source baseURL cannot be empty for the http source")
	ErrEmptyKafkaBrokers     = errors.New("kafka brokers list cannot be empty")
	ErrEmptyKafkaTopic       = errors.New("kafka topic cannot be empty")
	ErrEmptyKafkaGroupID     = errors.New("kafka groupID cannot be empty")
	ErrMissingSensor         = errors.New("a sensor id is required for every quantity")
	ErrInvalidCOPConstant    = errors.New("cycles copConstant must be positive")
	ErrInvalidExtension      = errors.New("cycles extension cannot be negative")
	ErrInvalidLookback       = errors.New("source lookback must be positive when startTime is unset")
	ErrInvalidExclusion      = errors.New("exclusion window end precedes its start")
	ErrEmptyServerAddr       = errors.New("server addr cannot be empty")
	ErrEmptyRedisAddr        = errors.New("redis addr cannot be empty when redis is enabled")
	ErrInvalidSessionMaxIdle = errors.New("server sessionMaxIdle must be positive")
	ErrInvalidCOPBounds      = errors.New("cycles copBounds max is below min")
	ErrEmptyLoRaFile         = errors.New("lora file cannot be empty when lora is enabled")
	ErrInvalidLoRaWindow     = errors.New("lora window must be positive")
	ErrInvalidLoRaTimezone   = errors.New("lora timezone is not a known location")
)
