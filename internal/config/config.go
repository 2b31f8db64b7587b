package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all batch settings, populated from environment variables.
// Command-line flags override individual fields after Load.
type Config struct {
	StationList string
	OutputDir   string

	MaxRecordsToInterpolate int
	MaxRecordsToImpute      int

	Workers           int
	ConversionTimeout time.Duration
	LoaderCacheSize   int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional Kafka sink for conversion results.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaResultsTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	maxInterpolate, err := parseNonNegativeInt("MAX_RECORDS_TO_INTERPOLATE", domain.DefaultMaxInterpolate)
	if err != nil {
		return nil, err
	}
	maxImpute, err := parseNonNegativeInt("MAX_RECORDS_TO_IMPUTE", domain.DefaultMaxImpute)
	if err != nil {
		return nil, err
	}
	workers, err := parseNonNegativeInt("WORKERS", 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseNonNegativeInt("LOADER_CACHE_SIZE", 4)
	if err != nil {
		return nil, err
	}

	timeoutStr := sharedcfg.EnvOrDefault("CONVERSION_TIMEOUT", "0s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil || timeout < 0 {
		return nil, errors.New("invalid CONVERSION_TIMEOUT")
	}

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		StationList:             sharedcfg.EnvOrDefault("STATION_LIST", "outputs/analyze_noaa_data_output/files_to_convert.csv"),
		OutputDir:               sharedcfg.EnvOrDefault("OUTPUT_DIR", "outputs/create_amy_epw_files_output"),
		MaxRecordsToInterpolate: maxInterpolate,
		MaxRecordsToImpute:      maxImpute,
		Workers:                 workers,
		ConversionTimeout:       timeout,
		LoaderCacheSize:         cacheSize,
		HTTPAddr:                os.Getenv("HTTP_ADDR"),
		LogLevel:                sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:               sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout:         shutdownTimeout,
		KafkaEnabled:            kafkaEnabled,
		KafkaBrokers:            sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaResultsTopic:       sharedcfg.EnvOrDefault("KAFKA_RESULTS_TOPIC", "amy-epw-conversions"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. It is called by Load and again
// after flag overrides are applied.
func (c *Config) Validate() error {
	if c.StationList == "" {
		return errors.New("STATION_LIST is required")
	}
	if c.OutputDir == "" {
		return errors.New("OUTPUT_DIR is required")
	}
	if c.Workers < 1 {
		return errors.New("WORKERS must be at least 1")
	}
	if c.ConversionTimeout < 0 {
		return errors.New("CONVERSION_TIMEOUT must not be negative")
	}
	if _, err := c.RepairPolicy(); err != nil {
		return err
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if c.KafkaResultsTopic == "" {
			return errors.New("KAFKA_RESULTS_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

// RepairPolicy returns the validated gap repair policy.
func (c *Config) RepairPolicy() (domain.RepairPolicy, error) {
	return domain.NewRepairPolicy(c.MaxRecordsToInterpolate, c.MaxRecordsToImpute)
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}
