package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultExcludedStates are the FARS state codes left out of the analysis:
// jurisdictions that do not observe DST or are split across timezones.
var DefaultExcludedStates = []int{1, 4, 15, 16, 18, 20, 21, 31, 38, 46, 47}

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	RawDir     string
	DerivedDir string
	OutputPath string

	FirstYear      int
	LateSchemaYear int
	LastYear       int
	ExcludedStates []int

	OffsetBucketMinutes float64
	ApplyTZOverride     bool

	SettleDays   int
	MinGroupSize int

	SQLitePath string

	KafkaBrokers       []string
	KafkaSinkTopic     string
	BatchSize          int
	BatchFlushInterval time.Duration
	ShutdownTimeout    time.Duration

	MetricsTextfile string
	MetricsAddr     string
	LogLevel        string
	LogFormat       string
}

// KafkaEnabled reports whether fused rows are also published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	firstYear, err := envInt("FIRST_YEAR", 1975)
	if err != nil {
		return nil, err
	}
	lateSchemaYear, err := envInt("LATE_SCHEMA_YEAR", 2001)
	if err != nil {
		return nil, err
	}
	lastYear, err := envInt("LAST_YEAR", 2017)
	if err != nil {
		return nil, err
	}
	settleDays, err := envInt("SETTLE_DAYS", 7)
	if err != nil {
		return nil, err
	}
	minGroupSize, err := envInt("MIN_GROUP_SIZE", 10000)
	if err != nil {
		return nil, err
	}

	bucket, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("OFFSET_BUCKET_MINUTES", "60"), 64)
	if err != nil || bucket <= 0 {
		return nil, errors.New("invalid OFFSET_BUCKET_MINUTES")
	}

	applyOverride, err := strconv.ParseBool(sharedcfg.EnvOrDefault("APPLY_TZ_OVERRIDE", "false"))
	if err != nil {
		return nil, errors.New("invalid APPLY_TZ_OVERRIDE")
	}

	excluded := DefaultExcludedStates
	if v, ok := os.LookupEnv("EXCLUDED_STATES"); ok {
		excluded, err = parseStateList(v)
		if err != nil {
			return nil, err
		}
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		RawDir:     sharedcfg.EnvOrDefault("RAW_DIR", "raw"),
		DerivedDir: sharedcfg.EnvOrDefault("DERIVED_DIR", "derived"),
		OutputPath: sharedcfg.EnvOrDefault("OUTPUT_PATH", "_data.csv"),

		FirstYear:      firstYear,
		LateSchemaYear: lateSchemaYear,
		LastYear:       lastYear,
		ExcludedStates: excluded,

		OffsetBucketMinutes: bucket,
		ApplyTZOverride:     applyOverride,

		SettleDays:   settleDays,
		MinGroupSize: minGroupSize,

		SQLitePath: os.Getenv("SQLITE_PATH"),

		KafkaBrokers:       brokers,
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "fused-accidents"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		ShutdownTimeout:    shutdownTimeout,

		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
	}

	if cfg.FirstYear > cfg.LastYear {
		return nil, errors.New("FIRST_YEAR must not be after LAST_YEAR")
	}
	if cfg.OutputPath == "" {
		return nil, errors.New("OUTPUT_PATH is required")
	}
	if cfg.SettleDays < 0 {
		return nil, errors.New("SETTLE_DAYS must not be negative")
	}
	if cfg.MinGroupSize < 0 {
		return nil, errors.New("MIN_GROUP_SIZE must not be negative")
	}
	if cfg.KafkaEnabled() && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// parseStateList parses a comma-separated list of state codes. An empty
// value excludes nothing.
func parseStateList(v string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid EXCLUDED_STATES entry %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}
