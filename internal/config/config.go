// Package config loads deltascope settings from .deltascope.yaml, DELTASCOPE_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists every accepted output format.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

// Config is the top-level configuration. Field tags use mapstructure for viper.
type Config struct {
	Log           LogConfig           `mapstructure:"log"`
	Output        OutputConfig        `mapstructure:"output"`
	History       HistoryConfig       `mapstructure:"history"`
	State         StateConfig         `mapstructure:"state"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// LogConfig controls the stderr logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// OutputConfig controls rendering.
type OutputConfig struct {
	Format     string `mapstructure:"format"`
	Color      bool   `mapstructure:"color"`
	Timezone   string `mapstructure:"timezone"`
	FilesLimit int    `mapstructure:"files_limit"`
}

// HistoryConfig controls history paging.
type HistoryConfig struct {
	PageSize    int  `mapstructure:"page_size"`
	OldestFirst bool `mapstructure:"oldest_first"`
}

// StateConfig controls state reconstruction.
type StateConfig struct {
	LenientDuplicateAdds bool `mapstructure:"lenient_duplicate_adds"`
}

// StorageConfig controls log access.
type StorageConfig struct {
	ValidateActions bool        `mapstructure:"validate_actions"`
	CacheMaxBytes   int64       `mapstructure:"cache_max_bytes"`
	Retry           RetryConfig `mapstructure:"retry"`
	S3              S3Config    `mapstructure:"s3"`
	Azure           AzureConfig `mapstructure:"azure"`
}

// RetryConfig is the backoff policy for transient storage failures.
type RetryConfig struct {
	MaxTries        int           `mapstructure:"max_tries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// S3Config overrides the AWS SDK defaults.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Profile   string `mapstructure:"profile"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// AzureConfig holds the storage account used for az:// locations.
type AzureConfig struct {
	Account string `mapstructure:"account"`
}

// ObservabilityConfig controls OpenTelemetry export.
type ObservabilityConfig struct {
	Environment  string  `mapstructure:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
	TraceVerbose bool    `mapstructure:"trace_verbose"`
	ShutdownSecs int     `mapstructure:"shutdown_timeout_sec"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidLogLevel indicates log.level is not a slog level name.
	ErrInvalidLogLevel = errors.New("log.level must be one of debug, info, warn, error")
	// ErrInvalidFormat indicates output.format is unknown.
	ErrInvalidFormat = errors.New("output.format must be one of text, json, yaml")
	// ErrInvalidFilesLimit indicates output.files_limit is negative.
	ErrInvalidFilesLimit = errors.New("output.files_limit must be non-negative")
	// ErrInvalidPageSize indicates history.page_size is not positive.
	ErrInvalidPageSize = errors.New("history.page_size must be positive")
	// ErrInvalidMaxTries indicates storage.retry.max_tries is not positive.
	ErrInvalidMaxTries = errors.New("storage.retry.max_tries must be positive")
	// ErrInvalidRetryInterval indicates a negative or inverted retry interval.
	ErrInvalidRetryInterval = errors.New("storage.retry intervals must be non-negative and initial <= max")
	// ErrInvalidCacheSize indicates storage.cache_max_bytes is negative.
	ErrInvalidCacheSize = errors.New("storage.cache_max_bytes must be non-negative")
	// ErrInvalidSampleRatio indicates the trace sampling ratio is out of range.
	ErrInvalidSampleRatio = errors.New("observability.sample_ratio must be between 0 and 1")
)

// Validate checks Config invariants and returns the first error found.
// The zero Config is valid except for the fields that need a positive value.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	if c.Output.Format != "" && !slices.Contains(Formats, c.Output.Format) {
		return ErrInvalidFormat
	}

	if c.Output.FilesLimit < 0 {
		return ErrInvalidFilesLimit
	}

	if c.History.PageSize < 0 {
		return ErrInvalidPageSize
	}

	return c.validateStorage()
}

func (c *Config) validateStorage() error {
	retry := c.Storage.Retry

	if c.Storage.CacheMaxBytes < 0 {
		return ErrInvalidCacheSize
	}

	if retry.MaxTries < 0 {
		return ErrInvalidMaxTries
	}

	if retry.InitialInterval < 0 || retry.MaxInterval < 0 {
		return ErrInvalidRetryInterval
	}

	if retry.MaxInterval > 0 && retry.InitialInterval > retry.MaxInterval {
		return ErrInvalidRetryInterval
	}

	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	return nil
}

// ParseLevel maps a level name to an slog level. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, ErrInvalidLogLevel
	}
}
