package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = ".deltascope"
	configType = "yaml"

	// envPrefix namespaces overrides: storage.s3.region is read from
	// DELTASCOPE_STORAGE_S3_REGION.
	envPrefix = "DELTASCOPE"
)

// LoadConfig resolves configuration with DELTASCOPE_* environment variables
// over the config file over Default. An explicit configPath must exist.
// Without one, .deltascope.yaml is looked up in the working directory and
// then $HOME, and finding neither is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := newViper()

	err := readConfigFile(v, configPath)
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	// Every key needs a default, otherwise AutomaticEnv never consults the
	// environment for it during Unmarshal.
	for key, value := range defaultKeys(Default()) {
		v.SetDefault(key, value)
	}

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		v.SetConfigFile(configPath)

		err := v.ReadInConfig()
		if err != nil {
			return fmt.Errorf("read config %s: %w", configPath, err)
		}

		return nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}

	err := v.ReadInConfig()

	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read config: %w", err)
	}

	return nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: DefaultLogLevel, JSON: DefaultLogJSON},
		Output: OutputConfig{
			Format:     DefaultOutputFormat,
			Color:      DefaultOutputColor,
			Timezone:   DefaultOutputTimezone,
			FilesLimit: DefaultOutputFilesLimit,
		},
		History: HistoryConfig{PageSize: DefaultHistoryPageSize, OldestFirst: DefaultHistoryOldestFirst},
		State:   StateConfig{LenientDuplicateAdds: DefaultStateLenientDuplicateAdds},
		Storage: StorageConfig{
			ValidateActions: DefaultStorageValidateActions,
			CacheMaxBytes:   DefaultStorageCacheMaxBytes,
			Retry: RetryConfig{
				MaxTries:        DefaultStorageRetryMaxTries,
				InitialInterval: DefaultStorageRetryInitialInterval,
				MaxInterval:     DefaultStorageRetryMaxInterval,
			},
			S3: S3Config{PathStyle: DefaultStorageS3PathStyle},
		},
		Observability: ObservabilityConfig{
			OTLPInsecure: DefaultObservabilityOTLPInsecure,
			SampleRatio:  DefaultObservabilitySampleRatio,
			DebugTrace:   DefaultObservabilityDebugTrace,
			TraceVerbose: DefaultObservabilityTraceVerbose,
			ShutdownSecs: DefaultObservabilityShutdownSecond,
		},
	}
}

// defaultKeys flattens d into viper keys.
func defaultKeys(d *Config) map[string]any {
	return map[string]any{
		"log.level": d.Log.Level,
		"log.json":  d.Log.JSON,

		"output.format":      d.Output.Format,
		"output.color":       d.Output.Color,
		"output.timezone":    d.Output.Timezone,
		"output.files_limit": d.Output.FilesLimit,

		"history.page_size":    d.History.PageSize,
		"history.oldest_first": d.History.OldestFirst,

		"state.lenient_duplicate_adds": d.State.LenientDuplicateAdds,

		"storage.validate_actions":       d.Storage.ValidateActions,
		"storage.cache_max_bytes":        d.Storage.CacheMaxBytes,
		"storage.retry.max_tries":        d.Storage.Retry.MaxTries,
		"storage.retry.initial_interval": d.Storage.Retry.InitialInterval,
		"storage.retry.max_interval":     d.Storage.Retry.MaxInterval,
		"storage.s3.region":              d.Storage.S3.Region,
		"storage.s3.profile":             d.Storage.S3.Profile,
		"storage.s3.endpoint":            d.Storage.S3.Endpoint,
		"storage.s3.path_style":          d.Storage.S3.PathStyle,
		"storage.azure.account":          d.Storage.Azure.Account,

		"observability.environment":          d.Observability.Environment,
		"observability.otlp_endpoint":        d.Observability.OTLPEndpoint,
		"observability.otlp_headers":         d.Observability.OTLPHeaders,
		"observability.otlp_insecure":        d.Observability.OTLPInsecure,
		"observability.sample_ratio":         d.Observability.SampleRatio,
		"observability.debug_trace":          d.Observability.DebugTrace,
		"observability.trace_verbose":        d.Observability.TraceVerbose,
		"observability.shutdown_timeout_sec": d.Observability.ShutdownSecs,
		"observability.metrics_addr":         d.Observability.MetricsAddr,
	}
}
