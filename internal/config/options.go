package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/Sumatoshi-tech/deltascope/internal/deltalog"
	"github.com/Sumatoshi-tech/deltascope/internal/state"
	"github.com/Sumatoshi-tech/deltascope/pkg/observability"
	"github.com/Sumatoshi-tech/deltascope/pkg/safeconv"
)

// positive constrains types eligible for skip-on-zero application.
type positive interface {
	~int | ~int64 | ~float64
}

// orDefault returns value when positive, else fallback.
// Zero means "use the built-in default".
func orDefault[T positive](value, fallback T) T {
	if value > 0 {
		return value
	}

	return fallback
}

// RetryPolicy converts storage.retry into the reader's backoff policy.
func (c *Config) RetryPolicy() deltalog.RetryPolicy {
	retry := c.Storage.Retry

	return deltalog.RetryPolicy{
		MaxTries:        safeconv.MustIntToUint(orDefault(retry.MaxTries, DefaultStorageRetryMaxTries)),
		InitialInterval: orDefault(retry.InitialInterval, DefaultStorageRetryInitialInterval),
		MaxInterval:     orDefault(retry.MaxInterval, DefaultStorageRetryMaxInterval),
	}
}

// BuilderOptions returns the state builder options selected by the state section.
func (c *Config) BuilderOptions(logger *slog.Logger) []state.Option {
	return []state.Option{
		state.WithLogger(logger),
		state.WithLenientAdds(c.State.LenientDuplicateAdds),
	}
}

// ReaderOptions returns the log reader options selected by the storage section.
func (c *Config) ReaderOptions(logger *slog.Logger) ([]deltalog.Option, error) {
	opts := []deltalog.Option{
		deltalog.WithLogger(logger),
		deltalog.WithRetryPolicy(c.RetryPolicy()),
		deltalog.WithStateBuilder(state.NewBuilder(c.BuilderOptions(logger)...)),
	}

	if c.Storage.ValidateActions {
		validator, err := deltalog.NewSchemaValidator()
		if err != nil {
			return nil, fmt.Errorf("load action schema: %w", err)
		}

		opts = append(opts, deltalog.WithValidator(validator))
	}

	return opts, nil
}

// Capabilities returns the cloud overrides of the storage section. The AWS
// configuration is only loaded here when a region or profile is pinned;
// otherwise the S3 backend loads the SDK defaults on first use.
func (c *Config) Capabilities(ctx context.Context) (deltalog.Capabilities, error) {
	s3cfg := c.Storage.S3

	caps := deltalog.Capabilities{
		AzureAccount: c.Storage.Azure.Account,
		S3Endpoint:   s3cfg.Endpoint,
		S3PathStyle:  s3cfg.PathStyle,
	}

	if s3cfg.Region == "" && s3cfg.Profile == "" {
		return caps, nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error

	if s3cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(s3cfg.Region))
	}

	if s3cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(s3cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return deltalog.Capabilities{}, fmt.Errorf("load aws config: %w", err)
	}

	caps.AWSConfig = &awsCfg

	return caps, nil
}

// Telemetry converts the log and observability sections for observability.Init.
func (c *Config) Telemetry(mode observability.AppMode, version string) observability.Config {
	obs := c.Observability
	level, _ := ParseLevel(c.Log.Level)
	shutdown := orDefault(obs.ShutdownSecs, DefaultObservabilityShutdownSecond)

	cfg := observability.DefaultConfig()
	cfg.Service.Version = version
	cfg.Service.Environment = obs.Environment
	cfg.Service.Mode = mode
	cfg.Export = observability.Export{
		OTLPEndpoint:    obs.OTLPEndpoint,
		OTLPHeaders:     observability.ParseOTLPHeaders(obs.OTLPHeaders),
		OTLPInsecure:    obs.OTLPInsecure,
		Prometheus:      obs.MetricsAddr != "",
		ShutdownTimeout: time.Duration(shutdown) * time.Second,
	}
	cfg.Sampling = observability.Sampling{
		Debug:   obs.DebugTrace,
		Ratio:   obs.SampleRatio,
		Verbose: obs.TraceVerbose,
	}
	cfg.Logging = observability.Logging{Level: level, JSON: c.Log.JSON}

	return cfg
}

// Location resolves output.timezone. Empty or "Local" is the host zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Output.Timezone {
	case "", DefaultOutputTimezone:
		return time.Local, nil
	}

	loc, err := time.LoadLocation(c.Output.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Output.Timezone, err)
	}

	return loc, nil
}
