package config_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/deltascope/internal/config"
	"github.com/Sumatoshi-tech/deltascope/pkg/observability"
)

const fullConfig = `
log:
  level: debug
  json: true
output:
  format: yaml
  color: false
  timezone: UTC
  files_limit: 5
history:
  page_size: 50
  oldest_first: true
state:
  lenient_duplicate_adds: true
storage:
  validate_actions: true
  cache_max_bytes: 1024
  retry:
    max_tries: 7
    initial_interval: 50ms
    max_interval: 2s
  s3:
    endpoint: http://localhost:9000
    path_style: true
  azure:
    account: lakeacct
observability:
  environment: staging
  otlp_endpoint: collector:4317
  otlp_headers: "x-team=data, x-env=stg"
  otlp_insecure: true
  sample_ratio: 0.25
  metrics_addr: ":9464"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "deltascope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, config.DefaultHistoryPageSize, cfg.History.PageSize)
	assert.Equal(t, config.FormatText, cfg.Output.Format)
	assert.Equal(t, config.DefaultStorageRetryInitialInterval, cfg.Storage.Retry.InitialInterval)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, config.FormatYAML, cfg.Output.Format)
	assert.False(t, cfg.Output.Color)
	assert.Equal(t, 5, cfg.Output.FilesLimit)
	assert.Equal(t, 50, cfg.History.PageSize)
	assert.True(t, cfg.History.OldestFirst)
	assert.True(t, cfg.State.LenientDuplicateAdds)
	assert.True(t, cfg.Storage.ValidateActions)
	assert.Equal(t, int64(1024), cfg.Storage.CacheMaxBytes)
	assert.Equal(t, 7, cfg.Storage.Retry.MaxTries)
	assert.Equal(t, 50*time.Millisecond, cfg.Storage.Retry.InitialInterval)
	assert.Equal(t, 2*time.Second, cfg.Storage.Retry.MaxInterval)
	assert.Equal(t, "http://localhost:9000", cfg.Storage.S3.Endpoint)
	assert.True(t, cfg.Storage.S3.PathStyle)
	assert.Equal(t, "lakeacct", cfg.Storage.Azure.Account)
	assert.Equal(t, "collector:4317", cfg.Observability.OTLPEndpoint)
	assert.InDelta(t, 0.25, cfg.Observability.SampleRatio, 0.0001)
	assert.Equal(t, ":9464", cfg.Observability.MetricsAddr)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("DELTASCOPE_HISTORY_PAGE_SIZE", "7")
	t.Setenv("DELTASCOPE_OUTPUT_FORMAT", "json")
	t.Setenv("DELTASCOPE_STORAGE_S3_REGION", "eu-west-1")

	cfg, err := config.LoadConfig(writeConfig(t, fullConfig))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.History.PageSize)
	assert.Equal(t, config.FormatJSON, cfg.Output.Format)
	assert.Equal(t, "eu-west-1", cfg.Storage.S3.Region)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "format", body: "output:\n  format: xml\n", want: config.ErrInvalidFormat},
		{name: "level", body: "log:\n  level: loud\n", want: config.ErrInvalidLogLevel},
		{name: "page size", body: "history:\n  page_size: -1\n", want: config.ErrInvalidPageSize},
		{name: "files limit", body: "output:\n  files_limit: -3\n", want: config.ErrInvalidFilesLimit},
		{name: "tries", body: "storage:\n  retry:\n    max_tries: -2\n", want: config.ErrInvalidMaxTries},
		{
			name: "inverted intervals",
			body: "storage:\n  retry:\n    initial_interval: 10s\n    max_interval: 1s\n",
			want: config.ErrInvalidRetryInterval,
		},
		{name: "cache", body: "storage:\n  cache_max_bytes: -1\n", want: config.ErrInvalidCacheSize},
		{name: "ratio", body: "observability:\n  sample_ratio: 1.5\n", want: config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.body))
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "validate config")
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestConfig_RetryPolicy_ZeroUsesDefaults(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	policy := cfg.RetryPolicy()
	assert.Equal(t, uint(config.DefaultStorageRetryMaxTries), policy.MaxTries)
	assert.Equal(t, config.DefaultStorageRetryInitialInterval, policy.InitialInterval)
	assert.Equal(t, config.DefaultStorageRetryMaxInterval, policy.MaxInterval)

	cfg.Storage.Retry.MaxTries = 9
	assert.Equal(t, uint(9), cfg.RetryPolicy().MaxTries)
}

func TestConfig_ReaderOptions(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	opts, err := cfg.ReaderOptions(slog.Default())
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	cfg.Storage.ValidateActions = true

	opts, err = cfg.ReaderOptions(slog.Default())
	require.NoError(t, err)
	assert.Len(t, opts, 4)
}

func TestConfig_Capabilities(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, fullConfig))
	require.NoError(t, err)

	caps, err := cfg.Capabilities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lakeacct", caps.AzureAccount)
	assert.Equal(t, "http://localhost:9000", caps.S3Endpoint)
	assert.True(t, caps.S3PathStyle)
	assert.Nil(t, caps.AWSConfig)

	cfg.Storage.S3.Region = "us-west-2"

	caps, err = cfg.Capabilities(context.Background())
	require.NoError(t, err)
	require.NotNil(t, caps.AWSConfig)
	assert.Equal(t, "us-west-2", caps.AWSConfig.Region)
}

func TestConfig_Telemetry(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, fullConfig))
	require.NoError(t, err)

	obs := cfg.Telemetry(observability.ModeMCP, "1.2.3")
	assert.Equal(t, observability.Service{
		Name:        "deltascope",
		Version:     "1.2.3",
		Environment: "staging",
		Mode:        observability.ModeMCP,
	}, obs.Service)
	assert.Equal(t, map[string]string{"x-team": "data", "x-env": "stg"}, obs.Export.OTLPHeaders)
	assert.True(t, obs.Export.Prometheus)
	assert.Equal(t, config.DefaultObservabilityShutdownSecond*time.Second, obs.Export.ShutdownTimeout)
	assert.True(t, obs.Logging.JSON)
	assert.Equal(t, slog.LevelDebug, obs.Logging.Level)
}

func TestConfig_Location(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Output.Timezone = "UTC"

	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	cfg.Output.Timezone = "Mars/Olympus"

	_, err = cfg.Location()
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := config.ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}
