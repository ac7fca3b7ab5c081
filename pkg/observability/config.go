// Package observability provides OpenTelemetry tracing, metrics and
// structured logging for deltascope in both CLI and MCP modes.
package observability

import (
	"log/slog"
	"time"
)

// AppMode identifies how the binary was launched.
type AppMode string

const (
	// ModeCLI is a single command invocation.
	ModeCLI AppMode = "cli"
	// ModeMCP is the long-running MCP stdio server.
	ModeMCP AppMode = "mcp"
)

const (
	defaultServiceName     = "deltascope"
	defaultShutdownTimeout = 5 * time.Second
)

// Service describes the running binary on every span, metric and log line.
type Service struct {
	Name        string
	Version     string
	Environment string
	Mode        AppMode
}

// Export selects where telemetry goes. With neither an OTLP endpoint nor
// Prometheus the providers are no-op.
type Export struct {
	// OTLPEndpoint is a gRPC collector address such as "localhost:4317".
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool

	// Prometheus exposes a scrape handler in [Providers.MetricsHandler].
	Prometheus bool

	// ShutdownTimeout bounds the final flush.
	ShutdownTimeout time.Duration
}

// Sampling controls which traces are kept.
type Sampling struct {
	// Debug samples every trace and logs dropped span attributes.
	Debug bool

	// Ratio applies when Debug is off and OTEL_TRACES_SAMPLER is unset.
	Ratio float64

	// Verbose keeps the per-object storage spans.
	Verbose bool
}

// Logging configures the stderr logger.
type Logging struct {
	Level slog.Level
	JSON  bool
}

// Config holds all observability configuration.
type Config struct {
	Service  Service
	Export   Export
	Sampling Sampling
	Logging  Logging
}

// DefaultConfig returns a Config for zero-config startup.
func DefaultConfig() Config {
	return Config{
		Service: Service{Name: defaultServiceName, Mode: ModeCLI},
		Export:  Export{ShutdownTimeout: defaultShutdownTimeout},
		Logging: Logging{Level: slog.LevelInfo},
	}
}
