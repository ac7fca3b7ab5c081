package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the root tracer used for command and tool spans.
const TracerName = "deltascope"

// Providers holds the initialized observability providers.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	// Logger is the trace-aware structured logger on stderr.
	Logger *slog.Logger

	// MetricsHandler serves the Prometheus scrape endpoint. Nil unless
	// [Export.Prometheus] is set.
	MetricsHandler http.Handler

	// Shutdown flushes pending telemetry. It must run before exit and is
	// safe to call more than once.
	Shutdown func(ctx context.Context) error
}

// Init installs global tracer and meter providers built from cfg.
func Init(cfg Config) (Providers, error) {
	ctx := context.Background()

	res, err := buildResource(cfg.Service)
	if err != nil {
		return Providers{}, err
	}

	tp, stopTraces, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return Providers{}, fmt.Errorf("tracer provider: %w", err)
	}

	mp, scrape, stopMetrics, err := newMeterProvider(ctx, cfg.Export, res)
	if err != nil {
		return Providers{}, errors.Join(fmt.Errorf("meter provider: %w", err), stopTraces(ctx))
	}

	if cfg.Export.OTLPEndpoint != "" && !cfg.Sampling.Verbose {
		tp = NewFilteringTracerProvider(tp)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	timeout := cfg.Export.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	return Providers{
		Tracer:         tp.Tracer(TracerName),
		Meter:          mp.Meter(TracerName),
		Logger:         NewLogger(cfg, os.Stderr),
		MetricsHandler: scrape,
		Shutdown: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return errors.Join(stopTraces(ctx), stopMetrics(ctx))
		},
	}, nil
}

func buildResource(svc Service) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(svc.Name)}

	if svc.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(svc.Version))
	}

	if svc.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(svc.Environment))
	}

	if svc.Mode != "" {
		attrs = append(attrs, attribute.String("app.mode", string(svc.Mode)))
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	return res, nil
}

type stopFunc func(ctx context.Context) error

func nothingToStop(context.Context) error { return nil }

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (trace.TracerProvider, stopFunc, error) {
	exp := cfg.Export
	if exp.OTLPEndpoint == "" {
		return nooptrace.NewTracerProvider(), nothingToStop, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(exp.OTLPEndpoint)}
	if exp.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(exp.OTLPHeaders) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(exp.OTLPHeaders))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("otlp trace exporter: %w", err)
	}

	var dropLog *slog.Logger
	if cfg.Sampling.Debug {
		dropLog = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewAttributeFilter(sdktrace.NewBatchSpanProcessor(exporter), dropLog)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.Sampling)),
	)

	return tp, tp.Shutdown, nil
}

// samplers maps OTEL_TRACES_SAMPLER values to constructors taking
// OTEL_TRACES_SAMPLER_ARG as a ratio.
var samplers = map[string]func(ratio float64) sdktrace.Sampler{
	"always_on":  func(float64) sdktrace.Sampler { return sdktrace.AlwaysSample() },
	"always_off": func(float64) sdktrace.Sampler { return sdktrace.NeverSample() },
	"traceidratio": func(ratio float64) sdktrace.Sampler {
		return sdktrace.TraceIDRatioBased(ratio)
	},
	"parentbased_always_on": func(float64) sdktrace.Sampler {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	},
	"parentbased_always_off": func(float64) sdktrace.Sampler {
		return sdktrace.ParentBased(sdktrace.NeverSample())
	},
	"parentbased_traceidratio": func(ratio float64) sdktrace.Sampler {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	},
}

// sampler resolves the sampler in precedence order: debug, environment,
// configured ratio, then parent-based always-on.
func sampler(cfg Sampling) sdktrace.Sampler {
	if cfg.Debug {
		return sdktrace.AlwaysSample()
	}

	if build, ok := samplers[os.Getenv("OTEL_TRACES_SAMPLER")]; ok {
		return build(envRatio(os.Getenv("OTEL_TRACES_SAMPLER_ARG")))
	}

	if cfg.Ratio > 0 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Ratio))
	}

	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}

func envRatio(raw string) float64 {
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 1
	}

	return ratio
}

func newMeterProvider(
	ctx context.Context, exp Export, res *resource.Resource,
) (metric.MeterProvider, http.Handler, stopFunc, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	readers := 0

	var scrape http.Handler

	if exp.OTLPEndpoint != "" {
		grpcOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(exp.OTLPEndpoint)}
		if exp.OTLPInsecure {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
		}

		if len(exp.OTLPHeaders) > 0 {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithHeaders(exp.OTLPHeaders))
		}

		exporter, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("otlp metric exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
		readers++
	}

	if exp.Prometheus {
		registry := prometheus.NewRegistry()

		reader, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("prometheus exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(reader))
		scrape = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		readers++
	}

	if readers == 0 {
		return noopmetric.NewMeterProvider(), nil, nothingToStop, nil
	}

	mp := sdkmetric.NewMeterProvider(opts...)

	return mp, scrape, mp.Shutdown, nil
}

// ParseOTLPHeaders parses the OTEL_EXPORTER_OTLP_HEADERS form
// "key=value,key=value". Entries without "=" are skipped; the result is nil
// when nothing valid remains.
func ParseOTLPHeaders(raw string) map[string]string {
	var headers map[string]string

	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		if headers == nil {
			headers = map[string]string{}
		}

		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return headers
}
