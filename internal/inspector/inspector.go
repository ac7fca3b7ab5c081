// Package inspector runs one analysis pass over a Delta table: read the log,
// rebuild the state, compute statistics. The resulting Report is immutable and
// derives every other view (insights, timeline, configuration) from it.
package inspector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/deltascope/internal/insights"
	"github.com/Sumatoshi-tech/deltascope/internal/state"
	"github.com/Sumatoshi-tech/deltascope/internal/stats"
	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
	"github.com/Sumatoshi-tech/deltascope/pkg/observability"
)

const (
	tracerName  = "deltascope.inspector"
	spanInspect = "deltascope.inspect"
)

// LogSource is the transaction log of one table. *deltalog.Reader implements it.
type LogSource interface {
	ListCommits(ctx context.Context) (*delta.CommitLog, error)
	Location() string
}

// Inspector performs analysis passes. It holds no per-table state and is safe
// for concurrent use.
type Inspector struct {
	builder    *state.Builder
	aggregator *stats.Aggregator
	analyzer   *insights.Analyzer
	logger     *slog.Logger
	metrics    *observability.InspectionMetrics
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithLogger sets the logger shared by the state builder and the aggregator.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Inspector) {
		i.logger = logger
	}
}

// WithStateBuilder replaces the default state builder.
func WithStateBuilder(builder *state.Builder) Option {
	return func(i *Inspector) {
		i.builder = builder
	}
}

// WithMetrics records every completed pass.
func WithMetrics(metrics *observability.InspectionMetrics) Option {
	return func(i *Inspector) {
		i.metrics = metrics
	}
}

// WithTracer overrides the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(i *Inspector) {
		i.tracer = tracer
	}
}

// WithClock overrides the clock used for insight metrics and durations.
func WithClock(now func() time.Time) Option {
	return func(i *Inspector) {
		i.now = now
	}
}

// New creates an Inspector.
func New(opts ...Option) *Inspector {
	i := &Inspector{
		analyzer: insights.NewAnalyzer(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	if i.logger == nil {
		i.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if i.builder == nil {
		i.builder = state.NewBuilder(state.WithLogger(i.logger))
	}

	i.aggregator = stats.NewAggregator(i.logger)

	return i
}

type inspectParams struct {
	version *int64
}

// InspectOption narrows a single pass.
type InspectOption func(*inspectParams)

// AtVersion inspects the table as of version instead of the latest one.
// History newer than version is excluded from the report.
func AtVersion(version int64) InspectOption {
	return func(p *inspectParams) {
		p.version = &version
	}
}

// Inspect reads the log of source once and returns the analysis. Any failure
// aborts the pass; no partial report is returned.
func (i *Inspector) Inspect(ctx context.Context, source LogSource, opts ...InspectOption) (*Report, error) {
	var params inspectParams
	for _, opt := range opts {
		opt(&params)
	}

	started := i.now()

	ctx, span := i.tracer.Start(ctx, spanInspect,
		trace.WithAttributes(attribute.String("table.location", source.Location())))
	defer span.End()

	report, err := i.inspect(ctx, source, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inspection failed")

		return nil, err
	}

	finished := i.now()
	bySeverity := insights.CountBySeverity(report.Insights(finished))

	span.SetAttributes(
		attribute.Int64("delta.version", report.stats.Version),
		attribute.Int("table.files", report.stats.NumFiles),
		attribute.Int("delta.replayed", report.replayed),
	)

	i.metrics.RecordInspection(ctx, observability.InspectionStats{
		CommitsReplayed:    report.replayed,
		ActiveFiles:        report.stats.NumFiles,
		FromCheckpoint:     report.fromCheckpoint,
		InsightsBySeverity: severityNames(bySeverity),
		Duration:           finished.Sub(started),
	})

	i.logger.DebugContext(ctx, "table inspected",
		"location", source.Location(),
		"version", report.stats.Version,
		"files", report.stats.NumFiles,
		"replayed", report.replayed,
		"from_checkpoint", report.fromCheckpoint)

	return report, nil
}

func (i *Inspector) inspect(ctx context.Context, source LogSource, params inspectParams) (*Report, error) {
	log, err := source.ListCommits(ctx)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", source.Location(), err)
	}

	var buildOpts []state.BuildOption
	if params.version != nil {
		buildOpts = append(buildOpts, state.AtVersion(*params.version))
	}

	tableState, err := i.builder.Build(log, buildOpts...)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", source.Location(), err)
	}

	history := historyUpTo(log.History(), tableState.Version)
	location := log.Location
	if location == "" {
		location = source.Location()
	}

	fromCheckpoint := log.Checkpoint != nil && log.Checkpoint.Version <= tableState.Version
	base := int64(-1)
	if fromCheckpoint {
		base = log.Checkpoint.Version
	}

	return &Report{
		location:       location,
		state:          tableState,
		stats:          i.aggregator.Compute(tableState, history, location),
		history:        history,
		inventory:      log.Inventory,
		oldestRetained: log.OldestRetainedVersion(),
		latest:         log.LatestVersion(),
		fromCheckpoint: fromCheckpoint,
		replayed:       replayedCommits(log.Commits, base, tableState.Version),
		analyzer:       i.analyzer,
	}, nil
}

func historyUpTo(history []delta.CommitEntry, version int64) []delta.CommitEntry {
	kept := history[:0]
	for _, entry := range history {
		if entry.Version <= version {
			kept = append(kept, entry)
		}
	}

	return kept
}

func replayedCommits(commits []delta.Commit, base, target int64) int {
	count := 0

	for _, commit := range commits {
		if commit.Version > base && commit.Version <= target {
			count++
		}
	}

	return count
}

func severityNames(counts map[insights.Severity]int) map[string]int {
	named := make(map[string]int, len(counts))
	for severity, count := range counts {
		named[severity.String()] = count
	}

	return named
}
