package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricInspectionsTotal  = "deltascope.inspection.total"
	metricCommitsReplayed   = "deltascope.inspection.commits.replayed.total"
	metricActiveFiles       = "deltascope.inspection.active.files"
	metricInsightsTotal     = "deltascope.inspection.insights.total"
	metricInspectionSeconds = "deltascope.inspection.duration.seconds"

	attrSeverity   = "severity"
	attrCheckpoint = "checkpoint"
)

// activeFileBuckets covers tables from a handful of files to a few million.
var activeFileBuckets = []float64{10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000}

// InspectionMetrics holds instruments describing completed analysis passes.
type InspectionMetrics struct {
	inspections     metric.Int64Counter
	commitsReplayed metric.Int64Counter
	activeFiles     metric.Float64Histogram
	insights        metric.Int64Counter
	duration        metric.Float64Histogram
}

// InspectionStats summarizes one analysis pass, decoupled from domain types.
type InspectionStats struct {
	CommitsReplayed int
	ActiveFiles     int
	FromCheckpoint  bool
	// InsightsBySeverity is keyed by severity name.
	InsightsBySeverity map[string]int
	Duration           time.Duration
}

// NewInspectionMetrics creates inspection instruments from mt.
func NewInspectionMetrics(mt metric.Meter) (*InspectionMetrics, error) {
	set := &instrumentSet{meter: mt}

	im := &InspectionMetrics{
		inspections:     set.count(metricInspectionsTotal, "Completed table inspections", "{inspection}"),
		commitsReplayed: set.count(metricCommitsReplayed, "Commits replayed into table state", "{commit}"),
		activeFiles:     set.distribution(metricActiveFiles, "Active data files per inspected table", "{file}", activeFileBuckets),
		insights:        set.count(metricInsightsTotal, "Insights produced by severity", "{insight}"),
		duration:        set.seconds(metricInspectionSeconds, "Inspection duration in seconds"),
	}

	err := set.err()
	if err != nil {
		return nil, fmt.Errorf("inspection metrics: %w", err)
	}

	return im, nil
}

// RecordInspection records one completed pass. Safe on a nil receiver.
func (im *InspectionMetrics) RecordInspection(ctx context.Context, stats InspectionStats) {
	if im == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool(attrCheckpoint, stats.FromCheckpoint))

	im.inspections.Add(ctx, 1, attrs)
	im.commitsReplayed.Add(ctx, int64(stats.CommitsReplayed), attrs)
	im.activeFiles.Record(ctx, float64(stats.ActiveFiles))
	im.duration.Record(ctx, stats.Duration.Seconds(), attrs)

	for severity, count := range stats.InsightsBySeverity {
		im.insights.Add(ctx, int64(count), metric.WithAttributes(attribute.String(attrSeverity, severity)))
	}
}
