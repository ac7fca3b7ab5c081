package inspector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/deltascope/internal/deltalog"
	"github.com/Sumatoshi-tech/deltascope/internal/deltatest"
	"github.com/Sumatoshi-tech/deltascope/internal/insights"
	"github.com/Sumatoshi-tech/deltascope/internal/state"
	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
	"github.com/Sumatoshi-tech/deltascope/pkg/observability"
)

// staticSource serves a fixed log and counts reads.
type staticSource struct {
	log   *delta.CommitLog
	err   error
	reads int
}

func (s *staticSource) ListCommits(context.Context) (*delta.CommitLog, error) {
	s.reads++

	return s.log, s.err
}

func (s *staticSource) Location() string {
	return "mem://static/table"
}

// appendOnly is scenario A: one overwrite followed by ten appends.
func appendOnly() *delta.CommitLog {
	builder := deltatest.NewLog("mem://static/table").
		Create(deltatest.Metadata("day"), deltatest.File("day=0/a.parquet", 2048, map[string]string{"day": "0"}))

	for i := 1; i <= 10; i++ {
		day := fmt.Sprint(i)
		builder.Write(deltatest.File("day="+day+"/part.parquet", int64(1024*i), map[string]string{"day": day}))
	}

	return builder.Build()
}

func TestInspect_SinglePass(t *testing.T) {
	t.Parallel()

	source := &staticSource{log: appendOnly()}

	report, err := New().Inspect(context.Background(), source)
	require.NoError(t, err)
	assert.Equal(t, 1, source.reads)

	stats := report.Statistics()
	assert.Equal(t, "mem://static/table", report.Location())
	assert.Equal(t, int64(10), stats.Version)
	assert.Equal(t, 11, stats.NumFiles)
	assert.Equal(t, 11, stats.TotalVersions)
	assert.Nil(t, stats.LastVacuum)
	assert.Equal(t, report.State().TotalSizeBytes(), stats.TotalSizeBytes)

	assert.False(t, report.FromCheckpoint())
	assert.Equal(t, 11, report.ReplayedCommits())

	oldest, latest := report.VersionRange()
	assert.Equal(t, int64(0), oldest)
	assert.Equal(t, int64(10), latest)

	titles := []string{}
	for _, insight := range report.Insights(deltatest.Epoch) {
		titles = append(titles, insight.Title)
	}

	assert.Contains(t, titles, "Table Has Never Been Vacuumed")
}

func TestReport_HistoryOrdering(t *testing.T) {
	t.Parallel()

	report, err := New().Inspect(context.Background(), &staticSource{log: appendOnly()})
	require.NoError(t, err)

	newestFirst := report.History(false)
	oldestFirst := report.History(true)

	require.Len(t, newestFirst, 11)
	require.Len(t, oldestFirst, 11)

	for i := range newestFirst {
		assert.Equal(t, newestFirst[i].Version, oldestFirst[len(oldestFirst)-1-i].Version)

		if i > 0 {
			assert.Less(t, newestFirst[i].Version, newestFirst[i-1].Version)
			assert.Greater(t, oldestFirst[i].Version, oldestFirst[i-1].Version)
		}
	}

	newestFirst[0].Operation = "MUTATED"
	assert.Equal(t, delta.OpWrite, report.History(false)[0].Operation)
}

func TestReport_DerivedViews(t *testing.T) {
	t.Parallel()

	meta := deltatest.Metadata("day")
	meta.Configuration = map[string]string{
		"delta.enableChangeDataFeed":         "true",
		"delta.deletedFileRetentionDuration": "interval 2 days",
	}

	log := deltatest.NewLog("mem://views").
		Create(meta, deltatest.File("day=1/a.parquet", 10, map[string]string{"day": "1"})).
		Op(delta.OpOptimize, nil).
		Build()
	log.Inventory = delta.LogInventory{JSONFiles: 2, LogSizeBytes: 900}

	report, err := New().Inspect(context.Background(), &staticSource{log: log})
	require.NoError(t, err)

	cfg := report.Configuration()
	assert.True(t, cfg.Advanced.ChangeDataFeed)
	assert.InDelta(t, 48.0, cfg.Advanced.VacuumRetentionHours, 0.001)
	assert.Equal(t, 2, cfg.TransactionLog.NumJSONFiles)

	line := report.Timeline(time.UTC)
	assert.Equal(t, 1, line.OperationsByType[delta.OpOptimize])
	assert.Equal(t, 1, line.OperationsByType[delta.OpCreateTable])

	schema := report.SchemaSummary()
	assert.Equal(t, 2, schema.ColumnCount)
	assert.Equal(t, []string{"day"}, schema.PartitionColumns)
	assert.Equal(t, "id", schema.Columns[0].Name)
	assert.Equal(t, 2, report.Inventory().JSONFiles)
}

func TestInspect_AtVersion(t *testing.T) {
	t.Parallel()

	report, err := New().Inspect(context.Background(), &staticSource{log: appendOnly()}, AtVersion(3))
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.Statistics().Version)
	assert.Equal(t, 4, report.Statistics().NumFiles)
	assert.Equal(t, 4, report.Statistics().TotalVersions)
	assert.Len(t, report.History(true), 4)
	assert.Equal(t, int64(3), report.Statistics().LastOperation.Version)

	_, err = New().Inspect(context.Background(), &staticSource{log: appendOnly()}, AtVersion(99))

	var notFound *delta.VersionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(10), notFound.Latest)
}

func TestInspect_CheckpointReplay(t *testing.T) {
	t.Parallel()

	full := appendOnly()

	atSix, err := state.NewBuilder().Build(full, state.AtVersion(6))
	require.NoError(t, err)

	pruned := &delta.CommitLog{
		Location: full.Location,
		Commits:  full.Commits[5:],
		Checkpoint: &delta.Checkpoint{
			Version:  6,
			Files:    atSix.Files(),
			Metadata: atSix.Metadata,
			Protocol: atSix.Protocol,
		},
	}

	report, err := New().Inspect(context.Background(), &staticSource{log: pruned})
	require.NoError(t, err)

	assert.True(t, report.FromCheckpoint())
	assert.Equal(t, 4, report.ReplayedCommits())
	assert.Equal(t, 11, report.Statistics().NumFiles)
	assert.Equal(t, int64(5), report.Statistics().OldestVersion)

	oldest, _ := report.VersionRange()
	assert.Equal(t, int64(6), oldest)
}

func TestInspect_Failures(t *testing.T) {
	t.Parallel()

	_, err := New().Inspect(context.Background(), &staticSource{err: fmt.Errorf("list: %w", delta.ErrTableNotFound)})
	require.ErrorIs(t, err, delta.ErrTableNotFound)

	_, err = New().Inspect(context.Background(), &staticSource{log: &delta.CommitLog{}})
	require.ErrorIs(t, err, delta.ErrTableNotFound)

	dangling := deltatest.NewLog("mem://bad").
		Create(deltatest.Metadata()).
		Op(delta.OpDelete, nil, "never-added.parquet").
		Build()

	report, err := New().Inspect(context.Background(), &staticSource{log: dangling})
	require.ErrorIs(t, err, delta.ErrCorruptLog)
	assert.Nil(t, report)

	authErr := &delta.AuthenticationError{Location: "abfss://c@a.dfs.core.windows.net/t", Err: errors.New("403")}
	_, err = New().Inspect(context.Background(), &staticSource{err: authErr})
	require.ErrorIs(t, err, delta.ErrAuthentication)
}

func TestInspect_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	metrics, err := observability.NewInspectionMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	require.NoError(t, err)

	clock := deltatest.Epoch
	tick := func() time.Time {
		clock = clock.Add(time.Second)

		return clock
	}

	inspector := New(WithMetrics(metrics), WithClock(tick))

	_, err = inspector.Inspect(context.Background(), &staticSource{log: appendOnly()})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	values := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					values[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(1), values["deltascope.inspection.total"])
	assert.Equal(t, int64(11), values["deltascope.inspection.commits.replayed.total"])
	assert.Positive(t, values["deltascope.inspection.insights.total"])
}

func TestInspect_PublishedTable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := afs.New()
	location := deltatest.MemLocation(t.Name())

	require.NoError(t, deltatest.Publish(ctx, svc, location, appendOnly()))

	storage, err := deltalog.NewAFSStorageWithService(svc, location)
	require.NoError(t, err)

	report, err := New().Inspect(ctx, deltalog.NewReader(storage, location))
	require.NoError(t, err)

	assert.Equal(t, location, report.Location())
	assert.Equal(t, int64(10), report.Statistics().Version)
	assert.Equal(t, 11, report.Inventory().JSONFiles)
	assert.Equal(t, 11, report.Statistics().NumFiles)

	counts := insights.CountBySeverity(report.Insights(deltatest.Epoch))
	assert.Positive(t, counts[insights.SeverityWarning])
}
