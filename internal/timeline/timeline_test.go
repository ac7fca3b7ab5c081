package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

var start = time.Date(2025, time.January, 10, 10, 0, 0, 0, time.UTC)

func entries(op delta.Operation, n int, gap time.Duration, rows int64) []delta.CommitEntry {
	out := make([]delta.CommitEntry, 0, n)
	for i := range n {
		out = append(out, delta.CommitEntry{
			Version:   int64(i),
			Timestamp: start.Add(time.Duration(i) * gap).UnixMilli(),
			Operation: op,
			Metrics:   delta.OperationMetrics{NumAddedRows: rows},
		})
	}

	return out
}

func TestAnalyze_EmptyHistory(t *testing.T) {
	t.Parallel()

	report := Analyze(nil, time.UTC)

	assert.Equal(t, 0, report.TotalOperations)
	assert.Empty(t, report.OperationsByType)
	assert.Empty(t, report.OperationsByDay)
	assert.Empty(t, report.WritePatterns)
	assert.InDelta(t, 0.0, report.VersionCreationRate, 1e-9)
	assert.Nil(t, report.FirstOperation)
	assert.Nil(t, report.LatestOperation)
}

func TestAnalyze_OperationCountsAndEnds(t *testing.T) {
	t.Parallel()

	history := []delta.CommitEntry{
		{Version: 2, Timestamp: start.Add(2 * time.Hour).UnixMilli(), Operation: delta.OpOptimize},
		{Version: 0, Timestamp: start.UnixMilli(), Operation: delta.OpCreateTable},
		{Version: 1, Timestamp: start.Add(time.Hour).UnixMilli(), Operation: delta.OpWrite},
		{Version: 3, Timestamp: start.Add(3 * time.Hour).UnixMilli(), Operation: delta.OpWrite},
		{Version: 4, Timestamp: start.Add(4 * time.Hour).UnixMilli()},
	}

	report := Analyze(history, time.UTC)

	assert.Equal(t, 5, report.TotalOperations)
	assert.Equal(t, map[delta.Operation]int{
		delta.OpCreateTable: 1,
		delta.OpWrite:       2,
		delta.OpOptimize:    1,
		delta.OpUnknown:     1,
	}, report.OperationsByType)

	require.NotNil(t, report.FirstOperation)
	require.NotNil(t, report.LatestOperation)
	assert.Equal(t, int64(0), report.FirstOperation.Version)
	assert.Equal(t, int64(4), report.LatestOperation.Version)
}

func TestAnalyze_DayBucketsUseLocation(t *testing.T) {
	t.Parallel()

	history := []delta.CommitEntry{
		{Version: 0, Timestamp: time.Date(2025, time.January, 10, 23, 30, 0, 0, time.UTC).UnixMilli(), Operation: delta.OpWrite},
		{Version: 1, Timestamp: time.Date(2025, time.January, 11, 0, 30, 0, 0, time.UTC).UnixMilli(), Operation: delta.OpWrite},
	}

	utc := Analyze(history, time.UTC)
	require.Len(t, utc.OperationsByDay, 2)
	assert.Equal(t, "2025-01-10", utc.OperationsByDay[0].Day)
	assert.Equal(t, "2025-01-11", utc.OperationsByDay[1].Day)

	behind := Analyze(history, time.FixedZone("UTC-5", -5*60*60))
	require.Len(t, behind.OperationsByDay, 1)
	assert.Equal(t, "2025-01-10", behind.OperationsByDay[0].Day)
	assert.Equal(t, 2, behind.OperationsByDay[0].Count)
	assert.Equal(t, int64(0), behind.OperationsByDay[0].Commits[0].Version)
}

func TestAnalyze_VersionCreationRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		history  []delta.CommitEntry
		expected float64
	}{
		{name: "single_commit", history: entries(delta.OpWrite, 1, time.Hour, 0), expected: 1},
		{name: "same_day", history: entries(delta.OpWrite, 6, time.Hour, 0), expected: 6},
		{name: "ten_days", history: entries(delta.OpWrite, 11, 24*time.Hour, 0), expected: 1.1},
		{name: "partial_days_floor", history: entries(delta.OpWrite, 4, 20*time.Hour, 0), expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.InDelta(t, tt.expected, Analyze(tt.history, time.UTC).VersionCreationRate, 1e-9)
		})
	}
}

func TestAnalyze_WritePatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		history  []delta.CommitEntry
		expected []WritePattern
	}{
		{
			name:     "streaming_small_writes",
			history:  entries(delta.OpWrite, 12, time.Minute, 50),
			expected: []WritePattern{PatternSmallFrequentWrites, PatternStreaming},
		},
		{
			name:     "streaming_large_writes",
			history:  entries(delta.OpMerge, 12, time.Minute, 5000),
			expected: []WritePattern{PatternStreaming},
		},
		{
			name:     "small_writes_need_more_than_ten",
			history:  entries(delta.OpWrite, 10, time.Hour, 50),
			expected: []WritePattern{},
		},
		{
			name:     "batch",
			history:  entries(delta.OpWrite, 3, 48*time.Hour, 1_000_000),
			expected: []WritePattern{PatternBatch},
		},
		{
			name:     "non_writes_ignored",
			history:  entries(delta.OpOptimize, 20, time.Second, 0),
			expected: []WritePattern{},
		},
		{
			name:     "single_write",
			history:  entries(delta.OpDelete, 1, time.Hour, 0),
			expected: []WritePattern{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, Analyze(tt.history, time.UTC).WritePatterns)
		})
	}
}

func TestAnalyze_GapIgnoresInterleavedNonWrites(t *testing.T) {
	t.Parallel()

	history := []delta.CommitEntry{
		{Version: 0, Timestamp: start.UnixMilli(), Operation: delta.OpWrite},
		{Version: 1, Timestamp: start.Add(10 * time.Second).UnixMilli(), Operation: delta.OpOptimize},
		{Version: 2, Timestamp: start.Add(72 * time.Hour).UnixMilli(), Operation: delta.OpWrite},
	}

	assert.Equal(t, []WritePattern{PatternBatch}, Analyze(history, time.UTC).WritePatterns)
}
