package deltalog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

var modTime = time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)

func TestDecodeCommit_SparkCommitInfo(t *testing.T) {
	t.Parallel()

	content := `{"commitInfo":{"timestamp":1714564800000,"operation":"MERGE",` +
		`"operationParameters":{"predicate":"[\"(id = id)\"]","mode":"Append","matchedPredicates":[{"actionType":"update"}]},` +
		`"operationMetrics":{"numTargetRowsInserted":"12","numTargetFilesAdded":"2","executionTimeMs":"340","numTargetBytesAdded":"abc"},` +
		`"engineInfo":"Apache-Spark/3.5.0 Delta-Lake/3.1.0"}}
{"add":{"path":"day=2024-05-01/part%20one.parquet","partitionValues":{"day":"2024-05-01","region":null},` +
		`"size":512,"modificationTime":1714564800000,"dataChange":true,"stats":"{\"numRecords\":7,\"minValues\":{}}"}}
{"remove":{"path":"old.parquet","deletionTimestamp":1714564800000,"dataChange":true}}
{"txn":{"appId":"stream","version":3}}
`

	commit, err := decodeCommit(4, "_delta_log/4.json", modTime, strings.NewReader(content), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(4), commit.Version)
	assert.Equal(t, int64(4), commit.Entry.Version)
	assert.Equal(t, int64(1714564800000), commit.Entry.Timestamp)
	assert.Equal(t, delta.OpMerge, commit.Entry.Operation)
	assert.Equal(t, "Apache-Spark/3.5.0 Delta-Lake/3.1.0", commit.Entry.EngineInfo)

	assert.Equal(t, "Append", commit.Entry.Parameters.Mode)
	assert.Equal(t, `["(id = id)"]`, commit.Entry.Parameters.Predicate)
	assert.Equal(t, `[{"actionType":"update"}]`, commit.Entry.Parameters.Other["matchedPredicates"])

	assert.Equal(t, int64(12), commit.Entry.Metrics.NumAddedRows)
	assert.Equal(t, int64(2), commit.Entry.Metrics.NumAddedFiles)
	assert.Equal(t, int64(340), commit.Entry.Metrics.Other["executionTimeMs"])
	assert.NotContains(t, commit.Entry.Metrics.Other, "numTargetBytesAdded")

	require.Len(t, commit.Adds, 1)
	add := commit.Adds[0]
	assert.Equal(t, "day=2024-05-01/part one.parquet", add.Path)
	assert.Equal(t, map[string]string{"day": "2024-05-01"}, add.PartitionValues)
	assert.Equal(t, int64(512), add.SizeBytes)
	require.NotNil(t, add.NumRecords)
	assert.Equal(t, int64(7), *add.NumRecords)

	require.Len(t, commit.Removes, 1)
	assert.Equal(t, delta.RemoveAction{Path: "old.parquet", DeletionTimestamp: 1714564800000, DataChange: true}, commit.Removes[0])

	assert.Nil(t, commit.Metadata)
	assert.Nil(t, commit.Protocol)
}

func TestDecodeCommit_DeltaRsNumericMetrics(t *testing.T) {
	t.Parallel()

	content := `{"commitInfo":{"timestamp":1714564800000,"operation":"WRITE","operationParameters":{"mode":"Overwrite","partitionBy":"[]"},` +
		`"operationMetrics":{"num_added_files":3,"num_added_rows":1500,"execution_time_ms":12.5},"clientVersion":"delta-rs.0.17.0"}}
`

	commit, err := decodeCommit(0, "0.json", modTime, strings.NewReader(content), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(3), commit.Entry.Metrics.NumAddedFiles)
	assert.Equal(t, int64(1500), commit.Entry.Metrics.NumAddedRows)
	assert.Equal(t, int64(12), commit.Entry.Metrics.Other["execution_time_ms"])
	assert.Equal(t, "delta-rs.0.17.0", commit.Entry.EngineInfo)
	assert.False(t, commit.Entry.Parameters.Partitioned())
}

func TestDecodeCommit_MissingCommitInfoUsesModTime(t *testing.T) {
	t.Parallel()

	content := `{"protocol":{"minReaderVersion":3,"minWriterVersion":7,"readerFeatures":["deletionVectors"],"writerFeatures":["deletionVectors","clustering"]}}
{"metaData":{"id":"abc","name":null,"schemaString":"{\"type\":\"struct\",\"fields\":[]}","partitionColumns":["day"],` +
		`"configuration":{"delta.enableChangeDataFeed":"true","delta.appendOnly":null},"createdTime":1714564800000}}
`

	commit, err := decodeCommit(0, "0.json", modTime, strings.NewReader(content), nil)
	require.NoError(t, err)

	assert.Equal(t, modTime.UnixMilli(), commit.Entry.Timestamp)
	assert.Empty(t, commit.Entry.Operation)

	require.NotNil(t, commit.Protocol)
	assert.Equal(t, 3, commit.Protocol.MinReaderVersion)
	assert.True(t, commit.Protocol.HasWriterFeature("clustering"))

	require.NotNil(t, commit.Metadata)
	assert.Equal(t, "abc", commit.Metadata.ID)
	assert.Empty(t, commit.Metadata.Name)
	assert.Equal(t, []string{"day"}, commit.Metadata.PartitionColumns)
	assert.Equal(t, map[string]string{"delta.enableChangeDataFeed": "true"}, commit.Metadata.Configuration)
	require.NotNil(t, commit.Metadata.CreatedTime)
}

func TestDecodeCommit_EmptyFile(t *testing.T) {
	t.Parallel()

	commit, err := decodeCommit(3, "3.json", modTime, strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Empty(t, commit.Adds)
	assert.Equal(t, modTime.UnixMilli(), commit.Entry.Timestamp)
}

func TestMetricValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw      string
		expected int64
		ok       bool
	}{
		{raw: `"42"`, expected: 42, ok: true},
		{raw: `42`, expected: 42, ok: true},
		{raw: `"-3"`, expected: -3, ok: true},
		{raw: `9.9`, expected: 9, ok: true},
		{raw: `"n/a"`, ok: false},
		{raw: `{"a":1}`, ok: false},
		{raw: `null`, ok: false},
	}

	for _, tt := range tests {
		value, ok := metricValue([]byte(tt.raw))
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.expected, value, tt.raw)
	}
}
