package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

func TestExtract_Defaults(t *testing.T) {
	t.Parallel()

	report := Extract(&delta.Metadata{ID: "t1"}, &delta.Protocol{MinReaderVersion: 1, MinWriterVersion: 2}, delta.LogInventory{})

	adv := report.Advanced
	assert.False(t, adv.DeletionVectors)
	assert.Equal(t, ColumnMapping{Mode: "none"}, adv.ColumnMapping)
	assert.False(t, adv.LiquidClustering)
	assert.False(t, adv.TimestampNTZ)
	assert.Empty(t, adv.CheckConstraints)
	assert.Equal(t, AutoOptimize{}, adv.AutoOptimize)
	assert.Equal(t, DataSkipping{Enabled: true, NumIndexedCols: 32}, adv.DataSkipping)
	assert.False(t, adv.ChangeDataFeed)
	assert.InDelta(t, 168.0, adv.VacuumRetentionHours, 1e-9)
	assert.Empty(t, report.Warnings)
	assert.False(t, report.Checkpoint.HasCheckpoints)
	assert.Equal(t, []string{}, report.PartitionColumns)
}

func TestExtract_EnabledFeatures(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	meta := &delta.Metadata{
		ID:               "t1",
		Name:             "events",
		CreatedTime:      &created,
		PartitionColumns: []string{"day"},
		Configuration: map[string]string{
			KeyColumnMappingMode:         "name",
			KeyAutoCompact:               "true",
			KeyNumIndexedCols:            "8",
			KeyChangeDataFeed:            "true",
			KeyDeletedFileRetention:      "interval 14 days",
			KeyClustering:                `["a"]`,
			"delta.constraints.positive": "amount > 0",
		},
	}
	proto := &delta.Protocol{
		MinReaderVersion: 3,
		MinWriterVersion: 7,
		ReaderFeatures:   []string{FeatureDeletionVectors, FeatureTimestampNTZ},
		WriterFeatures:   []string{FeatureDeletionVectors, FeatureTimestampNTZ},
	}

	report := Extract(meta, proto, delta.LogInventory{})

	adv := report.Advanced
	assert.True(t, adv.DeletionVectors)
	assert.Equal(t, ColumnMapping{Enabled: true, Mode: "name"}, adv.ColumnMapping)
	assert.True(t, adv.LiquidClustering)
	assert.True(t, adv.TimestampNTZ)
	assert.Equal(t, map[string]string{"delta.constraints.positive": "amount > 0"}, adv.CheckConstraints)
	assert.Equal(t, AutoOptimize{Enabled: true, AutoCompact: true}, adv.AutoOptimize)
	assert.Equal(t, 8, adv.DataSkipping.NumIndexedCols)
	assert.True(t, adv.ChangeDataFeed)
	assert.InDelta(t, 336.0, adv.VacuumRetentionHours, 1e-9)
	assert.Empty(t, report.Warnings)

	assert.Equal(t, "events", report.TableName)
	require.NotNil(t, report.CreatedTime)
	assert.Equal(t, created, report.CreatedTime.UnixMilli())
	assert.Equal(t, 7, report.Protocol.MinWriterVersion)
}

func TestExtract_ClusteringWriterFeature(t *testing.T) {
	t.Parallel()

	report := Extract(&delta.Metadata{}, &delta.Protocol{WriterFeatures: []string{FeatureClustering}}, delta.LogInventory{})
	assert.True(t, report.Advanced.LiquidClustering)
}

func TestExtract_MalformedValuesFallBack(t *testing.T) {
	t.Parallel()

	meta := &delta.Metadata{Configuration: map[string]string{
		KeyColumnMappingMode:    "by-magic",
		KeyNumIndexedCols:       "lots",
		KeyDeletedFileRetention: "a fortnight",
		KeyOptimizeWrite:        "sure",
	}}

	report := Extract(meta, nil, delta.LogInventory{})

	adv := report.Advanced
	assert.Equal(t, "none", adv.ColumnMapping.Mode)
	assert.Equal(t, DefaultNumIndexedCols, adv.DataSkipping.NumIndexedCols)
	assert.InDelta(t, 168.0, adv.VacuumRetentionHours, 1e-9)
	assert.False(t, adv.AutoOptimize.OptimizeWrite)

	require.Len(t, report.Warnings, 4)

	keys := make([]string, 0, len(report.Warnings))
	for _, warning := range report.Warnings {
		require.ErrorIs(t, warning, delta.ErrMalformedConfigValue)

		keys = append(keys, warning.Key)
	}

	assert.ElementsMatch(t, []string{KeyColumnMappingMode, KeyNumIndexedCols, KeyDeletedFileRetention, KeyOptimizeWrite}, keys)
}

func TestExtract_FlagsRequireLowercaseTrue(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"TRUE", "True", "1", "t", "yes"} {
		meta := &delta.Metadata{Configuration: map[string]string{
			KeyAutoCompact:    raw,
			KeyOptimizeWrite:  raw,
			KeyChangeDataFeed: raw,
		}}

		report := Extract(meta, nil, delta.LogInventory{})

		assert.False(t, report.Advanced.AutoOptimize.Enabled, raw)
		assert.False(t, report.Advanced.AutoOptimize.AutoCompact, raw)
		assert.False(t, report.Advanced.AutoOptimize.OptimizeWrite, raw)
		assert.False(t, report.Advanced.ChangeDataFeed, raw)
		assert.Len(t, report.Warnings, 3, raw)
	}

	meta := &delta.Metadata{Configuration: map[string]string{
		KeyAutoCompact:    " true ",
		KeyOptimizeWrite:  "false",
		KeyChangeDataFeed: "true",
	}}

	report := Extract(meta, nil, delta.LogInventory{})
	assert.True(t, report.Advanced.AutoOptimize.AutoCompact)
	assert.False(t, report.Advanced.AutoOptimize.OptimizeWrite)
	assert.True(t, report.Advanced.ChangeDataFeed)
	assert.Empty(t, report.Warnings)
}

func TestExtract_CheckpointAndLogAccounting(t *testing.T) {
	t.Parallel()

	inventory := delta.LogInventory{
		JSONFiles:    25,
		LogSizeBytes: 4096,
		Checkpoints: []delta.CheckpointFile{
			{Name: "00000000000000000010.checkpoint.parquet", Version: 10, SizeBytes: 900, Parts: 1},
			{Name: "00000000000000000020.checkpoint.parquet", Version: 20, SizeBytes: 1200, Parts: 1},
		},
	}

	report := Extract(&delta.Metadata{}, nil, inventory)

	assert.True(t, report.Checkpoint.HasCheckpoints)
	assert.Equal(t, "00000000000000000020.checkpoint.parquet", report.Checkpoint.LatestCheckpoint)
	require.NotNil(t, report.Checkpoint.LatestVersion)
	assert.Equal(t, int64(20), *report.Checkpoint.LatestVersion)
	assert.Equal(t, int64(1200), report.Checkpoint.CheckpointSizeBytes)
	assert.Equal(t, TransactionLogInfo{NumJSONFiles: 25, NumCheckpoints: 2, LogSizeBytes: 4096}, report.TransactionLog)
}

func TestExtract_NilInputs(t *testing.T) {
	t.Parallel()

	report := Extract(nil, nil, delta.LogInventory{})
	assert.Equal(t, map[string]string{}, report.TableProperties)
	assert.Equal(t, DefaultColumnMappingMode, report.Advanced.ColumnMapping.Mode)
}

func TestParseRetention(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "bare_hours", input: "168", expected: 168 * time.Hour},
		{name: "hours_suffix", input: "168 hours", expected: 168 * time.Hour},
		{name: "interval_days", input: "interval 7 days", expected: 168 * time.Hour},
		{name: "interval_weeks", input: "interval 1 weeks", expected: 168 * time.Hour},
		{name: "compound", input: "1 week 2 days", expected: 216 * time.Hour},
		{name: "minutes", input: "30 minutes", expected: 30 * time.Minute},
		{name: "go_duration", input: "168h", expected: 168 * time.Hour},
		{name: "case_insensitive", input: "INTERVAL 2 DAYS", expected: 48 * time.Hour},
		{name: "empty", input: "  ", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "unknown_unit", input: "3 fortnights", wantErr: true},
		{name: "garbage", input: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseRetention(tt.input)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
