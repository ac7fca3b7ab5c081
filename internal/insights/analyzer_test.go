package insights

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/deltascope/internal/deltatest"
	"github.com/Sumatoshi-tech/deltascope/internal/state"
	"github.com/Sumatoshi-tech/deltascope/internal/stats"
	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
	"github.com/Sumatoshi-tech/deltascope/pkg/units"
)

var now = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func tableStats(files []delta.FileInfo, versions int, partitionColumns ...string) *stats.TableStatistics {
	var total int64
	for _, file := range files {
		total += file.SizeBytes
	}

	if partitionColumns == nil {
		partitionColumns = []string{}
	}

	return &stats.TableStatistics{
		TablePath:        "mem://t",
		NumFiles:         len(files),
		TotalSizeBytes:   total,
		Files:            files,
		PartitionColumns: partitionColumns,
		TotalVersions:    versions,
	}
}

func uniformFiles(n int, size int64) []delta.FileInfo {
	return deltatest.Files("u", n, size)
}

func titles(found []Insight) []string {
	out := make([]string, 0, len(found))
	for _, insight := range found {
		out = append(out, insight.Title)
	}

	return out
}

func assertSorted(t *testing.T, found []Insight) {
	t.Helper()

	for i := 1; i < len(found); i++ {
		assert.LessOrEqual(t, found[i-1].Severity.Rank(), found[i].Severity.Rank())
	}
}

func TestAnalyze_HealthyTable(t *testing.T) {
	t.Parallel()

	found := NewAnalyzer().Analyze(tableStats(uniformFiles(4, 128*units.MiB), 3), now)

	require.Len(t, found, 1)
	assert.Equal(t, SeverityGood, found[0].Severity)
	assert.Equal(t, "Table Configuration Looks Good", found[0].Title)
}

func TestAnalyze_EmptyTable(t *testing.T) {
	t.Parallel()

	found := NewAnalyzer().Analyze(tableStats(nil, 1), now)
	assert.Equal(t, []string{"Table Configuration Looks Good"}, titles(found))
}

func TestAnalyze_ScenarioA_NeverVacuumed(t *testing.T) {
	t.Parallel()

	builder := deltatest.NewLog("mem://a").
		Create(deltatest.Metadata(), deltatest.File("base.parquet", 200*units.MiB, nil))

	for i := range 10 {
		builder.Write(deltatest.File(fmt.Sprintf("append-%d.parquet", i), 200*units.MiB, nil))
	}

	log := builder.Build()
	require.Len(t, log.Commits, 11)

	tableState, err := state.NewBuilder().Build(log)
	require.NoError(t, err)

	computed := stats.NewAggregator(nil).Compute(tableState, log.History(), log.Location)
	assert.Nil(t, computed.LastVacuum)

	found := NewAnalyzer().Analyze(computed, now)
	assert.Contains(t, titles(found), "Table Has Never Been Vacuumed")
	assertSorted(t, found)
}

func TestAnalyze_ScenarioB_SmallFiles(t *testing.T) {
	t.Parallel()

	found := NewAnalyzer().Analyze(tableStats(uniformFiles(20, 400), 20), now)

	require.NotEmpty(t, found)
	assert.Equal(t, SeverityCritical, found[0].Severity)
	assert.Equal(t, "Small Files Problem Detected", found[0].Title)
	assert.Contains(t, found[0].Description, "100.0% of files (20/20)")
	assert.Contains(t, titles(found), "Suboptimal Average File Size")
	assert.NotContains(t, titles(found), "Table Configuration Looks Good")
	assertSorted(t, found)
}

func TestAnalyze_ScenarioC_NoPartitionInsights(t *testing.T) {
	t.Parallel()

	found := NewAnalyzer().Analyze(tableStats(uniformFiles(5, 1*units.KiB), 1), now)

	for _, title := range titles(found) {
		assert.NotContains(t, []string{"Table Not Partitioned", "Over-Partitioned Table", "Under-Partitioned Table"}, title)
	}
}

func TestAnalyze_ScenarioD_HighFileCountNotOverPartitioned(t *testing.T) {
	t.Parallel()

	files := make([]delta.FileInfo, 0, 1500)
	for i := range 1500 {
		day := fmt.Sprintf("2025-01-0%d", i%3+1)
		files = append(files, deltatest.File(fmt.Sprintf("day=%s/f-%d.parquet", day, i), 128*units.MiB,
			map[string]string{"day": day}))
	}

	found := NewAnalyzer().Analyze(tableStats(files, 5, "day"), now)

	assert.Contains(t, titles(found), "High File Count")
	assert.NotContains(t, titles(found), "Over-Partitioned Table")
	assert.Contains(t, titles(found), "Under-Partitioned Table")
	assertSorted(t, found)
}

func TestAnalyze_SomeSmallFiles(t *testing.T) {
	t.Parallel()

	files := append(uniformFiles(7, 128*units.MiB), deltatest.Files("s", 3, 1*units.MiB)...)
	found := NewAnalyzer().Analyze(tableStats(files, 2), now)

	assert.Contains(t, titles(found), "Some Small Files Detected")
	assert.NotContains(t, titles(found), "Small Files Problem Detected")
}

func TestAnalyze_VacuumOverdue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		age     time.Duration
		overdue bool
	}{
		{name: "recent", age: 3 * 24 * time.Hour, overdue: false},
		{name: "exactly_28_days", age: 28*24*time.Hour + time.Hour, overdue: false},
		{name: "29_days", age: 29 * 24 * time.Hour, overdue: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := tableStats(uniformFiles(2, 128*units.MiB), 50)
			last := now.Add(-tt.age)
			s.LastVacuum = &last

			found := NewAnalyzer().Analyze(s, now)
			assert.Equal(t, tt.overdue, slices.Contains(titles(found), "Vacuum Overdue"))
			assert.NotContains(t, titles(found), "Table Has Never Been Vacuumed")
		})
	}
}

func TestAnalyze_NeverVacuumedNeedsMoreThanTenVersions(t *testing.T) {
	t.Parallel()

	found := NewAnalyzer().Analyze(tableStats(uniformFiles(60, 128*units.MiB), 10), now)
	assert.NotContains(t, titles(found), "Table Has Never Been Vacuumed")
}

func TestAnalyze_LargeUnpartitionedTable(t *testing.T) {
	t.Parallel()

	found := NewAnalyzer().Analyze(tableStats(uniformFiles(100, 128*units.MiB), 2), now)

	assert.Contains(t, titles(found), "Table Not Partitioned")
	assert.Equal(t, SeverityGood, found[len(found)-1].Severity)
}

func TestAnalyze_OverPartitioned(t *testing.T) {
	t.Parallel()

	files := make([]delta.FileInfo, 0, 1200)
	for i := range 1200 {
		files = append(files, deltatest.File(fmt.Sprintf("id=%d/f.parquet", i), 128*units.MiB,
			map[string]string{"id": fmt.Sprint(i)}))
	}

	found := NewAnalyzer().Analyze(tableStats(files, 2, "id"), now)

	assert.Contains(t, titles(found), "Over-Partitioned Table")
	assert.Contains(t, titles(found), "High File Count")
}

func TestAnalyze_OptimizationCadence(t *testing.T) {
	t.Parallel()

	found := NewAnalyzer().Analyze(tableStats(uniformFiles(1001, 128*units.MiB), 21), now)
	assert.Contains(t, titles(found), "Consider Regular Optimization")

	found = NewAnalyzer().Analyze(tableStats(uniformFiles(1001, 128*units.MiB), 20), now)
	assert.NotContains(t, titles(found), "Consider Regular Optimization")
}

func TestAnalyze_DataSkew(t *testing.T) {
	t.Parallel()

	files := []delta.FileInfo{
		deltatest.File("small.parquet", 100*units.MiB, nil),
		deltatest.File("huge.parquet", 900*units.MiB, nil),
	}

	found := NewAnalyzer().Analyze(tableStats(files, 2), now)

	require.Contains(t, titles(found), "Data Skew Detected")

	for _, insight := range found {
		if insight.Title == "Data Skew Detected" {
			assert.Contains(t, insight.Description, "CV: 0.80")
			assert.Contains(t, insight.Description, "100 MiB")
			assert.Contains(t, insight.Description, "900 MiB")
		}
	}
}

func TestAnalyze_ManySmallWrites(t *testing.T) {
	t.Parallel()

	found := NewAnalyzer().Analyze(tableStats(uniformFiles(20, 128*units.MiB), 11), now)
	assert.Contains(t, titles(found), "Many Small Writes Detected")

	found = NewAnalyzer().Analyze(tableStats(uniformFiles(60, 128*units.MiB), 11), now)
	assert.NotContains(t, titles(found), "Many Small Writes Detected")
}

func TestAnalyze_SeverityOrderingIsStable(t *testing.T) {
	t.Parallel()

	files := append(deltatest.Files("s", 30, 1*units.KiB), deltatest.File("big.parquet", 1*units.GiB, nil))
	found := NewAnalyzer().Analyze(tableStats(files, 40), now)

	assertSorted(t, found)

	warnings := []string{}

	for _, insight := range found {
		if insight.Severity == SeverityWarning {
			warnings = append(warnings, insight.Title)
		}
	}

	assert.Equal(t, []string{"Suboptimal Average File Size", "Table Has Never Been Vacuumed", "Data Skew Detected"}, warnings)
}

func TestAnalyze_IsDeterministic(t *testing.T) {
	t.Parallel()

	s := tableStats(uniformFiles(20, 400), 20)
	analyzer := NewAnalyzer()

	assert.Equal(t, analyzer.Analyze(s, now), analyzer.Analyze(s, now))
}
