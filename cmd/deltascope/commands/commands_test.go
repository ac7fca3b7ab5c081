package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/deltascope/internal/config"
	"github.com/Sumatoshi-tech/deltascope/internal/deltalog"
	"github.com/Sumatoshi-tech/deltascope/internal/deltatest"
	"github.com/Sumatoshi-tech/deltascope/internal/render"
	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

const testConfig = `output:
  timezone: UTC
  color: false
`

// writeTable lays out a three-version table on disk: create, append, optimize.
func writeTable(t *testing.T) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "events")
	logDir := filepath.Join(root, deltalog.LogDir)
	require.NoError(t, os.MkdirAll(logDir, 0o755))

	log := deltatest.NewLog(root).
		Create(deltatest.Metadata(), deltatest.Files("a", 3, 2048)...).
		Write(deltatest.Files("b", 2, 4096)...).
		Op(delta.OpOptimize, deltatest.Files("c", 1, 6144),
			"part-a-00000.parquet", "part-a-00001.parquet", "part-a-00002.parquet").
		Build()

	for _, commit := range log.Commits {
		data, err := deltatest.EncodeCommit(commit)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(logDir, deltalog.CommitName(commit.Version)), data, 0o644))
	}

	return root
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "deltascope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	a := &app{
		out: &out,
		now: func() time.Time { return deltatest.Epoch.Add(30 * 24 * time.Hour) },
	}

	root := newRootCommand(a)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config", writeConfig(t, testConfig), "--log-level", "error"}, args...))

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func TestInspect_Text(t *testing.T) {
	t.Parallel()

	out, err := run(t, "inspect", writeTable(t))
	require.NoError(t, err)

	assert.Contains(t, out, "Overview")
	assert.Contains(t, out, "Protocol")
	assert.Contains(t, out, "Last operation")
	assert.Contains(t, out, string(delta.OpOptimize))
	assert.Contains(t, out, "Insights")
	assert.NotContains(t, out, "\x1b[")
}

func TestInspect_JSON(t *testing.T) {
	t.Parallel()

	out, err := run(t, "inspect", writeTable(t), "--format", "json")
	require.NoError(t, err)

	var decoded inspectOutput
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))

	assert.Equal(t, int64(2), decoded.Statistics.Version)
	assert.Equal(t, 3, decoded.Statistics.NumFiles)
	assert.Equal(t, int64(2*4096+6144), decoded.Statistics.TotalSizeBytes)
	assert.Nil(t, decoded.Statistics.Files)
	assert.Equal(t, int64(0), decoded.OldestRetainedVersion)
	assert.Equal(t, int64(2), decoded.LatestVersion)
	assert.Equal(t, 3, decoded.ReplayedCommits)
	assert.False(t, decoded.FromCheckpoint)
	assert.Equal(t, 2, decoded.Schema.ColumnCount)
}

func TestInspect_AtVersion(t *testing.T) {
	t.Parallel()

	out, err := run(t, "inspect", writeTable(t), "--version", "1", "-f", "yaml")
	require.NoError(t, err)

	var decoded inspectOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))

	assert.Equal(t, int64(1), decoded.Statistics.Version)
	assert.Equal(t, 5, decoded.Statistics.NumFiles)
	assert.Equal(t, int64(2), decoded.LatestVersion)
}

func TestInspect_Errors(t *testing.T) {
	t.Parallel()

	_, err := run(t, "inspect", filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, delta.ErrTableNotFound)

	_, err = run(t, "inspect", writeTable(t), "--format", "xml")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = run(t, "inspect", writeTable(t), "--version", "9")

	var notFound *delta.VersionNotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = run(t, "inspect")
	require.Error(t, err)
}

func TestHistory_Paging(t *testing.T) {
	t.Parallel()

	table := writeTable(t)

	out, err := run(t, "history", table, "--page-size", "2", "-f", "json")
	require.NoError(t, err)

	var page render.HistoryPage
	require.NoError(t, json.Unmarshal([]byte(out), &page))

	assert.Equal(t, 3, page.TotalEntries)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, int64(2), page.Entries[0].Version)

	out, err = run(t, "history", table, "--page-size", "2", "--page", "2", "--oldest-first", "-f", "json")
	require.NoError(t, err)

	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, int64(2), page.Entries[0].Version)

	_, err = run(t, "history", table, "--page", "5")
	require.ErrorIs(t, err, render.ErrPageOutOfRange)
}

func TestHistory_Text(t *testing.T) {
	t.Parallel()

	out, err := run(t, "history", writeTable(t))
	require.NoError(t, err)

	assert.Contains(t, out, "History (page 1 of 1, 3 commits)")
	assert.Contains(t, out, string(delta.OpCreateTable))
}

func TestFiles_Limit(t *testing.T) {
	t.Parallel()

	out, err := run(t, "files", writeTable(t), "--limit", "2", "-f", "json")
	require.NoError(t, err)

	var decoded filesOutput
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))

	assert.Equal(t, 3, decoded.NumFiles)
	require.Len(t, decoded.Files, 2)
	assert.Equal(t, "part-c-00000.parquet", decoded.Files[0].Path)
	assert.Equal(t, "part-b-00000.parquet", decoded.Files[1].Path)
}

func TestFiles_Text(t *testing.T) {
	t.Parallel()

	out, err := run(t, "files", writeTable(t))
	require.NoError(t, err)

	assert.Contains(t, out, "Files (largest 3 of 3)")
	assert.Contains(t, out, "part-c-00000.parquet")
}

func TestSchema(t *testing.T) {
	t.Parallel()

	out, err := run(t, "schema", writeTable(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Schema (2 columns)")

	out, err = run(t, "schema", writeTable(t), "-f", "json")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.InDelta(t, 2.0, decoded["column_count"], 0)
}

func TestConfigAndInsights(t *testing.T) {
	t.Parallel()

	table := writeTable(t)

	out, err := run(t, "config", table)
	require.NoError(t, err)
	assert.Contains(t, out, "Table")

	out, err = run(t, "insights", table)
	require.NoError(t, err)
	assert.Contains(t, out, "Insights (")
}

func TestTimeline(t *testing.T) {
	t.Parallel()

	table := writeTable(t)

	out, err := run(t, "timeline", table, "--timezone", "UTC")
	require.NoError(t, err)
	assert.Contains(t, out, "Operations by type")
	assert.Contains(t, out, "Operations by day")

	_, err = run(t, "timeline", table, "--timezone", "Nowhere/Atlantis")
	require.Error(t, err)
}

func TestPlot(t *testing.T) {
	t.Parallel()

	output := filepath.Join(t.TempDir(), "plot.html")

	_, err := run(t, "plot", writeTable(t), "-o", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "deltascope")

	_, err = run(t, "plot", writeTable(t))
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "deltascope dev")
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	root := newRootCommand(&app{out: &out, now: time.Now})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", writeConfig(t, testConfig), "--log-level", "loud", "version"})

	require.Error(t, root.ExecuteContext(context.Background()))
	assert.Empty(t, out.String())
}

func TestRoot_Subcommands(t *testing.T) {
	t.Parallel()

	names := []string{}
	for _, cmd := range NewRootCommand().Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"inspect", "history", "insights", "config", "timeline", "files", "schema", "plot", "mcp", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestOpen_SharesObjectCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	table := writeTable(t)

	a := &app{
		cfg:    config.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:  deltalog.NewObjectCache(1 << 20),
	}

	for range 2 {
		source, err := a.open(ctx, table)
		require.NoError(t, err)

		log, err := source.ListCommits(ctx)
		require.NoError(t, err)
		assert.Len(t, log.Commits, 3)
	}

	stats := a.cache.Stats()
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(3), stats.Misses)
}
