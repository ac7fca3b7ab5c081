package render

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/deltascope/internal/features"
	"github.com/Sumatoshi-tech/deltascope/internal/insights"
	"github.com/Sumatoshi-tech/deltascope/internal/stats"
	"github.com/Sumatoshi-tech/deltascope/internal/timeline"
	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
	"github.com/Sumatoshi-tech/deltascope/pkg/units"
)

// Overview writes the table summary: identity, size, versions.
func (r *Renderer) Overview(s *stats.TableStatistics, oldestRetained, latest int64) {
	r.section("Overview")
	r.field("Location", s.TablePath)
	r.field("Table ID", s.Metadata.ID)

	if s.Metadata.Name != "" {
		r.field("Name", s.Metadata.Name)
	}

	if s.Metadata.Description != "" {
		r.field("Description", s.Metadata.Description)
	}

	r.field("Version", s.Version)
	r.field("Files", humanize.Comma(int64(s.NumFiles)))
	r.field("Total size", bytesOf(s.TotalSizeBytes))
	r.field("Average file size", fmt.Sprintf("%.2f MiB", units.ToMiB(int64(s.AverageFileSize()))))

	if s.NumRows != nil {
		r.field("Rows", humanize.Comma(*s.NumRows))
	}

	r.field("Partition columns", listOrDash(s.PartitionColumns))
	r.field("Versions in history", humanize.Comma(int64(s.TotalVersions)))
	r.field("Reconstructible", fmt.Sprintf("%d..%d", oldestRetained, latest))
	r.field("Created", r.optionalTime(s.CreatedTime))
	r.field("Last vacuum", r.optionalTime(s.LastVacuum))
}

// Protocol writes the reader/writer requirements and the most recent operation.
func (r *Renderer) Protocol(s *stats.TableStatistics) {
	r.section("Protocol")
	r.field("Min reader version", s.MinReaderVersion)
	r.field("Min writer version", s.MinWriterVersion)
	r.field("Reader features", listOrDash(s.ReaderFeatures))
	r.field("Writer features", listOrDash(s.WriterFeatures))

	r.section("Last operation")

	last := s.LastOperation
	if last == nil {
		fmt.Fprintln(r.w, "  no operations recorded")

		return
	}

	r.field("Version", last.Version)
	r.field("Operation", string(last.Operation))
	r.field("Timestamp", r.timestamp(last.Timestamp))

	if last.Parameters.Mode != "" {
		r.field("Mode", last.Parameters.Mode)
	}

	if last.Parameters.Predicate != "" {
		r.field("Predicate", last.Parameters.Predicate)
	}

	r.field("Files added/removed", fmt.Sprintf("%d / %d", last.Metrics.NumAddedFiles, last.Metrics.NumRemovedFiles))
	r.field("Rows added", humanize.Comma(last.Metrics.NumAddedRows))
}

// Schema writes the current columns in schema order.
func (r *Renderer) Schema(columns []delta.Column) {
	r.section(fmt.Sprintf("Schema (%d columns)", len(columns)))

	tbl := newTable()
	tbl.AppendHeader(table.Row{"#", "Column", "Type", "Nullable", "Partition"})

	for i, column := range columns {
		tbl.AppendRow(table.Row{i + 1, column.Name, column.Type, yesNo(column.Nullable), yesNo(column.Partition)})
	}

	r.table(tbl)
}

// Files writes the limit largest active files. A non-positive limit shows all.
func (r *Renderer) Files(files []delta.FileInfo, limit int) {
	ordered := slices.Clone(files)
	slices.SortStableFunc(ordered, func(a, b delta.FileInfo) int {
		if c := cmp.Compare(b.SizeBytes, a.SizeBytes); c != 0 {
			return c
		}

		return cmp.Compare(a.Path, b.Path)
	})

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}

	r.section(fmt.Sprintf("Files (largest %d of %s)", len(ordered), humanize.Comma(int64(len(files)))))

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Path", "Size", "Partition", "Modified"})
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	for _, file := range ordered {
		tbl.AppendRow(table.Row{
			file.Path,
			bytesOf(file.SizeBytes),
			partitionLabel(file.PartitionValues),
			r.timestamp(file.ModificationTime),
		})
	}

	r.table(tbl)
}

// History writes one page of commit history.
func (r *Renderer) History(page HistoryPage) {
	r.section(fmt.Sprintf("History (page %d of %d, %s commits)",
		page.Page, page.TotalPages, humanize.Comma(int64(page.TotalEntries))))

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Version", "Timestamp", "Operation", "Files +/-", "Rows +", "Engine"})

	for _, entry := range page.Entries {
		tbl.AppendRow(table.Row{
			entry.Version,
			r.timestamp(entry.Time()),
			string(entry.Operation),
			fmt.Sprintf("%d/%d", entry.Metrics.NumAddedFiles, entry.Metrics.NumRemovedFiles),
			humanize.Comma(entry.Metrics.NumAddedRows),
			entry.EngineInfo,
		})
	}

	r.table(tbl)
}

// Configuration writes table properties and the feature flags derived from them.
func (r *Renderer) Configuration(report *features.Report) {
	r.section("Table")
	r.field("Table ID", report.TableID)
	r.field("Created", r.optionalTime(report.CreatedTime))
	r.field("Partition columns", listOrDash(report.PartitionColumns))

	r.section("Advanced features")

	adv := report.Advanced
	r.field("Deletion vectors", yesNo(adv.DeletionVectors))
	r.field("Column mapping", adv.ColumnMapping.Mode)
	r.field("Liquid clustering", yesNo(adv.LiquidClustering))
	r.field("Timestamp NTZ", yesNo(adv.TimestampNTZ))
	r.field("Change data feed", yesNo(adv.ChangeDataFeed))
	r.field("Auto compact", yesNo(adv.AutoOptimize.AutoCompact))
	r.field("Optimize write", yesNo(adv.AutoOptimize.OptimizeWrite))
	r.field("Indexed columns", adv.DataSkipping.NumIndexedCols)
	r.field("Vacuum retention", fmt.Sprintf("%.0f hours", adv.VacuumRetentionHours))

	for _, name := range slices.Sorted(maps.Keys(adv.CheckConstraints)) {
		r.field("Constraint "+name, adv.CheckConstraints[name])
	}

	r.section("Transaction log")
	r.field("JSON commits", humanize.Comma(int64(report.TransactionLog.NumJSONFiles)))
	r.field("Checkpoints", report.TransactionLog.NumCheckpoints)
	r.field("Log size", bytesOf(report.TransactionLog.LogSizeBytes))

	if report.Checkpoint.HasCheckpoints {
		r.field("Latest checkpoint", report.Checkpoint.LatestCheckpoint)
		r.field("Checkpoint size", bytesOf(report.Checkpoint.CheckpointSizeBytes))
	}

	if len(report.TableProperties) > 0 {
		r.section("Properties")

		tbl := newTable()
		tbl.AppendHeader(table.Row{"Key", "Value"})

		for _, key := range slices.Sorted(maps.Keys(report.TableProperties)) {
			tbl.AppendRow(table.Row{key, report.TableProperties[key]})
		}

		r.table(tbl)
	}

	for _, warning := range report.Warnings {
		fmt.Fprintf(r.w, "  %s %s\n", r.warning.Sprint("warning:"), warning.Error())
	}
}

// Timeline writes operation counts, daily activity and write patterns.
func (r *Renderer) Timeline(report *timeline.Report) {
	r.section("Timeline")
	r.field("Operations", humanize.Comma(int64(report.TotalOperations)))
	r.field("Versions per day", fmt.Sprintf("%.2f", report.VersionCreationRate))

	if report.FirstOperation != nil {
		r.field("First operation", fmt.Sprintf("v%d %s %s",
			report.FirstOperation.Version, report.FirstOperation.Operation, r.timestamp(report.FirstOperation.Time())))
	}

	if report.LatestOperation != nil {
		r.field("Latest operation", fmt.Sprintf("v%d %s %s",
			report.LatestOperation.Version, report.LatestOperation.Operation, r.timestamp(report.LatestOperation.Time())))
	}

	if len(report.OperationsByType) > 0 {
		r.section("Operations by type")

		tbl := newTable()
		tbl.AppendHeader(table.Row{"Operation", "Count"})

		ops := slices.Collect(maps.Keys(report.OperationsByType))
		slices.SortFunc(ops, func(a, b delta.Operation) int {
			if c := cmp.Compare(report.OperationsByType[b], report.OperationsByType[a]); c != 0 {
				return c
			}

			return cmp.Compare(a, b)
		})

		for _, op := range ops {
			tbl.AppendRow(table.Row{string(op), report.OperationsByType[op]})
		}

		r.table(tbl)
	}

	if len(report.OperationsByDay) > 0 {
		r.section("Operations by day")

		tbl := newTable()
		tbl.AppendHeader(table.Row{"Day", "Count", "Versions"})

		for _, bucket := range report.OperationsByDay {
			tbl.AppendRow(table.Row{bucket.Day, bucket.Count, versionSpan(bucket.Commits)})
		}

		r.table(tbl)
	}

	for _, pattern := range report.WritePatterns {
		fmt.Fprintf(r.w, "  %s %s\n", r.info.Sprint("pattern:"), string(pattern))
	}
}

// Insights writes findings in the order given, colored by severity.
func (r *Renderer) Insights(found []insights.Insight) {
	counts := insights.CountBySeverity(found)
	r.section(fmt.Sprintf("Insights (%d critical, %d warning, %d info)",
		counts[insights.SeverityCritical], counts[insights.SeverityWarning], counts[insights.SeverityInfo]))

	for _, insight := range found {
		badge := r.severityColor(insight.Severity).Sprintf("[%s]", strings.ToUpper(insight.Severity.String()))
		fmt.Fprintf(r.w, "\n  %s %s (%s)\n", badge, r.label.Sprint(insight.Title), insight.Category)
		fmt.Fprintf(r.w, "    %s\n", insight.Description)

		if insight.Recommendation != "" {
			fmt.Fprintf(r.w, "    -> %s\n", insight.Recommendation)
		}
	}
}

func partitionLabel(values map[string]string) string {
	if len(values) == 0 {
		return noValue
	}

	parts := make([]string, 0, len(values))
	for _, key := range slices.Sorted(maps.Keys(values)) {
		parts = append(parts, key+"="+values[key])
	}

	return strings.Join(parts, "/")
}

func versionSpan(commits []delta.CommitEntry) string {
	if len(commits) == 0 {
		return noValue
	}

	first, last := commits[0].Version, commits[len(commits)-1].Version
	if first == last {
		return fmt.Sprint(first)
	}

	return fmt.Sprintf("%d-%d", first, last)
}
