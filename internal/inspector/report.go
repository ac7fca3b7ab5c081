package inspector

import (
	"cmp"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/deltascope/internal/features"
	"github.com/Sumatoshi-tech/deltascope/internal/insights"
	"github.com/Sumatoshi-tech/deltascope/internal/stats"
	"github.com/Sumatoshi-tech/deltascope/internal/timeline"
	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

// Report is the result of one analysis pass. It is never mutated; every
// accessor derives its view from the same snapshot.
type Report struct {
	location       string
	state          *delta.TableState
	stats          *stats.TableStatistics
	history        []delta.CommitEntry
	inventory      delta.LogInventory
	oldestRetained int64
	latest         int64
	fromCheckpoint bool
	replayed       int
	analyzer       *insights.Analyzer
}

// SchemaSummary is the current schema of the table. Historical schema
// evolution is not tracked; only the current column set is reported.
type SchemaSummary struct {
	Columns          []delta.Column `json:"columns"           yaml:"columns"`
	ColumnCount      int            `json:"column_count"      yaml:"column_count"`
	PartitionColumns []string       `json:"partition_columns" yaml:"partition_columns"`
}

// Location is the inspected table location.
func (r *Report) Location() string {
	return r.location
}

// Statistics returns the aggregate statistics of the inspected version.
func (r *Report) Statistics() *stats.TableStatistics {
	return r.stats
}

// State returns the reconstructed table state.
func (r *Report) State() *delta.TableState {
	return r.state
}

// History returns the retained commit entries newest first, or oldest first
// when reverse is set.
func (r *Report) History(reverse bool) []delta.CommitEntry {
	out := make([]delta.CommitEntry, 0, len(r.history))
	for _, entry := range r.history {
		out = append(out, entry.Clone())
	}

	slices.SortFunc(out, func(a, b delta.CommitEntry) int {
		if reverse {
			return cmp.Compare(a.Version, b.Version)
		}

		return cmp.Compare(b.Version, a.Version)
	})

	return out
}

// Configuration extracts table properties and feature flags.
func (r *Report) Configuration() *features.Report {
	return features.Extract(r.state.Metadata, r.state.Protocol, r.inventory)
}

// Timeline groups the retained history by operation and by day in loc.
func (r *Report) Timeline(loc *time.Location) *timeline.Report {
	return timeline.Analyze(r.history, loc)
}

// Insights evaluates the health rules against the statistics as of now.
func (r *Report) Insights(now time.Time) []insights.Insight {
	return r.analyzer.Analyze(r.stats, now)
}

// SchemaSummary returns the current schema with its column count.
func (r *Report) SchemaSummary() SchemaSummary {
	return SchemaSummary{
		Columns:          slices.Clone(r.stats.Schema),
		ColumnCount:      r.stats.ColumnCount(),
		PartitionColumns: slices.Clone(r.stats.PartitionColumns),
	}
}

// Inventory returns the transaction log file accounting.
func (r *Report) Inventory() delta.LogInventory {
	return r.inventory
}

// VersionRange returns the oldest reconstructible and the newest version.
func (r *Report) VersionRange() (oldest, latest int64) {
	return r.oldestRetained, r.latest
}

// FromCheckpoint reports whether replay started from a checkpoint.
func (r *Report) FromCheckpoint() bool {
	return r.fromCheckpoint
}

// ReplayedCommits is the number of commit files applied on top of the base.
func (r *Report) ReplayedCommits() int {
	return r.replayed
}
