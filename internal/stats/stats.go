// Package stats derives aggregate table statistics from a reconstructed state and its history.
package stats

import (
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

// OperationSummary describes the most recent commit.
type OperationSummary struct {
	Version    int64                     `json:"version"    yaml:"version"`
	Operation  delta.Operation           `json:"operation"  yaml:"operation"`
	Timestamp  time.Time                 `json:"timestamp"  yaml:"timestamp"`
	Parameters delta.OperationParameters `json:"parameters" yaml:"parameters"`
	Metrics    delta.OperationMetrics    `json:"metrics"    yaml:"metrics"`
}

// MetadataSummary is the identifying part of the table metadata.
type MetadataSummary struct {
	ID          string `json:"id"                     yaml:"id"`
	Name        string `json:"name,omitempty"         yaml:"name,omitempty"`
	Description string `json:"description,omitempty"  yaml:"description,omitempty"`
	CreatedTime *int64 `json:"created_time,omitempty" yaml:"created_time,omitempty"`
}

// TableStatistics is a read-only view derived from a TableState plus the retained history.
// It is never mutated after Compute returns.
type TableStatistics struct {
	TablePath        string            `json:"table_path"               yaml:"table_path"`
	Version          int64             `json:"version"                  yaml:"version"`
	NumFiles         int               `json:"num_files"                yaml:"num_files"`
	TotalSizeBytes   int64             `json:"total_size_bytes"         yaml:"total_size_bytes"`
	NumRows          *int64            `json:"num_rows,omitempty"       yaml:"num_rows,omitempty"`
	Schema           []delta.Column    `json:"schema"                   yaml:"schema"`
	PartitionColumns []string          `json:"partition_columns"        yaml:"partition_columns"`
	Files            []delta.FileInfo  `json:"files"                    yaml:"files"`
	Metadata         MetadataSummary   `json:"metadata"                 yaml:"metadata"`
	TotalVersions    int               `json:"total_versions"           yaml:"total_versions"`
	OldestVersion    int64             `json:"oldest_version"           yaml:"oldest_version"`
	MinReaderVersion int               `json:"min_reader_version"       yaml:"min_reader_version"`
	MinWriterVersion int               `json:"min_writer_version"       yaml:"min_writer_version"`
	ReaderFeatures   []string          `json:"reader_features"          yaml:"reader_features"`
	WriterFeatures   []string          `json:"writer_features"          yaml:"writer_features"`
	CreatedTime      *time.Time        `json:"created_time,omitempty"   yaml:"created_time,omitempty"`
	LastOperation    *OperationSummary `json:"last_operation,omitempty" yaml:"last_operation,omitempty"`
	LastVacuum       *time.Time        `json:"last_vacuum,omitempty"    yaml:"last_vacuum,omitempty"`
}

// Aggregator computes TableStatistics. It is stateless apart from its logger.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an Aggregator. A nil logger discards warnings.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Aggregator{logger: logger}
}

// Compute derives statistics from state and the full retained history.
// History may be in any order; version numbers decide recency.
func (a *Aggregator) Compute(state *delta.TableState, history []delta.CommitEntry, location string) *TableStatistics {
	files := state.Files()

	out := &TableStatistics{
		TablePath:        location,
		Version:          state.Version,
		NumFiles:         len(files),
		TotalSizeBytes:   state.TotalSizeBytes(),
		NumRows:          sumRecords(files),
		Schema:           []delta.Column{},
		PartitionColumns: []string{},
		Files:            files,
		TotalVersions:    len(history),
		ReaderFeatures:   []string{},
		WriterFeatures:   []string{},
	}

	if meta := state.Metadata; meta != nil {
		out.PartitionColumns = slices.Clone(meta.PartitionColumns)
		if out.PartitionColumns == nil {
			out.PartitionColumns = []string{}
		}

		out.Metadata = MetadataSummary{
			ID:          meta.ID,
			Name:        meta.Name,
			Description: meta.Description,
		}

		if created, ok := meta.CreatedAt(); ok {
			millis := *meta.CreatedTime
			out.Metadata.CreatedTime = &millis
			out.CreatedTime = &created
		}

		columns, err := meta.Schema()
		if err != nil {
			a.logger.Warn("schema could not be parsed", "table", location, "error", err)
		} else if columns != nil {
			out.Schema = columns
		}
	}

	if proto := state.Protocol; proto != nil {
		out.MinReaderVersion = proto.MinReaderVersion
		out.MinWriterVersion = proto.MinWriterVersion
		out.ReaderFeatures = append(out.ReaderFeatures, proto.ReaderFeatures...)
		out.WriterFeatures = append(out.WriterFeatures, proto.WriterFeatures...)
	}

	applyHistory(out, history)

	return out
}

func applyHistory(out *TableStatistics, history []delta.CommitEntry) {
	var (
		last   *delta.CommitEntry
		vacuum *delta.CommitEntry
	)

	for i := range history {
		entry := &history[i]

		if i == 0 || entry.Version < out.OldestVersion {
			out.OldestVersion = entry.Version
		}

		if last == nil || entry.Version > last.Version {
			last = entry
		}

		if entry.Operation.IsVacuum() && (vacuum == nil || entry.Version > vacuum.Version) {
			vacuum = entry
		}
	}

	if last != nil {
		clone := last.Clone()
		out.LastOperation = &OperationSummary{
			Version:    clone.Version,
			Operation:  clone.Operation,
			Timestamp:  clone.Time(),
			Parameters: clone.Parameters,
			Metrics:    clone.Metrics,
		}
	}

	if vacuum != nil {
		ts := vacuum.Time()
		out.LastVacuum = &ts
	}
}

// sumRecords totals per-file record counts. It returns nil unless every file carries one.
func sumRecords(files []delta.FileInfo) *int64 {
	if len(files) == 0 {
		return nil
	}

	var total int64

	for _, file := range files {
		if file.NumRecords == nil {
			return nil
		}

		total += *file.NumRecords
	}

	return &total
}

// FileSizes returns the size of every active file in path order.
func (s *TableStatistics) FileSizes() []int64 {
	sizes := make([]int64, len(s.Files))
	for i, file := range s.Files {
		sizes[i] = file.SizeBytes
	}

	return sizes
}

// AverageFileSize returns the mean active file size in bytes, or 0 for an empty table.
func (s *TableStatistics) AverageFileSize() float64 {
	if s.NumFiles == 0 {
		return 0
	}

	return float64(s.TotalSizeBytes) / float64(s.NumFiles)
}

// IsPartitioned reports whether the table declares partition columns.
func (s *TableStatistics) IsPartitioned() bool {
	return len(s.PartitionColumns) > 0
}

// FilesPerPartition groups active files by their exact partition-value tuple.
// Keys are quoted col=value pairs in column-name order, so separators inside
// names or values cannot merge two distinct tuples.
func (s *TableStatistics) FilesPerPartition() map[string]int {
	counts := make(map[string]int)

	for _, file := range s.Files {
		pairs := make([]string, 0, len(file.PartitionValues))
		for _, column := range slices.Sorted(maps.Keys(file.PartitionValues)) {
			pairs = append(pairs, strconv.Quote(column)+"="+strconv.Quote(file.PartitionValues[column]))
		}

		counts[strings.Join(pairs, ",")]++
	}

	return counts
}

// ColumnCount returns the number of top-level schema columns.
func (s *TableStatistics) ColumnCount() int {
	return len(s.Schema)
}
