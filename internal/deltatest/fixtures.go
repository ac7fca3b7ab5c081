// Package deltatest provides in-memory transaction log fixtures for tests.
package deltatest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

// Epoch is the timestamp of version 0 in generated logs.
var Epoch = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

// DefaultSchema is a two-column schema used by generated metadata.
const DefaultSchema = `{"type":"struct","fields":[` +
	`{"name":"id","type":"long","nullable":false,"metadata":{}},` +
	`{"name":"day","type":"string","nullable":true,"metadata":{}}]}`

// File returns an add action with a deterministic modification time.
func File(path string, size int64, partitions map[string]string) delta.FileInfo {
	if partitions == nil {
		partitions = map[string]string{}
	}

	return delta.FileInfo{
		Path:             path,
		SizeBytes:        size,
		ModificationTime: Epoch,
		PartitionValues:  partitions,
	}
}

// Metadata returns table metadata with a random id and the given partition columns.
func Metadata(partitionColumns ...string) *delta.Metadata {
	created := Epoch.UnixMilli()

	if partitionColumns == nil {
		partitionColumns = []string{}
	}

	return &delta.Metadata{
		ID:               uuid.NewString(),
		Name:             "fixture",
		CreatedTime:      &created,
		PartitionColumns: partitionColumns,
		Configuration:    map[string]string{},
		SchemaString:     DefaultSchema,
	}
}

// Protocol returns a legacy (1, 2) protocol.
func Protocol() *delta.Protocol {
	return &delta.Protocol{MinReaderVersion: 1, MinWriterVersion: 2}
}

// LogBuilder assembles a CommitLog one commit at a time.
type LogBuilder struct {
	log  delta.CommitLog
	step time.Duration
}

// NewLog starts a log whose commits are spaced one hour apart.
func NewLog(location string) *LogBuilder {
	return &LogBuilder{log: delta.CommitLog{Location: location}, step: time.Hour}
}

// Spacing changes the gap between consecutive commit timestamps.
func (b *LogBuilder) Spacing(step time.Duration) *LogBuilder {
	b.step = step

	return b
}

// Create appends version 0 with metadata, protocol and the given files.
func (b *LogBuilder) Create(meta *delta.Metadata, files ...delta.FileInfo) *LogBuilder {
	commit := b.next(delta.OpCreateTable, int64(len(files)))
	commit.Metadata = meta
	commit.Protocol = Protocol()
	commit.Adds = files
	b.log.Commits = append(b.log.Commits, commit)

	return b
}

// Write appends a WRITE commit adding files.
func (b *LogBuilder) Write(files ...delta.FileInfo) *LogBuilder {
	commit := b.next(delta.OpWrite, int64(len(files)))
	commit.Adds = files
	b.log.Commits = append(b.log.Commits, commit)

	return b
}

// Op appends an arbitrary commit with the given operation, adds and removed paths.
func (b *LogBuilder) Op(op delta.Operation, adds []delta.FileInfo, removes ...string) *LogBuilder {
	commit := b.next(op, int64(len(adds)))
	commit.Adds = adds

	for _, path := range removes {
		commit.Removes = append(commit.Removes, delta.RemoveAction{
			Path:              path,
			DeletionTimestamp: commit.Entry.Timestamp,
			DataChange:        true,
		})
	}

	commit.Entry.Metrics.NumRemovedFiles = int64(len(removes))
	b.log.Commits = append(b.log.Commits, commit)

	return b
}

// Commit appends a fully specified commit. Its version is assigned by the builder.
func (b *LogBuilder) Commit(commit delta.Commit) *LogBuilder {
	next := b.next(commit.Entry.Operation, 0)
	commit.Version = next.Version
	commit.Entry.Version = next.Version

	if commit.Entry.Timestamp == 0 {
		commit.Entry.Timestamp = next.Entry.Timestamp
	}

	b.log.Commits = append(b.log.Commits, commit)

	return b
}

// Checkpoint attaches a checkpoint snapshot.
func (b *LogBuilder) Checkpoint(cp *delta.Checkpoint) *LogBuilder {
	b.log.Checkpoint = cp

	return b
}

// Prune drops all commits below version.
func (b *LogBuilder) Prune(version int64) *LogBuilder {
	kept := b.log.Commits[:0]

	for _, commit := range b.log.Commits {
		if commit.Version >= version {
			kept = append(kept, commit)
		}
	}

	b.log.Commits = kept

	return b
}

// Build returns the assembled log.
func (b *LogBuilder) Build() *delta.CommitLog {
	out := b.log

	return &out
}

func (b *LogBuilder) next(op delta.Operation, added int64) delta.Commit {
	version := int64(len(b.log.Commits))
	if n := len(b.log.Commits); n > 0 {
		version = b.log.Commits[n-1].Version + 1
	}

	ts := Epoch.Add(time.Duration(version) * b.step).UnixMilli()

	return delta.Commit{
		Version: version,
		Entry: delta.CommitEntry{
			Version:    version,
			Timestamp:  ts,
			Operation:  op,
			EngineInfo: "deltatest",
			Metrics:    delta.OperationMetrics{NumAddedFiles: added},
		},
	}
}

// Files generates n unpartitioned files of the given size named part-<prefix>-<i>.parquet.
func Files(prefix string, n int, size int64) []delta.FileInfo {
	files := make([]delta.FileInfo, 0, n)
	for i := range n {
		files = append(files, File(fmt.Sprintf("part-%s-%05d.parquet", prefix, i), size, nil))
	}

	return files
}
