// Package delta defines the decoded data model of a Delta Lake transaction log:
// commits, file actions, table metadata, protocol and the reconstructed table state.
package delta

import (
	"maps"
	"slices"
	"time"
)

// FileInfo is one data file referenced by an add action.
type FileInfo struct {
	Path             string            `json:"path"                  yaml:"path"`
	SizeBytes        int64             `json:"size_bytes"            yaml:"size_bytes"`
	ModificationTime time.Time         `json:"modification_time"     yaml:"modification_time"`
	PartitionValues  map[string]string `json:"partition_values"      yaml:"partition_values"`
	NumRecords       *int64            `json:"num_records,omitempty" yaml:"num_records,omitempty"`
}

// Clone returns a copy that shares no maps or pointers with f.
func (f FileInfo) Clone() FileInfo {
	out := f

	out.PartitionValues = maps.Clone(f.PartitionValues)
	if out.PartitionValues == nil {
		out.PartitionValues = map[string]string{}
	}

	if f.NumRecords != nil {
		n := *f.NumRecords
		out.NumRecords = &n
	}

	return out
}

// Equal reports value equality.
func (f FileInfo) Equal(other FileInfo) bool {
	if f.Path != other.Path || f.SizeBytes != other.SizeBytes || !f.ModificationTime.Equal(other.ModificationTime) {
		return false
	}

	if (f.NumRecords == nil) != (other.NumRecords == nil) {
		return false
	}

	if f.NumRecords != nil && *f.NumRecords != *other.NumRecords {
		return false
	}

	return maps.Equal(f.PartitionValues, other.PartitionValues)
}

// RemoveAction is a logical deletion of a previously added file.
type RemoveAction struct {
	Path              string `json:"path"`
	DeletionTimestamp int64  `json:"deletion_timestamp"`
	DataChange        bool   `json:"data_change"`
}

// Metadata is the table-level descriptor carried by metaData actions.
// A newer metaData action replaces the previous one wholesale.
type Metadata struct {
	ID               string            `json:"id"                     yaml:"id"`
	Name             string            `json:"name,omitempty"         yaml:"name,omitempty"`
	Description      string            `json:"description,omitempty"  yaml:"description,omitempty"`
	CreatedTime      *int64            `json:"created_time,omitempty" yaml:"created_time,omitempty"`
	PartitionColumns []string          `json:"partition_columns"      yaml:"partition_columns"`
	Configuration    map[string]string `json:"configuration"          yaml:"configuration"`
	SchemaString     string            `json:"schema_string"          yaml:"-"`
}

// CreatedAt returns the creation time when the log recorded one.
func (m Metadata) CreatedAt() (time.Time, bool) {
	if m.CreatedTime == nil {
		return time.Time{}, false
	}

	return time.UnixMilli(*m.CreatedTime), true
}

// IsPartitioned reports whether the table declares partition columns.
func (m Metadata) IsPartitioned() bool {
	return len(m.PartitionColumns) > 0
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	out := m
	out.PartitionColumns = slices.Clone(m.PartitionColumns)
	out.Configuration = maps.Clone(m.Configuration)

	if m.CreatedTime != nil {
		ts := *m.CreatedTime
		out.CreatedTime = &ts
	}

	return out
}

// Equal reports value equality.
func (m Metadata) Equal(other Metadata) bool {
	if m.ID != other.ID || m.Name != other.Name || m.Description != other.Description || m.SchemaString != other.SchemaString {
		return false
	}

	if (m.CreatedTime == nil) != (other.CreatedTime == nil) {
		return false
	}

	if m.CreatedTime != nil && *m.CreatedTime != *other.CreatedTime {
		return false
	}

	return slices.Equal(m.PartitionColumns, other.PartitionColumns) && maps.Equal(m.Configuration, other.Configuration)
}

// Protocol holds the minimum reader/writer versions and the table feature sets.
type Protocol struct {
	MinReaderVersion int      `json:"min_reader_version" yaml:"min_reader_version"`
	MinWriterVersion int      `json:"min_writer_version" yaml:"min_writer_version"`
	ReaderFeatures   []string `json:"reader_features"    yaml:"reader_features"`
	WriterFeatures   []string `json:"writer_features"    yaml:"writer_features"`
}

// HasReaderFeature reports whether the named reader feature is enabled.
func (p Protocol) HasReaderFeature(name string) bool {
	return slices.Contains(p.ReaderFeatures, name)
}

// HasWriterFeature reports whether the named writer feature is enabled.
func (p Protocol) HasWriterFeature(name string) bool {
	return slices.Contains(p.WriterFeatures, name)
}

// Clone returns a deep copy.
func (p Protocol) Clone() Protocol {
	out := p
	out.ReaderFeatures = slices.Clone(p.ReaderFeatures)
	out.WriterFeatures = slices.Clone(p.WriterFeatures)

	return out
}

// Equal reports value equality. Feature order is ignored.
func (p Protocol) Equal(other Protocol) bool {
	if p.MinReaderVersion != other.MinReaderVersion || p.MinWriterVersion != other.MinWriterVersion {
		return false
	}

	return sameSet(p.ReaderFeatures, other.ReaderFeatures) && sameSet(p.WriterFeatures, other.WriterFeatures)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	sa := slices.Sorted(slices.Values(a))
	sb := slices.Sorted(slices.Values(b))

	return slices.Equal(sa, sb)
}

// Commit is one decoded commit file: its commitInfo plus the file and table actions it applied.
type Commit struct {
	Version  int64
	Entry    CommitEntry
	Adds     []FileInfo
	Removes  []RemoveAction
	Metadata *Metadata
	Protocol *Protocol
}

// Checkpoint is a full-state snapshot at Version.
type Checkpoint struct {
	Version  int64
	Files    []FileInfo
	Metadata *Metadata
	Protocol *Protocol
}

// CheckpointFile describes one checkpoint found in the log directory.
// Multi-part checkpoints are reported once with Parts > 1 and summed sizes.
type CheckpointFile struct {
	Name      string    `json:"name"       yaml:"name"`
	Version   int64     `json:"version"    yaml:"version"`
	SizeBytes int64     `json:"size_bytes" yaml:"size_bytes"`
	ModTime   time.Time `json:"mod_time"   yaml:"mod_time"`
	Parts     int       `json:"parts"      yaml:"parts"`
}

// LogInventory is the file-level accounting of a _delta_log directory.
type LogInventory struct {
	JSONFiles    int              `json:"json_files"     yaml:"json_files"`
	LogSizeBytes int64            `json:"log_size_bytes" yaml:"log_size_bytes"`
	Checkpoints  []CheckpointFile `json:"checkpoints"    yaml:"checkpoints"`
}

// LatestCheckpoint returns the highest-version checkpoint, if any.
func (inv LogInventory) LatestCheckpoint() (CheckpointFile, bool) {
	if len(inv.Checkpoints) == 0 {
		return CheckpointFile{}, false
	}

	return slices.MaxFunc(inv.Checkpoints, func(a, b CheckpointFile) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		default:
			return 0
		}
	}), true
}

// CommitLog is everything a log reader returns for one analysis pass.
// Commits are ordered by ascending version. Versions below the oldest retained
// commit have been pruned and are only reachable through Checkpoint.
type CommitLog struct {
	Location   string
	Commits    []Commit
	Checkpoint *Checkpoint
	Inventory  LogInventory
}

// IsEmpty reports whether neither commits nor a checkpoint were found.
func (l *CommitLog) IsEmpty() bool {
	return l == nil || (len(l.Commits) == 0 && l.Checkpoint == nil)
}

// OldestRetainedVersion is the lowest version whose state can be reconstructed:
// 0 when the full commit history is retained, else the checkpoint version.
// Without either, the first retained commit is reported.
func (l *CommitLog) OldestRetainedVersion() int64 {
	switch {
	case len(l.Commits) > 0 && l.Commits[0].Version == 0:
		return 0
	case l.Checkpoint != nil:
		return l.Checkpoint.Version
	case len(l.Commits) > 0:
		return l.Commits[0].Version
	default:
		return 0
	}
}

// LatestVersion is the highest version available.
func (l *CommitLog) LatestVersion() int64 {
	latest := int64(-1)
	if l.Checkpoint != nil {
		latest = l.Checkpoint.Version
	}

	if n := len(l.Commits); n > 0 {
		latest = max(latest, l.Commits[n-1].Version)
	}

	return latest
}

// History returns the commitInfo entries of all retained commits, oldest first.
func (l *CommitLog) History() []CommitEntry {
	history := make([]CommitEntry, 0, len(l.Commits))
	for _, commit := range l.Commits {
		history = append(history, commit.Entry.Clone())
	}

	return history
}
