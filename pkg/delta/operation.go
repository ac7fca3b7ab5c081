package delta

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Operation is the operation tag recorded in a commit's commitInfo.
type Operation string

// Well-known operation tags. Unknown tags are kept verbatim.
const (
	OpWrite                Operation = "WRITE"
	OpMerge                Operation = "MERGE"
	OpUpdate               Operation = "UPDATE"
	OpDelete               Operation = "DELETE"
	OpOptimize             Operation = "OPTIMIZE"
	OpVacuum               Operation = "VACUUM"
	OpVacuumStart          Operation = "VACUUM START"
	OpVacuumEnd            Operation = "VACUUM END"
	OpCreateTable          Operation = "CREATE TABLE"
	OpCreateOrReplace      Operation = "CREATE OR REPLACE TABLE"
	OpStreamingUpdate      Operation = "STREAMING UPDATE"
	OpRestore              Operation = "RESTORE"
	OpSetTableProperties   Operation = "SET TBLPROPERTIES"
	OpUnsetTableProperties Operation = "UNSET TBLPROPERTIES"
	OpAddColumns           Operation = "ADD COLUMNS"
	OpChangeColumn         Operation = "CHANGE COLUMN"
	OpUnknown              Operation = "UNKNOWN"
)

// IsVacuum reports whether the operation marks a completed VACUUM.
// "VACUUM START" is excluded because the run may not have finished.
func (o Operation) IsVacuum() bool {
	return o == OpVacuum || o == OpVacuumEnd
}

// IsDataWrite reports whether the operation is one of the row-level write kinds
// considered by write-pattern heuristics.
func (o Operation) IsDataWrite() bool {
	switch o {
	case OpWrite, OpMerge, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// IsSchemaChange reports whether the operation typically rewrites table metadata.
func (o Operation) IsSchemaChange() bool {
	switch o {
	case OpCreateTable, OpCreateOrReplace, OpSetTableProperties, OpUnsetTableProperties, OpAddColumns, OpChangeColumn:
		return true
	default:
		return false
	}
}

// Well-known operationParameters keys.
const (
	ParamMode        = "mode"
	ParamPartitionBy = "partitionBy"
	ParamPredicate   = "predicate"
	ParamZOrderBy    = "zOrderBy"
)

// OperationParameters is the typed view of a commit's operationParameters.
type OperationParameters struct {
	Mode        string            `json:"mode,omitempty"         yaml:"mode,omitempty"`
	PartitionBy string            `json:"partition_by,omitempty" yaml:"partition_by,omitempty"`
	Predicate   string            `json:"predicate,omitempty"    yaml:"predicate,omitempty"`
	ZOrderBy    string            `json:"z_order_by,omitempty"   yaml:"z_order_by,omitempty"`
	Other       map[string]string `json:"other,omitempty"        yaml:"other,omitempty"`
}

// NewOperationParameters splits raw parameters into known fields and the Other bucket.
func NewOperationParameters(raw map[string]string) OperationParameters {
	var params OperationParameters

	for key, value := range raw {
		switch key {
		case ParamMode:
			params.Mode = value
		case ParamPartitionBy:
			params.PartitionBy = value
		case ParamPredicate:
			params.Predicate = value
		case ParamZOrderBy:
			params.ZOrderBy = value
		default:
			if params.Other == nil {
				params.Other = make(map[string]string)
			}

			params.Other[key] = value
		}
	}

	return params
}

// IsEmpty reports whether no parameter was recorded.
func (p OperationParameters) IsEmpty() bool {
	return p.Mode == "" && p.PartitionBy == "" && p.Predicate == "" && p.ZOrderBy == "" && len(p.Other) == 0
}

// Partitioned reports whether the write declared a non-empty partition spec.
func (p OperationParameters) Partitioned() bool {
	spec := strings.TrimSpace(p.PartitionBy)

	return spec != "" && spec != "[]"
}

// OperationMetrics is the typed view of a commit's operationMetrics.
type OperationMetrics struct {
	NumAddedFiles   int64            `json:"num_added_files"   yaml:"num_added_files"`
	NumRemovedFiles int64            `json:"num_removed_files" yaml:"num_removed_files"`
	NumAddedRows    int64            `json:"num_added_rows"    yaml:"num_added_rows"`
	NumDeletedRows  int64            `json:"num_deleted_rows"  yaml:"num_deleted_rows"`
	NumUpdatedRows  int64            `json:"num_updated_rows"  yaml:"num_updated_rows"`
	NumAddedBytes   int64            `json:"num_added_bytes"   yaml:"num_added_bytes"`
	NumRemovedBytes int64            `json:"num_removed_bytes" yaml:"num_removed_bytes"`
	Other           map[string]int64 `json:"other,omitempty"   yaml:"other,omitempty"`
}

// metricAliases maps Spark and delta-rs metric names onto typed fields.
var metricAliases = map[string]func(*OperationMetrics) *int64{
	"num_added_files":       func(m *OperationMetrics) *int64 { return &m.NumAddedFiles },
	"numAddedFiles":         func(m *OperationMetrics) *int64 { return &m.NumAddedFiles },
	"numFiles":              func(m *OperationMetrics) *int64 { return &m.NumAddedFiles },
	"numTargetFilesAdded":   func(m *OperationMetrics) *int64 { return &m.NumAddedFiles },
	"num_removed_files":     func(m *OperationMetrics) *int64 { return &m.NumRemovedFiles },
	"numRemovedFiles":       func(m *OperationMetrics) *int64 { return &m.NumRemovedFiles },
	"numTargetFilesRemoved": func(m *OperationMetrics) *int64 { return &m.NumRemovedFiles },
	"num_added_rows":        func(m *OperationMetrics) *int64 { return &m.NumAddedRows },
	"numOutputRows":         func(m *OperationMetrics) *int64 { return &m.NumAddedRows },
	"numTargetRowsInserted": func(m *OperationMetrics) *int64 { return &m.NumAddedRows },
	"num_deleted_rows":      func(m *OperationMetrics) *int64 { return &m.NumDeletedRows },
	"numDeletedRows":        func(m *OperationMetrics) *int64 { return &m.NumDeletedRows },
	"numTargetRowsDeleted":  func(m *OperationMetrics) *int64 { return &m.NumDeletedRows },
	"num_updated_rows":      func(m *OperationMetrics) *int64 { return &m.NumUpdatedRows },
	"numUpdatedRows":        func(m *OperationMetrics) *int64 { return &m.NumUpdatedRows },
	"numTargetRowsUpdated":  func(m *OperationMetrics) *int64 { return &m.NumUpdatedRows },
	"num_added_bytes":       func(m *OperationMetrics) *int64 { return &m.NumAddedBytes },
	"numOutputBytes":        func(m *OperationMetrics) *int64 { return &m.NumAddedBytes },
	"numAddedBytes":         func(m *OperationMetrics) *int64 { return &m.NumAddedBytes },
	"num_removed_bytes":     func(m *OperationMetrics) *int64 { return &m.NumRemovedBytes },
	"numRemovedBytes":       func(m *OperationMetrics) *int64 { return &m.NumRemovedBytes },
}

// NewOperationMetrics maps raw metrics onto typed fields. Unrecognized keys land in Other.
// Keys are visited in sorted order so aliases resolve deterministically.
func NewOperationMetrics(raw map[string]int64) OperationMetrics {
	var metrics OperationMetrics

	for _, key := range slices.Sorted(maps.Keys(raw)) {
		value := raw[key]

		if field, ok := metricAliases[key]; ok {
			*field(&metrics) = value

			continue
		}

		if metrics.Other == nil {
			metrics.Other = make(map[string]int64)
		}

		metrics.Other[key] = value
	}

	return metrics
}

// CommitEntry is one logged transaction (the commitInfo action of a commit file).
// Ordering by Version is authoritative; timestamps may be skewed.
type CommitEntry struct {
	Version    int64               `json:"version"     yaml:"version"`
	Timestamp  int64               `json:"timestamp"   yaml:"timestamp"`
	Operation  Operation           `json:"operation"   yaml:"operation"`
	Parameters OperationParameters `json:"parameters"  yaml:"parameters"`
	Metrics    OperationMetrics    `json:"metrics"     yaml:"metrics"`
	EngineInfo string              `json:"engine_info" yaml:"engine_info"`
}

// Time returns the commit timestamp as a time.Time.
func (c CommitEntry) Time() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// Clone returns a deep copy of the entry.
func (c CommitEntry) Clone() CommitEntry {
	out := c
	out.Parameters.Other = maps.Clone(c.Parameters.Other)
	out.Metrics.Other = maps.Clone(c.Metrics.Other)

	return out
}
