// Package features extracts the configuration and advanced-feature report of a table
// from its metadata, protocol and transaction-log inventory.
package features

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

// Table property keys.
const (
	KeyColumnMappingMode    = "delta.columnMapping.mode"
	KeyAutoCompact          = "delta.autoOptimize.autoCompact"
	KeyOptimizeWrite        = "delta.autoOptimize.optimizeWrite"
	KeyNumIndexedCols       = "delta.dataSkippingNumIndexedCols"
	KeyChangeDataFeed       = "delta.enableChangeDataFeed"
	KeyDeletedFileRetention = "delta.deletedFileRetentionDuration"
	KeyClustering           = "clustering"
	ConstraintPrefix        = "delta.constraints."
)

// Protocol feature names.
const (
	FeatureDeletionVectors = "deletionVectors"
	FeatureTimestampNTZ    = "timestampNtz"
	FeatureClustering      = "clustering"
)

// Defaults applied when a property is absent or malformed.
const (
	DefaultColumnMappingMode    = "none"
	DefaultNumIndexedCols       = 32
	DefaultVacuumRetentionHours = 168
)

// allIndexedCols is the property value meaning "collect stats on every column".
const allIndexedCols = -1

var columnMappingModes = []string{"none", "id", "name"}

// ProtocolInfo mirrors the protocol action.
type ProtocolInfo struct {
	MinReaderVersion int      `json:"min_reader_version" yaml:"min_reader_version"`
	MinWriterVersion int      `json:"min_writer_version" yaml:"min_writer_version"`
	ReaderFeatures   []string `json:"reader_features"    yaml:"reader_features"`
	WriterFeatures   []string `json:"writer_features"    yaml:"writer_features"`
}

// CheckpointInfo summarizes the checkpoints found in the log directory.
type CheckpointInfo struct {
	HasCheckpoints      bool   `json:"has_checkpoints"                 yaml:"has_checkpoints"`
	LatestCheckpoint    string `json:"latest_checkpoint,omitempty"     yaml:"latest_checkpoint,omitempty"`
	LatestVersion       *int64 `json:"latest_version,omitempty"        yaml:"latest_version,omitempty"`
	CheckpointSizeBytes int64  `json:"checkpoint_size_bytes,omitempty" yaml:"checkpoint_size_bytes,omitempty"`
}

// TransactionLogInfo is the file-level accounting of _delta_log.
type TransactionLogInfo struct {
	NumJSONFiles   int   `json:"num_json_files"  yaml:"num_json_files"`
	NumCheckpoints int   `json:"num_checkpoints" yaml:"num_checkpoints"`
	LogSizeBytes   int64 `json:"log_size_bytes"  yaml:"log_size_bytes"`
}

// ColumnMapping reports the column-mapping mode.
type ColumnMapping struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Mode    string `json:"mode"    yaml:"mode"`
}

// AutoOptimize reports the auto-optimize flags.
type AutoOptimize struct {
	Enabled       bool `json:"enabled"        yaml:"enabled"`
	AutoCompact   bool `json:"auto_compact"   yaml:"auto_compact"`
	OptimizeWrite bool `json:"optimize_write" yaml:"optimize_write"`
}

// DataSkipping reports data-skipping statistics collection. It is always enabled.
// NumIndexedCols of -1 means every column is indexed.
type DataSkipping struct {
	Enabled        bool `json:"enabled"          yaml:"enabled"`
	NumIndexedCols int  `json:"num_indexed_cols" yaml:"num_indexed_cols"`
}

// AdvancedFeatures lists the optional table features in use.
type AdvancedFeatures struct {
	DeletionVectors      bool              `json:"deletion_vectors"       yaml:"deletion_vectors"`
	ColumnMapping        ColumnMapping     `json:"column_mapping"         yaml:"column_mapping"`
	LiquidClustering     bool              `json:"liquid_clustering"      yaml:"liquid_clustering"`
	TimestampNTZ         bool              `json:"timestamp_ntz"          yaml:"timestamp_ntz"`
	CheckConstraints     map[string]string `json:"check_constraints"      yaml:"check_constraints"`
	AutoOptimize         AutoOptimize      `json:"auto_optimize"          yaml:"auto_optimize"`
	DataSkipping         DataSkipping      `json:"data_skipping"          yaml:"data_skipping"`
	ChangeDataFeed       bool              `json:"change_data_feed"       yaml:"change_data_feed"`
	VacuumRetentionHours float64           `json:"vacuum_retention_hours" yaml:"vacuum_retention_hours"`
}

// Report is the configuration view of a table.
type Report struct {
	TableProperties  map[string]string                  `json:"table_properties"       yaml:"table_properties"`
	TableID          string                             `json:"table_id"               yaml:"table_id"`
	TableName        string                             `json:"table_name,omitempty"   yaml:"table_name,omitempty"`
	Description      string                             `json:"description,omitempty"  yaml:"description,omitempty"`
	CreatedTime      *time.Time                         `json:"created_time,omitempty" yaml:"created_time,omitempty"`
	PartitionColumns []string                           `json:"partition_columns"      yaml:"partition_columns"`
	Protocol         ProtocolInfo                       `json:"protocol"               yaml:"protocol"`
	Checkpoint       CheckpointInfo                     `json:"checkpoint_info"        yaml:"checkpoint_info"`
	TransactionLog   TransactionLogInfo                 `json:"transaction_log"        yaml:"transaction_log"`
	Advanced         AdvancedFeatures                   `json:"advanced_features"      yaml:"advanced_features"`
	Warnings         []*delta.MalformedConfigValueError `json:"warnings,omitempty"     yaml:"warnings,omitempty"`
}

// Extract builds the configuration report. Malformed property values never fail the call:
// they fall back to defaults and are listed in Report.Warnings.
func Extract(meta *delta.Metadata, protocol *delta.Protocol, inventory delta.LogInventory) *Report {
	report := &Report{
		TableProperties:  map[string]string{},
		PartitionColumns: []string{},
		Protocol:         ProtocolInfo{ReaderFeatures: []string{}, WriterFeatures: []string{}},
	}

	config := map[string]string{}

	if meta != nil {
		config = meta.Configuration
		report.TableProperties = maps.Clone(meta.Configuration)
		if report.TableProperties == nil {
			report.TableProperties = map[string]string{}
		}

		report.TableID = meta.ID
		report.TableName = meta.Name
		report.Description = meta.Description

		if meta.PartitionColumns != nil {
			report.PartitionColumns = slices.Clone(meta.PartitionColumns)
		}

		if created, ok := meta.CreatedAt(); ok {
			report.CreatedTime = &created
		}
	}

	proto := delta.Protocol{}
	if protocol != nil {
		proto = protocol.Clone()
		report.Protocol.MinReaderVersion = proto.MinReaderVersion
		report.Protocol.MinWriterVersion = proto.MinWriterVersion
		report.Protocol.ReaderFeatures = append(report.Protocol.ReaderFeatures, proto.ReaderFeatures...)
		report.Protocol.WriterFeatures = append(report.Protocol.WriterFeatures, proto.WriterFeatures...)
	}

	report.Checkpoint = checkpointInfo(inventory)
	report.TransactionLog = TransactionLogInfo{
		NumJSONFiles:   inventory.JSONFiles,
		NumCheckpoints: len(inventory.Checkpoints),
		LogSizeBytes:   inventory.LogSizeBytes,
	}

	ex := &extractor{config: config}
	report.Advanced = ex.advanced(proto)
	report.Warnings = ex.warnings

	return report
}

func checkpointInfo(inventory delta.LogInventory) CheckpointInfo {
	latest, ok := inventory.LatestCheckpoint()
	if !ok {
		return CheckpointInfo{}
	}

	version := latest.Version

	return CheckpointInfo{
		HasCheckpoints:      true,
		LatestCheckpoint:    latest.Name,
		LatestVersion:       &version,
		CheckpointSizeBytes: latest.SizeBytes,
	}
}

type extractor struct {
	config   map[string]string
	warnings []*delta.MalformedConfigValueError
}

func (e *extractor) advanced(proto delta.Protocol) AdvancedFeatures {
	autoCompact := e.flag(KeyAutoCompact)
	optimizeWrite := e.flag(KeyOptimizeWrite)

	return AdvancedFeatures{
		DeletionVectors:  proto.HasWriterFeature(FeatureDeletionVectors),
		ColumnMapping:    e.columnMapping(),
		LiquidClustering: e.has(KeyClustering) || proto.HasWriterFeature(FeatureClustering),
		TimestampNTZ:     proto.HasReaderFeature(FeatureTimestampNTZ) || proto.HasWriterFeature(FeatureTimestampNTZ),
		CheckConstraints: e.constraints(),
		AutoOptimize: AutoOptimize{
			Enabled:       autoCompact || optimizeWrite,
			AutoCompact:   autoCompact,
			OptimizeWrite: optimizeWrite,
		},
		DataSkipping:         DataSkipping{Enabled: true, NumIndexedCols: e.indexedCols()},
		ChangeDataFeed:       e.flag(KeyChangeDataFeed),
		VacuumRetentionHours: e.retentionHours(),
	}
}

func (e *extractor) has(key string) bool {
	_, ok := e.config[key]

	return ok
}

func (e *extractor) warn(key, value, fallback string) {
	e.warnings = append(e.warnings, &delta.MalformedConfigValueError{Key: key, Value: value, Default: fallback})
}

// flag is true only for the exact string "true". Anything other than
// "true" or "false" is reported and read as false.
func (e *extractor) flag(key string) bool {
	raw, ok := e.config[key]
	if !ok {
		return false
	}

	switch strings.TrimSpace(raw) {
	case "true":
		return true
	case "false":
		return false
	default:
		e.warn(key, raw, "false")

		return false
	}
}

func (e *extractor) columnMapping() ColumnMapping {
	raw, ok := e.config[KeyColumnMappingMode]
	if !ok {
		return ColumnMapping{Mode: DefaultColumnMappingMode}
	}

	mode := strings.ToLower(strings.TrimSpace(raw))
	if !slices.Contains(columnMappingModes, mode) {
		e.warn(KeyColumnMappingMode, raw, DefaultColumnMappingMode)

		return ColumnMapping{Mode: DefaultColumnMappingMode}
	}

	return ColumnMapping{Enabled: mode != DefaultColumnMappingMode, Mode: mode}
}

func (e *extractor) constraints() map[string]string {
	out := map[string]string{}

	for key, value := range e.config {
		if strings.HasPrefix(key, ConstraintPrefix) {
			out[key] = value
		}
	}

	return out
}

func (e *extractor) indexedCols() int {
	raw, ok := e.config[KeyNumIndexedCols]
	if !ok {
		return DefaultNumIndexedCols
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < allIndexedCols {
		e.warn(KeyNumIndexedCols, raw, strconv.Itoa(DefaultNumIndexedCols))

		return DefaultNumIndexedCols
	}

	return value
}

func (e *extractor) retentionHours() float64 {
	raw, ok := e.config[KeyDeletedFileRetention]
	if !ok {
		return DefaultVacuumRetentionHours
	}

	retention, err := parseRetention(raw)
	if err != nil {
		e.warn(KeyDeletedFileRetention, raw, strconv.Itoa(DefaultVacuumRetentionHours)+" hours")

		return DefaultVacuumRetentionHours
	}

	return retention.Hours()
}
