package deltalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

// checkpointBatchSize is the number of rows decoded per read call.
const checkpointBatchSize = 1024

// checkpointRow is the subset of the checkpoint schema needed to rebuild table state.
// Each row carries exactly one non-nil action column.
type checkpointRow struct {
	Add      *checkpointAdd      `parquet:"add"`
	MetaData *checkpointMetadata `parquet:"metaData"`
	Protocol *checkpointProtocol `parquet:"protocol"`
}

type checkpointAdd struct {
	Path             string            `parquet:"path"`
	PartitionValues  map[string]string `parquet:"partitionValues"`
	Size             int64             `parquet:"size"`
	ModificationTime int64             `parquet:"modificationTime"`
	DataChange       bool              `parquet:"dataChange"`
	Stats            *string           `parquet:"stats"`
}

type checkpointMetadata struct {
	ID               string            `parquet:"id"`
	Name             *string           `parquet:"name"`
	Description      *string           `parquet:"description"`
	SchemaString     string            `parquet:"schemaString"`
	PartitionColumns []string          `parquet:"partitionColumns,list"`
	Configuration    map[string]string `parquet:"configuration"`
	CreatedTime      *int64            `parquet:"createdTime"`
}

type checkpointProtocol struct {
	MinReaderVersion int32    `parquet:"minReaderVersion"`
	MinWriterVersion int32    `parquet:"minWriterVersion"`
	ReaderFeatures   []string `parquet:"readerFeatures,list"`
	WriterFeatures   []string `parquet:"writerFeatures,list"`
}

// checkpointAccumulator merges the rows of all parts of one checkpoint.
type checkpointAccumulator struct {
	checkpoint delta.Checkpoint
	seen       map[string]struct{}
}

func newCheckpointAccumulator(version int64) *checkpointAccumulator {
	return &checkpointAccumulator{
		checkpoint: delta.Checkpoint{Version: version},
		seen:       map[string]struct{}{},
	}
}

// readPart decodes one parquet part into the accumulator.
func (a *checkpointAccumulator) readPart(path string, data []byte) error {
	version := a.checkpoint.Version

	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &delta.CorruptLogError{Version: version, Path: path, Reason: "unreadable checkpoint", Err: err}
	}

	reader := parquet.NewGenericReader[checkpointRow](file)
	defer reader.Close()

	rows := make([]checkpointRow, checkpointBatchSize)

	for {
		clear(rows)

		n, readErr := reader.Read(rows)

		for i := range n {
			if rowErr := a.add(path, &rows[i]); rowErr != nil {
				return rowErr
			}
		}

		if errors.Is(readErr, io.EOF) {
			return nil
		}

		if readErr != nil {
			return &delta.CorruptLogError{Version: version, Path: path, Reason: "read checkpoint rows", Err: readErr}
		}
	}
}

func (a *checkpointAccumulator) add(path string, row *checkpointRow) error {
	version := a.checkpoint.Version

	switch {
	case row.Add != nil:
		file := row.Add.fileInfo()
		if _, dup := a.seen[file.Path]; dup {
			return &delta.CorruptLogError{
				Version: version,
				Path:    path,
				Reason:  fmt.Sprintf("file %q listed twice in checkpoint", file.Path),
			}
		}

		a.seen[file.Path] = struct{}{}
		a.checkpoint.Files = append(a.checkpoint.Files, file)
	case row.MetaData != nil:
		if a.checkpoint.Metadata != nil {
			return &delta.CorruptLogError{Version: version, Path: path, Reason: "multiple metaData rows in checkpoint"}
		}

		meta := row.MetaData.metadata()
		a.checkpoint.Metadata = &meta
	case row.Protocol != nil:
		if a.checkpoint.Protocol != nil {
			return &delta.CorruptLogError{Version: version, Path: path, Reason: "multiple protocol rows in checkpoint"}
		}

		proto := row.Protocol.protocol()
		a.checkpoint.Protocol = &proto
	}

	return nil
}

func (a *checkpointAccumulator) result() (*delta.Checkpoint, error) {
	if a.checkpoint.Metadata == nil {
		return nil, &delta.CorruptLogError{Version: a.checkpoint.Version, Reason: "checkpoint has no metaData row"}
	}

	if a.checkpoint.Protocol == nil {
		return nil, &delta.CorruptLogError{Version: a.checkpoint.Version, Reason: "checkpoint has no protocol row"}
	}

	out := a.checkpoint

	return &out, nil
}

func (c *checkpointAdd) fileInfo() delta.FileInfo {
	values := make(map[string]*string, len(c.PartitionValues))
	for key, value := range c.PartitionValues {
		values[key] = &value
	}

	add := addAction{
		Path:             c.Path,
		PartitionValues:  values,
		Size:             c.Size,
		ModificationTime: c.ModificationTime,
		DataChange:       c.DataChange,
	}

	if c.Stats != nil {
		add.Stats = *c.Stats
	}

	return convertAdd(&add)
}

func (c *checkpointMetadata) metadata() delta.Metadata {
	configuration := make(map[string]*string, len(c.Configuration))
	for key, value := range c.Configuration {
		configuration[key] = &value
	}

	return convertMetadata(&metadataAction{
		ID:               c.ID,
		Name:             c.Name,
		Description:      c.Description,
		SchemaString:     c.SchemaString,
		PartitionColumns: c.PartitionColumns,
		Configuration:    configuration,
		CreatedTime:      c.CreatedTime,
	})
}

func (c *checkpointProtocol) protocol() delta.Protocol {
	return convertProtocol(&protocolAction{
		MinReaderVersion: int(c.MinReaderVersion),
		MinWriterVersion: int(c.MinWriterVersion),
		ReaderFeatures:   c.ReaderFeatures,
		WriterFeatures:   c.WriterFeatures,
	})
}
