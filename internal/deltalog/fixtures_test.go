package deltalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/Sumatoshi-tech/deltascope/internal/deltatest"
	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

// memTable is a table published to the in-memory file system.
type memTable struct {
	t    *testing.T
	svc  afs.Service
	root string
}

func newMemTable(t *testing.T) *memTable {
	t.Helper()

	return &memTable{t: t, svc: afs.New(), root: deltatest.MemLocation(t.Name())}
}

func (m *memTable) publish(log *delta.CommitLog) *memTable {
	m.t.Helper()
	require.NoError(m.t, deltatest.Publish(context.Background(), m.svc, m.root, log))

	return m
}

func (m *memTable) raw(name, content string) *memTable {
	m.t.Helper()
	require.NoError(m.t, deltatest.Upload(context.Background(), m.svc, m.root, name, []byte(content)))

	return m
}

func (m *memTable) checkpoint(cp *delta.Checkpoint) *memTable {
	m.t.Helper()

	var buf bytes.Buffer
	require.NoError(m.t, encodeCheckpoint(&buf, cp))

	return m.raw(CheckpointName(cp.Version), buf.String())
}

// checkpointParts writes cp split over parts files; only the listed part numbers are written.
func (m *memTable) checkpointParts(cp *delta.Checkpoint, parts int, write ...int) *memTable {
	m.t.Helper()

	chunks := make([]delta.Checkpoint, parts)
	for i := range chunks {
		chunks[i].Version = cp.Version
	}

	chunks[0].Metadata = cp.Metadata
	chunks[0].Protocol = cp.Protocol

	for i, file := range cp.Files {
		chunks[i%parts].Files = append(chunks[i%parts].Files, file)
	}

	for _, part := range write {
		var buf bytes.Buffer
		require.NoError(m.t, encodeCheckpoint(&buf, &chunks[part-1]))
		m.raw(CheckpointPartName(cp.Version, part, parts), buf.String())
	}

	return m
}

func (m *memTable) reader(opts ...Option) *Reader {
	m.t.Helper()

	storage, err := NewAFSStorageWithService(m.svc, m.root)
	require.NoError(m.t, err)

	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRetryPolicy(fastRetry()),
	}, opts...)

	return NewReader(storage, m.root, opts...)
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

// encodeCheckpoint writes a single-part checkpoint with the columns readPart consumes.
func encodeCheckpoint(w io.Writer, cp *delta.Checkpoint) error {
	writer := parquet.NewGenericWriter[checkpointRow](w)

	var rows []checkpointRow

	if cp.Protocol != nil {
		rows = append(rows, checkpointRow{Protocol: &checkpointProtocol{
			MinReaderVersion: int32(cp.Protocol.MinReaderVersion), //nolint:gosec // small test values
			MinWriterVersion: int32(cp.Protocol.MinWriterVersion), //nolint:gosec // small test values
			ReaderFeatures:   cp.Protocol.ReaderFeatures,
			WriterFeatures:   cp.Protocol.WriterFeatures,
		}})
	}

	if meta := cp.Metadata; meta != nil {
		name := meta.Name
		rows = append(rows, checkpointRow{MetaData: &checkpointMetadata{
			ID:               meta.ID,
			Name:             &name,
			SchemaString:     meta.SchemaString,
			PartitionColumns: meta.PartitionColumns,
			Configuration:    meta.Configuration,
			CreatedTime:      meta.CreatedTime,
		}})
	}

	for _, file := range cp.Files {
		add := &checkpointAdd{
			Path:             file.Path,
			PartitionValues:  file.PartitionValues,
			Size:             file.SizeBytes,
			ModificationTime: file.ModificationTime.UnixMilli(),
		}

		if file.NumRecords != nil {
			stats := fmt.Sprintf(`{"numRecords":%d}`, *file.NumRecords)
			add.Stats = &stats
		}

		rows = append(rows, checkpointRow{Add: add})
	}

	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write checkpoint rows: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close checkpoint writer: %w", err)
	}

	return nil
}
