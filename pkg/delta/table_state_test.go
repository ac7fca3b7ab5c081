package delta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumSizes(files []FileInfo) int64 {
	var total int64
	for _, f := range files {
		total += f.SizeBytes
	}

	return total
}

func TestTableState_PutTracksTotalSize(t *testing.T) {
	t.Parallel()

	state := NewTableState(0)

	_, replaced := state.Put(FileInfo{Path: "a.parquet", SizeBytes: 100})
	assert.False(t, replaced)

	state.Put(FileInfo{Path: "b.parquet", SizeBytes: 250})

	previous, replaced := state.Put(FileInfo{Path: "a.parquet", SizeBytes: 40})
	assert.True(t, replaced)
	assert.Equal(t, int64(100), previous.SizeBytes)

	assert.Equal(t, 2, state.NumFiles())
	assert.Equal(t, int64(290), state.TotalSizeBytes())
	assert.Equal(t, sumSizes(state.Files()), state.TotalSizeBytes())
}

func TestTableState_Delete(t *testing.T) {
	t.Parallel()

	state := NewTableState(3)
	state.Put(FileInfo{Path: "a.parquet", SizeBytes: 100})
	state.Put(FileInfo{Path: "b.parquet", SizeBytes: 50})

	assert.True(t, state.Delete("a.parquet"))
	assert.False(t, state.Delete("a.parquet"))
	assert.False(t, state.Delete("missing.parquet"))

	assert.Equal(t, 1, state.NumFiles())
	assert.Equal(t, int64(50), state.TotalSizeBytes())
}

func TestTableState_FilesSortedCopies(t *testing.T) {
	t.Parallel()

	state := NewTableState(1)
	state.Put(FileInfo{Path: "z.parquet", SizeBytes: 1, PartitionValues: map[string]string{"d": "1"}})
	state.Put(FileInfo{Path: "a.parquet", SizeBytes: 2})

	files := state.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "a.parquet", files[0].Path)
	assert.Equal(t, "z.parquet", files[1].Path)
	assert.NotNil(t, files[0].PartitionValues)

	files[1].PartitionValues["d"] = "mutated"

	stored, ok := state.File("z.parquet")
	require.True(t, ok)
	assert.Equal(t, "1", stored.PartitionValues["d"])
}

func TestTableState_CloneAndEqual(t *testing.T) {
	t.Parallel()

	rows := int64(7)
	state := NewTableState(2)
	state.Put(FileInfo{Path: "a.parquet", SizeBytes: 10, NumRecords: &rows, ModificationTime: time.UnixMilli(1000)})
	state.Metadata = &Metadata{ID: "t1", PartitionColumns: []string{"d"}, Configuration: map[string]string{"k": "v"}}
	state.Protocol = &Protocol{MinReaderVersion: 3, MinWriterVersion: 7, WriterFeatures: []string{"b", "a"}}

	clone := state.Clone()
	assert.True(t, state.Equal(clone))

	clone.Protocol.WriterFeatures = []string{"a", "b"}
	assert.True(t, state.Equal(clone), "feature order is irrelevant")

	clone.Metadata.Configuration["k"] = "other"
	assert.False(t, state.Equal(clone))
	assert.Equal(t, "v", state.Metadata.Configuration["k"])
}

func TestTableState_EqualDetectsFileDifferences(t *testing.T) {
	t.Parallel()

	left := NewTableState(1)
	left.Put(FileInfo{Path: "a.parquet", SizeBytes: 10})

	right := NewTableState(1)
	right.Put(FileInfo{Path: "a.parquet", SizeBytes: 11})

	assert.False(t, left.Equal(right))
	assert.False(t, left.Equal(nil))

	var empty *TableState
	assert.True(t, empty.Equal(nil))
}
