package delta

import (
	"maps"
	"slices"
)

// TableState is the reconstructed snapshot of a table at one version.
// The active file set is private; TotalSizeBytes is maintained incrementally and always
// equals the sum of SizeBytes over the active files.
type TableState struct {
	Version  int64
	Metadata *Metadata
	Protocol *Protocol

	files     map[string]FileInfo
	totalSize int64
}

// NewTableState returns an empty state at the given version.
func NewTableState(version int64) *TableState {
	return &TableState{
		Version: version,
		files:   make(map[string]FileInfo),
	}
}

// NumFiles returns the number of active files.
func (s *TableState) NumFiles() int {
	return len(s.files)
}

// TotalSizeBytes returns the summed size of active files.
func (s *TableState) TotalSizeBytes() int64 {
	return s.totalSize
}

// File returns a copy of the active file at path.
func (s *TableState) File(path string) (FileInfo, bool) {
	file, ok := s.files[path]
	if !ok {
		return FileInfo{}, false
	}

	return file.Clone(), true
}

// Files returns copies of all active files sorted by path.
func (s *TableState) Files() []FileInfo {
	files := make([]FileInfo, 0, len(s.files))
	for _, path := range slices.Sorted(maps.Keys(s.files)) {
		files = append(files, s.files[path].Clone())
	}

	return files
}

// Put upserts a file by path and returns the previous entry if one was replaced.
func (s *TableState) Put(file FileInfo) (FileInfo, bool) {
	if s.files == nil {
		s.files = make(map[string]FileInfo)
	}

	previous, existed := s.files[file.Path]
	if existed {
		s.totalSize -= previous.SizeBytes
	}

	s.files[file.Path] = file.Clone()
	s.totalSize += file.SizeBytes

	return previous, existed
}

// Delete removes the file at path. It reports whether the path was active.
func (s *TableState) Delete(path string) bool {
	previous, ok := s.files[path]
	if !ok {
		return false
	}

	delete(s.files, path)
	s.totalSize -= previous.SizeBytes

	return true
}

// Clone returns an independent deep copy.
func (s *TableState) Clone() *TableState {
	out := NewTableState(s.Version)
	for _, file := range s.files {
		out.Put(file)
	}

	if s.Metadata != nil {
		meta := s.Metadata.Clone()
		out.Metadata = &meta
	}

	if s.Protocol != nil {
		proto := s.Protocol.Clone()
		out.Protocol = &proto
	}

	return out
}

// Equal reports whether both states hold the same version, files, metadata and protocol.
func (s *TableState) Equal(other *TableState) bool {
	if s == nil || other == nil {
		return s == other
	}

	if s.Version != other.Version || s.totalSize != other.totalSize || len(s.files) != len(other.files) {
		return false
	}

	for path, file := range s.files {
		otherFile, ok := other.files[path]
		if !ok || !file.Equal(otherFile) {
			return false
		}
	}

	if !equalPtr(s.Metadata, other.Metadata, Metadata.Equal) {
		return false
	}

	return equalPtr(s.Protocol, other.Protocol, Protocol.Equal)
}

func equalPtr[T any](a, b *T, eq func(T, T) bool) bool {
	if a == nil || b == nil {
		return a == b
	}

	return eq(*a, *b)
}
