package deltalog

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	_ "github.com/viant/afsc/gs" // registers the gs:// scheme
)

// AFSStorage serves local paths, file://, mem:// and gs:// locations through viant/afs.
type AFSStorage struct {
	svc  afs.Service
	root string
}

// NewAFSStorage creates a storage rooted at location. Relative paths are made absolute.
func NewAFSStorage(location string) (*AFSStorage, error) {
	return NewAFSStorageWithService(afs.New(), location)
}

// NewAFSStorageWithService is NewAFSStorage with an explicit afs service, so callers can
// share one in-memory file system.
func NewAFSStorageWithService(svc afs.Service, location string) (*AFSStorage, error) {
	root, err := normalizeLocation(location)
	if err != nil {
		return nil, err
	}

	return &AFSStorage{svc: svc, root: root}, nil
}

func normalizeLocation(location string) (string, error) {
	norm := location

	if url.Scheme(norm, "") == "" && url.IsRelative(norm) {
		abs, err := filepath.Abs(norm)
		if err != nil {
			return "", fmt.Errorf("resolve absolute path for %s: %w", location, err)
		}

		norm = abs
	}

	if url.Scheme(norm, "") == "" {
		norm = url.ToFileURL(norm)
	}

	return norm, nil
}

// Root returns the normalized table URL.
func (s *AFSStorage) Root() string {
	return s.root
}

// List implements Storage.
func (s *AFSStorage) List(ctx context.Context, dir string) ([]Object, error) {
	dirURL := url.Join(s.root, dir)

	exists, err := s.svc.Exists(ctx, dirURL)
	if err != nil {
		return nil, s.classify(dirURL, err)
	}

	if !exists {
		return nil, fmt.Errorf("list %s: %w", dirURL, ErrNotFound)
	}

	listed, err := s.svc.List(ctx, dirURL)
	if err != nil {
		return nil, s.classify(dirURL, err)
	}

	objects := make([]Object, 0, len(listed))

	for _, entry := range listed {
		if entry.IsDir() {
			continue
		}

		objects = append(objects, Object{
			Name:    entry.Name(),
			Path:    joinKey(dir, entry.Name()),
			Size:    entry.Size(),
			ModTime: entry.ModTime(),
		})
	}

	return objects, nil
}

// Open implements Storage.
func (s *AFSStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	objectURL := url.Join(s.root, path)

	reader, err := s.svc.OpenURL(ctx, objectURL)
	if err != nil {
		return nil, s.classify(objectURL, err)
	}

	return reader, nil
}

// classify maps rejected gs:// calls to AuthenticationError. Local and
// in-memory failures never carry an auth status.
func (s *AFSStorage) classify(target string, err error) error {
	if schemeOf(s.root) == schemeGCS {
		if status := gcsStatus(err); isAuthStatus(status) {
			return newAuthError(providerGCS, target, status, err)
		}
	}

	return fmt.Errorf("access %s: %w", target, err)
}
