// Package deltalog reads Delta Lake transaction logs from local, in-memory and cloud object
// storage and decodes them into the delta data model.
package deltalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/aws/aws-sdk-go-v2/aws"
)

// LogDir is the transaction log directory below a table root.
const LogDir = "_delta_log"

// Location schemes.
const (
	schemeFile  = "file"
	schemeMem   = "mem"
	schemeGCS   = "gs"
	schemeS3    = "s3"
	schemeS3A   = "s3a"
	schemeABFSS = "abfss"
	schemeABFS  = "abfs"
	schemeAZ    = "az"
)

// ErrNotFound is returned by a Storage when a directory or object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrUnsupportedLocation is returned for table locations no backend can serve.
var ErrUnsupportedLocation = errors.New("unsupported table location")

// Object is one entry of a directory listing.
type Object struct {
	// Name is the base name of the object.
	Name string
	// Path is the object path relative to the table root.
	Path    string
	Size    int64
	ModTime time.Time
}

// Storage is read-only access to the objects below one table root.
// Paths are slash-separated and relative to that root.
type Storage interface {
	// List returns the objects directly inside dir. A missing dir yields ErrNotFound.
	List(ctx context.Context, dir string) ([]Object, error)
	// Open opens one object for reading.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Capabilities are the externally supplied credentials and overrides for cloud backends.
// Zero values are resolved from the environment when the matching backend is first needed.
type Capabilities struct {
	// AzureCredential authenticates abfss:// and az:// locations.
	AzureCredential azcore.TokenCredential
	// AzureAccount is the storage account for az:// locations, which do not carry one.
	AzureAccount string
	// AWSConfig configures s3:// locations.
	AWSConfig *aws.Config
	// S3Endpoint overrides the S3 endpoint, for MinIO and other compatible stores.
	S3Endpoint string
	// S3PathStyle forces path-style bucket addressing.
	S3PathStyle bool
}

// NewStorage returns the backend serving location. Plain paths are treated as local files.
func NewStorage(ctx context.Context, location string, caps Capabilities) (Storage, error) {
	scheme := schemeOf(location)

	switch scheme {
	case "", schemeFile, schemeMem, schemeGCS:
		return NewAFSStorage(location)
	case schemeS3, schemeS3A:
		return NewS3StorageFromLocation(ctx, location, caps)
	case schemeABFSS, schemeABFS, schemeAZ:
		return NewAzureStorageFromLocation(location, caps)
	default:
		return nil, fmt.Errorf("%w: scheme %q in %s", ErrUnsupportedLocation, scheme, location)
	}
}

// schemeOf returns the lower-cased URL scheme, or "" for plain paths (including Windows
// drive letters).
func schemeOf(location string) string {
	idx := strings.Index(location, "://")
	if idx <= 1 {
		return ""
	}

	return strings.ToLower(location[:idx])
}

// bucketAndPrefix splits scheme://bucket/prefix into its parts.
func bucketAndPrefix(location string) (string, string, error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parse location %s: %w", location, err)
	}

	if parsed.Host == "" {
		return "", "", fmt.Errorf("%w: no bucket in %s", ErrUnsupportedLocation, location)
	}

	return parsed.Host, strings.Trim(parsed.Path, "/"), nil
}

// joinKey joins path elements into an object key without a leading slash.
func joinKey(parts ...string) string {
	kept := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part != "" {
			kept = append(kept, part)
		}
	}

	return strings.Join(kept, "/")
}

// baseName returns the last element of a slash-separated key.
func baseName(key string) string {
	key = strings.TrimSuffix(key, "/")
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[idx+1:]
	}

	return key
}
