package deltalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/deltascope/internal/state"
	"github.com/Sumatoshi-tech/deltascope/pkg/alg/lru"
	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
	"github.com/Sumatoshi-tech/deltascope/pkg/observability"
)

const (
	tracerName        = "deltascope.deltalog"
	spanListCommits   = "deltascope.deltalog.list_commits"
	attrTableLocation = "table.location"
	attrStoragePath   = "storage.path"
	attrStorageBytes  = "storage.bytes"
	attrCommits       = "delta.commits"
	attrLatestVersion = "delta.version"
	attrCheckpoint    = "delta.checkpoint"
	attrCached        = "storage.cached"
)

// Reader reads the transaction log of one table.
type Reader struct {
	storage   Storage
	location  string
	logger    *slog.Logger
	builder   *state.Builder
	validator actionValidator
	retry     RetryPolicy
	tracer    trace.Tracer
	cache     *lru.Cache[string, []byte]
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger for retries and log anomalies.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithStateBuilder replaces the builder used by ReadCurrentManifest.
func WithStateBuilder(builder *state.Builder) Option {
	return func(r *Reader) {
		r.builder = builder
	}
}

// WithValidator enables per-action schema validation.
func WithValidator(validator *SchemaValidator) Option {
	return func(r *Reader) {
		if validator != nil {
			r.validator = validator
		}
	}
}

// WithRetryPolicy overrides the storage retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(r *Reader) {
		r.retry = policy
	}
}

// WithObjectCache serves commit and checkpoint files from cache. Those files are
// immutable once written, so one cache can be shared by every reader.
func WithObjectCache(cache *lru.Cache[string, []byte]) Option {
	return func(r *Reader) {
		r.cache = cache
	}
}

// NewObjectCache creates a cache for WithObjectCache holding at most maxBytes
// of object data.
func NewObjectCache(maxBytes int64) *lru.Cache[string, []byte] {
	return lru.New(lru.WithMaxBytes[string](maxBytes, func(data []byte) int64 {
		return int64(len(data))
	}))
}

// NewReader creates a Reader over storage. location is only used for reporting.
func NewReader(storage Storage, location string, opts ...Option) *Reader {
	r := &Reader{
		storage:  storage,
		location: location,
		retry:    DefaultRetryPolicy(),
		tracer:   otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	if r.builder == nil {
		r.builder = state.NewBuilder(state.WithLogger(r.logger))
	}

	return r
}

// Open resolves the backend for location and creates a Reader over it.
func Open(ctx context.Context, location string, caps Capabilities, opts ...Option) (*Reader, error) {
	storage, err := NewStorage(ctx, location, caps)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", location, err)
	}

	return NewReader(storage, location, opts...), nil
}

// Location returns the table location the reader was created for.
func (r *Reader) Location() string {
	return r.location
}

// ListCommits reads the whole retained log: every commit file in version order, the
// newest complete checkpoint and the log inventory.
func (r *Reader) ListCommits(ctx context.Context) (*delta.CommitLog, error) {
	ctx, span := r.tracer.Start(ctx, spanListCommits,
		trace.WithAttributes(attribute.String(attrTableLocation, r.location)))
	defer span.End()

	log, err := r.listCommits(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list commits failed")

		return nil, err
	}

	span.SetAttributes(
		attribute.Int(attrCommits, len(log.Commits)),
		attribute.Int64(attrLatestVersion, log.LatestVersion()),
		attribute.Bool(attrCheckpoint, log.Checkpoint != nil),
	)

	return log, nil
}

func (r *Reader) listCommits(ctx context.Context) (*delta.CommitLog, error) {
	listing, err := r.listing(ctx)
	if err != nil {
		return nil, err
	}

	log := &delta.CommitLog{
		Location:  r.location,
		Commits:   make([]delta.Commit, 0, len(listing.commits)),
		Inventory: listing.inventory(),
	}

	for _, file := range listing.commits {
		commit, commitErr := r.readCommit(ctx, file)
		if commitErr != nil {
			return nil, commitErr
		}

		log.Commits = append(log.Commits, commit)
	}

	if newest := listing.newest(); newest != nil {
		checkpoint, cpErr := r.readCheckpoint(ctx, newest)
		if cpErr != nil {
			return nil, cpErr
		}

		log.Checkpoint = checkpoint
	}

	r.logger.Debug("read transaction log",
		"location", r.location,
		"commits", len(log.Commits),
		"checkpoint", log.Checkpoint != nil,
		"latest_version", log.LatestVersion())

	return log, nil
}

// ReadCurrentManifest returns the table state at version, or at the latest version when
// version is nil.
func (r *Reader) ReadCurrentManifest(ctx context.Context, version *int64) (*delta.TableState, error) {
	log, err := r.ListCommits(ctx)
	if err != nil {
		return nil, err
	}

	var opts []state.BuildOption
	if version != nil {
		opts = append(opts, state.AtVersion(*version))
	}

	tableState, err := r.builder.Build(log, opts...)
	if err != nil {
		return nil, fmt.Errorf("read manifest of %s: %w", r.location, err)
	}

	return tableState, nil
}

// Inventory lists the log directory without decoding any file.
func (r *Reader) Inventory(ctx context.Context) (delta.LogInventory, error) {
	listing, err := r.listing(ctx)
	if err != nil {
		return delta.LogInventory{}, err
	}

	return listing.inventory(), nil
}

func (r *Reader) listing(ctx context.Context) (*logListing, error) {
	objects, err := retry(ctx, r.retry, r.logger, "list", func() ([]Object, error) {
		return r.storage.List(ctx, LogDir)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("read %s: %w", r.location, delta.ErrTableNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("list transaction log of %s: %w", r.location, err)
	}

	listing := newLogListing(objects)
	if listing.empty() {
		return nil, fmt.Errorf("read %s: %w", r.location, delta.ErrTableNotFound)
	}

	for _, version := range listing.incomplete {
		r.logger.Warn("ignoring incomplete checkpoint", "location", r.location, "version", version)
	}

	if listing.other > 0 {
		r.logger.Debug("skipped unrecognized log entries", "location", r.location, "count", listing.other)
	}

	return listing, nil
}

func (r *Reader) readCommit(ctx context.Context, file LogFile) (delta.Commit, error) {
	data, err := r.fetch(ctx, file.Path)
	if err != nil {
		return delta.Commit{}, err
	}

	return decodeCommit(file.Version, file.Path, file.ModTime, bytes.NewReader(data), r.validator)
}

func (r *Reader) readCheckpoint(ctx context.Context, set *checkpointSet) (*delta.Checkpoint, error) {
	acc := newCheckpointAccumulator(set.version)

	for _, part := range set.parts {
		data, err := r.fetch(ctx, part.Path)
		if err != nil {
			return nil, err
		}

		if partErr := acc.readPart(part.Path, data); partErr != nil {
			return nil, partErr
		}
	}

	return acc.result()
}

// fetch reads one object fully, retrying transient failures of both open and read.
func (r *Reader) fetch(ctx context.Context, path string) ([]byte, error) {
	ctx, span := r.tracer.Start(ctx, observability.SpanReadObject,
		trace.WithAttributes(attribute.String(attrStoragePath, path)))
	defer span.End()

	key := r.location + "/" + path
	if r.cache != nil {
		if data, ok := r.cache.Get(key); ok {
			span.SetAttributes(attribute.Bool(attrCached, true), attribute.Int(attrStorageBytes, len(data)))

			return data, nil
		}
	}

	data, err := retry(ctx, r.retry, r.logger, "read "+path, func() ([]byte, error) {
		body, openErr := r.storage.Open(ctx, path)
		if openErr != nil {
			return nil, openErr
		}
		defer body.Close()

		return io.ReadAll(body)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")

		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	span.SetAttributes(attribute.Bool(attrCached, false), attribute.Int(attrStorageBytes, len(data)))

	if r.cache != nil {
		r.cache.Put(key, data)
	}

	return data, nil
}
