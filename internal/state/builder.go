// Package state folds a decoded transaction log into the table state at a version.
package state

import (
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

// latestVersion requests the newest available version.
const latestVersion int64 = -1

// Builder replays commit logs into table states. It holds no per-call state and is safe
// for concurrent use.
type Builder struct {
	logger      *slog.Logger
	lenientAdds bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for replay warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithLenientAdds makes a duplicate add with conflicting partition values overwrite the
// active entry with a warning instead of failing the replay.
func WithLenientAdds(lenient bool) Option {
	return func(b *Builder) {
		b.lenientAdds = lenient
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return b
}

type buildParams struct {
	version int64
}

// BuildOption configures a single Build call.
type BuildOption func(*buildParams)

// AtVersion targets a specific version instead of the latest one.
func AtVersion(version int64) BuildOption {
	return func(p *buildParams) {
		p.version = version
	}
}

// Build reconstructs the table state. Replay starts at the newest checkpoint not beyond the
// target (or from empty when the full history is retained) and applies commits in version
// order. Within one commit, removes are applied before adds.
func (b *Builder) Build(log *delta.CommitLog, opts ...BuildOption) (*delta.TableState, error) {
	params := buildParams{version: latestVersion}
	for _, opt := range opts {
		opt(&params)
	}

	if log.IsEmpty() {
		return nil, fmt.Errorf("build state: %w", delta.ErrTableNotFound)
	}

	oldest := log.OldestRetainedVersion()
	latest := log.LatestVersion()

	target := params.version
	if target == latestVersion {
		target = latest
	}

	if target < oldest || target > latest {
		return nil, &delta.VersionNotFoundError{Requested: target, Oldest: oldest, Latest: latest}
	}

	current, err := baseState(log, target, oldest, latest)
	if err != nil {
		return nil, err
	}

	expected := current.Version + 1

	for i := range log.Commits {
		commit := &log.Commits[i]
		if commit.Version <= current.Version {
			continue
		}

		if commit.Version > target {
			break
		}

		if commit.Version != expected {
			return nil, &delta.CorruptLogError{
				Version: expected,
				Reason:  fmt.Sprintf("missing commit (next retained commit is %d)", commit.Version),
			}
		}

		applyErr := b.apply(current, commit)
		if applyErr != nil {
			return nil, applyErr
		}

		expected++
	}

	if current.Version != target {
		return nil, &delta.CorruptLogError{Version: current.Version + 1, Reason: "missing commit"}
	}

	if current.Metadata == nil {
		return nil, &delta.CorruptLogError{Version: target, Reason: "no metadata action in replayed log"}
	}

	return current, nil
}

// baseState returns the replay starting point: the newest usable checkpoint, or an empty state
// positioned just before version 0.
func baseState(log *delta.CommitLog, target, oldest, latest int64) (*delta.TableState, error) {
	cp := log.Checkpoint
	if cp != nil && cp.Version <= target {
		base := delta.NewTableState(cp.Version)
		for _, file := range cp.Files {
			base.Put(file)
		}

		if cp.Metadata != nil {
			meta := cp.Metadata.Clone()
			base.Metadata = &meta
		}

		if cp.Protocol != nil {
			proto := cp.Protocol.Clone()
			base.Protocol = &proto
		}

		return base, nil
	}

	if len(log.Commits) == 0 || log.Commits[0].Version != 0 {
		return nil, &delta.VersionNotFoundError{Requested: target, Oldest: oldest, Latest: latest}
	}

	return delta.NewTableState(-1), nil
}

func (b *Builder) apply(current *delta.TableState, commit *delta.Commit) error {
	if commit.Protocol != nil {
		proto := commit.Protocol.Clone()
		current.Protocol = &proto
	}

	if commit.Metadata != nil {
		meta := commit.Metadata.Clone()
		current.Metadata = &meta
	}

	for _, remove := range commit.Removes {
		if !current.Delete(remove.Path) {
			return &delta.CorruptLogError{
				Version: commit.Version,
				Path:    remove.Path,
				Reason:  "remove references a file that is not active",
			}
		}
	}

	for _, add := range commit.Adds {
		active, exists := current.File(add.Path)
		if exists && !maps.Equal(active.PartitionValues, add.PartitionValues) {
			if !b.lenientAdds {
				return &delta.CorruptLogError{
					Version: commit.Version,
					Path:    add.Path,
					Reason:  "duplicate add with conflicting partition values",
				}
			}

			b.logger.Warn("overwriting duplicate add with conflicting partition values",
				"version", commit.Version, "path", add.Path)
		}

		current.Put(add)
	}

	current.Version = commit.Version

	return nil
}
