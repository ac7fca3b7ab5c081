package deltalog

import (
	"cmp"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
	"github.com/Sumatoshi-tech/deltascope/pkg/safeconv"
)

// LastCheckpointName is the checkpoint hint file.
const LastCheckpointName = "_last_checkpoint"

var (
	commitPattern          = regexp.MustCompile(`^(\d{20})\.json$`)
	checkpointPattern      = regexp.MustCompile(`^(\d{20})\.checkpoint\.parquet$`)
	checkpointPartsPattern = regexp.MustCompile(`^(\d{20})\.checkpoint\.(\d{10})\.(\d{10})\.parquet$`)
	checksumPattern        = regexp.MustCompile(`^(\d{20})\.crc$`)
)

// FileKind classifies an entry of the log directory.
type FileKind int

// Log file kinds.
const (
	KindOther FileKind = iota
	KindCommit
	KindCheckpoint
	KindLastCheckpoint
	KindChecksum
)

// LogFile is a classified log directory entry.
type LogFile struct {
	Object
	Kind    FileKind
	Version int64
	// Part and Parts are 1-based for multi-part checkpoints and 1/1 for single files.
	Part  int
	Parts int
}

// CommitName returns the commit file name of a version.
func CommitName(version int64) string {
	return fmt.Sprintf("%020d.json", version)
}

// CheckpointName returns the single-part checkpoint file name of a version.
func CheckpointName(version int64) string {
	return fmt.Sprintf("%020d.checkpoint.parquet", version)
}

// CheckpointPartName returns one part name of a multi-part checkpoint.
func CheckpointPartName(version int64, part, parts int) string {
	return fmt.Sprintf("%020d.checkpoint.%010d.%010d.parquet", version, part, parts)
}

// Classify identifies a log directory entry by its name.
func Classify(obj Object) LogFile {
	file := LogFile{Object: obj, Kind: KindOther, Version: -1}

	if obj.Name == LastCheckpointName {
		file.Kind = KindLastCheckpoint

		return file
	}

	if m := commitPattern.FindStringSubmatch(obj.Name); m != nil {
		file.Kind = KindCommit
		file.Version = mustParse(m[1])

		return file
	}

	if m := checkpointPattern.FindStringSubmatch(obj.Name); m != nil {
		file.Kind = KindCheckpoint
		file.Version = mustParse(m[1])
		file.Part, file.Parts = 1, 1

		return file
	}

	if m := checkpointPartsPattern.FindStringSubmatch(obj.Name); m != nil {
		part, parts := safeconv.ClampInt64ToInt(mustParse(m[2])), safeconv.ClampInt64ToInt(mustParse(m[3]))
		if part < 1 || parts < 1 || part > parts {
			return file
		}

		file.Kind = KindCheckpoint
		file.Version = mustParse(m[1])
		file.Part, file.Parts = part, parts

		return file
	}

	if m := checksumPattern.FindStringSubmatch(obj.Name); m != nil {
		file.Kind = KindChecksum
		file.Version = mustParse(m[1])
	}

	return file
}

// mustParse parses a digit run already validated by a pattern.
func mustParse(digits string) int64 {
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return -1
	}

	return n
}

// checkpointSet is all parts of one checkpoint version.
type checkpointSet struct {
	version  int64
	expected int
	parts    []LogFile
}

func (c *checkpointSet) complete() bool {
	if len(c.parts) != c.expected {
		return false
	}

	for i, part := range c.parts {
		if part.Part != i+1 || part.Parts != c.expected {
			return false
		}
	}

	return true
}

func (c *checkpointSet) file() delta.CheckpointFile {
	out := delta.CheckpointFile{Name: c.parts[0].Name, Version: c.version, Parts: len(c.parts)}

	for _, part := range c.parts {
		out.SizeBytes += part.Size
		if part.ModTime.After(out.ModTime) {
			out.ModTime = part.ModTime
		}
	}

	return out
}

// logListing is a classified log directory.
type logListing struct {
	commits     []LogFile
	checkpoints []*checkpointSet
	incomplete  []int64
	other       int
}

func newLogListing(objects []Object) *logListing {
	listing := &logListing{}
	sets := map[int64]*checkpointSet{}

	for _, obj := range objects {
		file := Classify(obj)

		switch file.Kind {
		case KindCommit:
			listing.commits = append(listing.commits, file)
		case KindCheckpoint:
			set, ok := sets[file.Version]
			if !ok {
				set = &checkpointSet{version: file.Version, expected: file.Parts}
				sets[file.Version] = set
			}

			set.parts = append(set.parts, file)
		case KindOther:
			listing.other++
		case KindLastCheckpoint, KindChecksum:
		}
	}

	slices.SortFunc(listing.commits, func(a, b LogFile) int {
		return cmp.Compare(a.Version, b.Version)
	})

	for _, version := range slices.Sorted(maps.Keys(sets)) {
		set := sets[version]
		slices.SortFunc(set.parts, func(a, b LogFile) int {
			return cmp.Compare(a.Part, b.Part)
		})

		if set.complete() {
			listing.checkpoints = append(listing.checkpoints, set)
		} else {
			listing.incomplete = append(listing.incomplete, version)
		}
	}

	return listing
}

// newest returns the highest complete checkpoint.
func (l *logListing) newest() *checkpointSet {
	if len(l.checkpoints) == 0 {
		return nil
	}

	return l.checkpoints[len(l.checkpoints)-1]
}

func (l *logListing) inventory() delta.LogInventory {
	inv := delta.LogInventory{
		JSONFiles:   len(l.commits),
		Checkpoints: make([]delta.CheckpointFile, 0, len(l.checkpoints)),
	}

	for _, commit := range l.commits {
		inv.LogSizeBytes += commit.Size
	}

	for _, set := range l.checkpoints {
		inv.Checkpoints = append(inv.Checkpoints, set.file())
	}

	return inv
}

func (l *logListing) empty() bool {
	return len(l.commits) == 0 && len(l.checkpoints) == 0
}
