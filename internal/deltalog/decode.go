package deltalog

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

// Actions as they appear in commit files. Unknown action kinds are ignored.
type actionEnvelope struct {
	Add        *addAction        `json:"add"`
	Remove     *removeAction     `json:"remove"`
	MetaData   *metadataAction   `json:"metaData"`
	Protocol   *protocolAction   `json:"protocol"`
	CommitInfo *commitInfoAction `json:"commitInfo"`
}

type addAction struct {
	Path             string             `json:"path"`
	PartitionValues  map[string]*string `json:"partitionValues"`
	Size             int64              `json:"size"`
	ModificationTime int64              `json:"modificationTime"`
	DataChange       bool               `json:"dataChange"`
	Stats            string             `json:"stats"`
}

type removeAction struct {
	Path              string `json:"path"`
	DeletionTimestamp *int64 `json:"deletionTimestamp"`
	DataChange        bool   `json:"dataChange"`
}

type metadataAction struct {
	ID               string             `json:"id"`
	Name             *string            `json:"name"`
	Description      *string            `json:"description"`
	SchemaString     string             `json:"schemaString"`
	PartitionColumns []string           `json:"partitionColumns"`
	Configuration    map[string]*string `json:"configuration"`
	CreatedTime      *int64             `json:"createdTime"`
}

type protocolAction struct {
	MinReaderVersion int      `json:"minReaderVersion"`
	MinWriterVersion int      `json:"minWriterVersion"`
	ReaderFeatures   []string `json:"readerFeatures"`
	WriterFeatures   []string `json:"writerFeatures"`
}

type commitInfoAction struct {
	Timestamp           *int64                     `json:"timestamp"`
	Operation           string                     `json:"operation"`
	OperationParameters map[string]json.RawMessage `json:"operationParameters"`
	OperationMetrics    map[string]json.RawMessage `json:"operationMetrics"`
	EngineInfo          string                     `json:"engineInfo"`
	ClientVersion       string                     `json:"clientVersion"`
}

// fileStats is the subset of the add.stats document we read.
type fileStats struct {
	NumRecords *int64 `json:"numRecords"`
}

// actionValidator checks one raw action before it is decoded.
type actionValidator interface {
	Validate(raw []byte) error
}

// decodeCommit decodes one newline-delimited commit file. modTime stands in for a missing
// commitInfo timestamp.
func decodeCommit(version int64, path string, modTime time.Time, r io.Reader, validator actionValidator) (delta.Commit, error) {
	commit := delta.Commit{
		Version: version,
		Entry:   delta.CommitEntry{Version: version, Timestamp: modTime.UnixMilli()},
	}

	corrupt := func(reason string, err error) error {
		return &delta.CorruptLogError{Version: version, Path: path, Reason: reason, Err: err}
	}

	dec := json.NewDecoder(r)
	seenCommitInfo := false

	for line := 1; ; line++ {
		var raw json.RawMessage

		decodeErr := dec.Decode(&raw)
		if errors.Is(decodeErr, io.EOF) {
			break
		}

		if decodeErr != nil {
			return delta.Commit{}, corrupt(fmt.Sprintf("action %d is not valid JSON", line), decodeErr)
		}

		if validator != nil {
			if validateErr := validator.Validate(raw); validateErr != nil {
				return delta.Commit{}, corrupt(fmt.Sprintf("action %d failed validation", line), validateErr)
			}
		}

		var action actionEnvelope
		if unmarshalErr := json.Unmarshal(raw, &action); unmarshalErr != nil {
			return delta.Commit{}, corrupt(fmt.Sprintf("decode action %d", line), unmarshalErr)
		}

		switch {
		case action.Add != nil:
			commit.Adds = append(commit.Adds, convertAdd(action.Add))
		case action.Remove != nil:
			commit.Removes = append(commit.Removes, convertRemove(action.Remove))
		case action.MetaData != nil:
			if commit.Metadata != nil {
				return delta.Commit{}, corrupt("multiple metaData actions in one commit", nil)
			}

			meta := convertMetadata(action.MetaData)
			commit.Metadata = &meta
		case action.Protocol != nil:
			if commit.Protocol != nil {
				return delta.Commit{}, corrupt("multiple protocol actions in one commit", nil)
			}

			proto := convertProtocol(action.Protocol)
			commit.Protocol = &proto
		case action.CommitInfo != nil && !seenCommitInfo:
			seenCommitInfo = true
			applyCommitInfo(&commit.Entry, action.CommitInfo)
		}
	}

	return commit, nil
}

func convertAdd(add *addAction) delta.FileInfo {
	file := delta.FileInfo{
		Path:             unescapePath(add.Path),
		SizeBytes:        max(add.Size, 0),
		ModificationTime: time.UnixMilli(add.ModificationTime).UTC(),
		PartitionValues:  nonNullValues(add.PartitionValues),
	}

	if add.Stats != "" {
		var stats fileStats
		if err := json.Unmarshal([]byte(add.Stats), &stats); err == nil {
			file.NumRecords = stats.NumRecords
		}
	}

	return file
}

func convertRemove(remove *removeAction) delta.RemoveAction {
	out := delta.RemoveAction{Path: unescapePath(remove.Path), DataChange: remove.DataChange}
	if remove.DeletionTimestamp != nil {
		out.DeletionTimestamp = *remove.DeletionTimestamp
	}

	return out
}

func convertMetadata(meta *metadataAction) delta.Metadata {
	out := delta.Metadata{
		ID:               meta.ID,
		SchemaString:     meta.SchemaString,
		PartitionColumns: meta.PartitionColumns,
		Configuration:    nonNullValues(meta.Configuration),
		CreatedTime:      meta.CreatedTime,
	}

	if out.PartitionColumns == nil {
		out.PartitionColumns = []string{}
	}

	if meta.Name != nil {
		out.Name = *meta.Name
	}

	if meta.Description != nil {
		out.Description = *meta.Description
	}

	return out
}

func convertProtocol(proto *protocolAction) delta.Protocol {
	return delta.Protocol{
		MinReaderVersion: proto.MinReaderVersion,
		MinWriterVersion: proto.MinWriterVersion,
		ReaderFeatures:   proto.ReaderFeatures,
		WriterFeatures:   proto.WriterFeatures,
	}
}

func applyCommitInfo(entry *delta.CommitEntry, info *commitInfoAction) {
	if info.Timestamp != nil {
		entry.Timestamp = *info.Timestamp
	}

	entry.Operation = delta.Operation(info.Operation)
	entry.EngineInfo = info.EngineInfo
	if entry.EngineInfo == "" {
		entry.EngineInfo = info.ClientVersion
	}

	params := make(map[string]string, len(info.OperationParameters))
	for key, raw := range info.OperationParameters {
		params[key] = parameterText(raw)
	}

	entry.Parameters = delta.NewOperationParameters(params)

	metrics := make(map[string]int64, len(info.OperationMetrics))
	for key, raw := range info.OperationMetrics {
		if value, ok := metricValue(raw); ok {
			metrics[key] = value
		}
	}

	entry.Metrics = delta.NewOperationMetrics(metrics)
}

// parameterText renders a parameter value: strings unquoted, anything else as raw JSON.
func parameterText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	return strings.TrimSpace(string(raw))
}

// metricValue reads a metric that may be a JSON number or a numeric string.
// Non-numeric metrics are skipped.
func metricValue(raw json.RawMessage) (int64, bool) {
	text := parameterText(raw)

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, true
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return int64(f), true
}

func nonNullValues(in map[string]*string) map[string]string {
	out := make(map[string]string, len(in))

	for key, value := range in {
		if value != nil {
			out[key] = *value
		}
	}

	return out
}

// unescapePath decodes the URI-encoded path of a file action.
func unescapePath(path string) string {
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return path
	}

	return decoded
}
