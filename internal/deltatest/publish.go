package deltatest

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

const fileMode = 0o644

// MemLocation returns a mem:// table root unique to name.
func MemLocation(name string) string {
	return "mem://localhost/" + strings.ReplaceAll(name, " ", "_") + "/table"
}

// EncodeCommit renders a commit as the newline-delimited actions of a commit file.
func EncodeCommit(commit delta.Commit) ([]byte, error) {
	var buf bytes.Buffer

	for _, action := range commitActions(commit) {
		line, err := json.Marshal(action)
		if err != nil {
			return nil, fmt.Errorf("encode action of version %d: %w", commit.Version, err)
		}

		buf.Write(line)
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}

// Publish writes every commit of log below root/_delta_log through svc.
func Publish(ctx context.Context, svc afs.Service, root string, log *delta.CommitLog) error {
	for _, commit := range log.Commits {
		data, err := EncodeCommit(commit)
		if err != nil {
			return err
		}

		if uploadErr := Upload(ctx, svc, root, fmt.Sprintf("%020d.json", commit.Version), data); uploadErr != nil {
			return uploadErr
		}
	}

	return nil
}

// Upload writes one raw file into root/_delta_log.
func Upload(ctx context.Context, svc afs.Service, root, name string, data []byte) error {
	target := url.Join(root, "_delta_log", name)

	if err := svc.Upload(ctx, target, fileMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("upload %s: %w", target, err)
	}

	return nil
}

func commitActions(commit delta.Commit) []map[string]any {
	actions := []map[string]any{{"commitInfo": commitInfo(commit.Entry)}}

	if proto := commit.Protocol; proto != nil {
		action := map[string]any{
			"minReaderVersion": proto.MinReaderVersion,
			"minWriterVersion": proto.MinWriterVersion,
		}

		if proto.ReaderFeatures != nil {
			action["readerFeatures"] = proto.ReaderFeatures
		}

		if proto.WriterFeatures != nil {
			action["writerFeatures"] = proto.WriterFeatures
		}

		actions = append(actions, map[string]any{"protocol": action})
	}

	if meta := commit.Metadata; meta != nil {
		action := map[string]any{
			"id":               meta.ID,
			"name":             meta.Name,
			"format":           map[string]any{"provider": "parquet", "options": map[string]string{}},
			"schemaString":     meta.SchemaString,
			"partitionColumns": nonNil(meta.PartitionColumns),
			"configuration":    nonNilMap(meta.Configuration),
		}

		if meta.Description != "" {
			action["description"] = meta.Description
		}

		if meta.CreatedTime != nil {
			action["createdTime"] = *meta.CreatedTime
		}

		actions = append(actions, map[string]any{"metaData": action})
	}

	for _, remove := range commit.Removes {
		actions = append(actions, map[string]any{"remove": map[string]any{
			"path":              remove.Path,
			"deletionTimestamp": remove.DeletionTimestamp,
			"dataChange":        remove.DataChange,
		}})
	}

	for _, file := range commit.Adds {
		add := map[string]any{
			"path":             file.Path,
			"partitionValues":  nonNilMap(file.PartitionValues),
			"size":             file.SizeBytes,
			"modificationTime": file.ModificationTime.UnixMilli(),
			"dataChange":       true,
		}

		if file.NumRecords != nil {
			add["stats"] = fmt.Sprintf(`{"numRecords":%d}`, *file.NumRecords)
		}

		actions = append(actions, map[string]any{"add": add})
	}

	return actions
}

func commitInfo(entry delta.CommitEntry) map[string]any {
	info := map[string]any{
		"timestamp":  entry.Timestamp,
		"operation":  string(entry.Operation),
		"engineInfo": entry.EngineInfo,
	}

	params := maps.Clone(entry.Parameters.Other)
	if params == nil {
		params = map[string]string{}
	}

	for key, value := range map[string]string{
		delta.ParamMode:        entry.Parameters.Mode,
		delta.ParamPartitionBy: entry.Parameters.PartitionBy,
		delta.ParamPredicate:   entry.Parameters.Predicate,
		delta.ParamZOrderBy:    entry.Parameters.ZOrderBy,
	} {
		if value != "" {
			params[key] = value
		}
	}

	info["operationParameters"] = params

	metrics := map[string]string{}

	for key, value := range map[string]int64{
		"numFiles":        entry.Metrics.NumAddedFiles,
		"numRemovedFiles": entry.Metrics.NumRemovedFiles,
		"numOutputRows":   entry.Metrics.NumAddedRows,
		"numDeletedRows":  entry.Metrics.NumDeletedRows,
		"numUpdatedRows":  entry.Metrics.NumUpdatedRows,
		"numOutputBytes":  entry.Metrics.NumAddedBytes,
		"numRemovedBytes": entry.Metrics.NumRemovedBytes,
	} {
		if value != 0 {
			metrics[key] = fmt.Sprint(value)
		}
	}

	for _, key := range slices.Sorted(maps.Keys(entry.Metrics.Other)) {
		metrics[key] = fmt.Sprint(entry.Metrics.Other[key])
	}

	info["operationMetrics"] = metrics

	return info
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}

func nonNilMap(values map[string]string) map[string]string {
	if values == nil {
		return map[string]string{}
	}

	return values
}
