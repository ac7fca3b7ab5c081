// Package timeline analyzes the commit history over time: operation mix, daily activity,
// version-creation rate and write-pattern heuristics.
package timeline

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/deltascope/pkg/delta"
)

// WritePattern is a qualitative label derived from write commits.
type WritePattern string

// Write patterns.
const (
	PatternSmallFrequentWrites WritePattern = "Small frequent writes detected (avg < 1000 rows)"
	PatternStreaming           WritePattern = "Streaming pattern: writes every few minutes"
	PatternBatch               WritePattern = "Batch pattern: writes once per day or less"
)

// Heuristic thresholds.
const (
	smallWritesMinCount = 10
	smallWritesMaxRows  = 1000
	streamingMaxGap     = 5 * time.Minute
	batchMinGap         = 24 * time.Hour
	dayLayout           = time.DateOnly
)

// DayBucket groups the commits whose timestamps fall on one local calendar day.
type DayBucket struct {
	Day     string              `json:"day"     yaml:"day"`
	Count   int                 `json:"count"   yaml:"count"`
	Commits []delta.CommitEntry `json:"commits" yaml:"commits"`
}

// Report is the timeline view of a table's history.
type Report struct {
	TotalOperations     int                     `json:"total_operations"           yaml:"total_operations"`
	OperationsByType    map[delta.Operation]int `json:"operations_by_type"         yaml:"operations_by_type"`
	OperationsByDay     []DayBucket             `json:"operations_by_day"          yaml:"operations_by_day"`
	VersionCreationRate float64                 `json:"version_creation_rate"      yaml:"version_creation_rate"`
	WritePatterns       []WritePattern          `json:"write_patterns"             yaml:"write_patterns"`
	FirstOperation      *delta.CommitEntry      `json:"first_operation,omitempty"  yaml:"first_operation,omitempty"`
	LatestOperation     *delta.CommitEntry      `json:"latest_operation,omitempty" yaml:"latest_operation,omitempty"`
}

// Analyze builds the timeline report. History may be in any order. Day buckets use loc
// (time.Local when nil) and are sorted by day; commits inside a bucket are in version order.
func Analyze(history []delta.CommitEntry, loc *time.Location) *Report {
	report := &Report{
		OperationsByType: map[delta.Operation]int{},
		OperationsByDay:  []DayBucket{},
		WritePatterns:    []WritePattern{},
	}

	if len(history) == 0 {
		return report
	}

	if loc == nil {
		loc = time.Local
	}

	ordered := slices.Clone(history)
	slices.SortFunc(ordered, func(a, b delta.CommitEntry) int {
		return cmp.Compare(a.Version, b.Version)
	})

	report.TotalOperations = len(ordered)

	days := map[string]*DayBucket{}

	for _, entry := range ordered {
		op := entry.Operation
		if op == "" {
			op = delta.OpUnknown
		}

		report.OperationsByType[op]++

		key := entry.Time().In(loc).Format(dayLayout)

		bucket, ok := days[key]
		if !ok {
			bucket = &DayBucket{Day: key}
			days[key] = bucket
		}

		bucket.Count++
		bucket.Commits = append(bucket.Commits, entry.Clone())
	}

	for _, key := range slices.Sorted(maps.Keys(days)) {
		report.OperationsByDay = append(report.OperationsByDay, *days[key])
	}

	report.VersionCreationRate = creationRate(ordered)
	report.WritePatterns = writePatterns(ordered)

	first := ordered[0].Clone()
	latest := ordered[len(ordered)-1].Clone()
	report.FirstOperation = &first
	report.LatestOperation = &latest

	return report
}

// creationRate is commits per day over the span between the earliest and latest timestamps,
// counting at least one whole day.
func creationRate(ordered []delta.CommitEntry) float64 {
	earliest := slices.MinFunc(ordered, byTimestamp)
	latest := slices.MaxFunc(ordered, byTimestamp)

	days := int64(latest.Time().Sub(earliest.Time()) / batchMinGap)

	return float64(len(ordered)) / float64(max(1, days))
}

func byTimestamp(a, b delta.CommitEntry) int {
	return cmp.Compare(a.Timestamp, b.Timestamp)
}

func writePatterns(ordered []delta.CommitEntry) []WritePattern {
	patterns := []WritePattern{}

	var writes []delta.CommitEntry

	for _, entry := range ordered {
		if entry.Operation.IsDataWrite() {
			writes = append(writes, entry)
		}
	}

	if len(writes) == 0 {
		return patterns
	}

	if len(writes) > smallWritesMinCount {
		var rows int64
		for _, entry := range writes {
			rows += entry.Metrics.NumAddedRows
		}

		if float64(rows)/float64(len(writes)) < smallWritesMaxRows {
			patterns = append(patterns, PatternSmallFrequentWrites)
		}
	}

	if len(writes) > 1 {
		span := writes[len(writes)-1].Time().Sub(writes[0].Time())
		meanGap := span / time.Duration(len(writes)-1)

		switch {
		case meanGap < streamingMaxGap:
			patterns = append(patterns, PatternStreaming)
		case meanGap > batchMinGap:
			patterns = append(patterns, PatternBatch)
		}
	}

	return patterns
}
