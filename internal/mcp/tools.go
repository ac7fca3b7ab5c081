package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/deltascope/internal/insights"
	"github.com/Sumatoshi-tech/deltascope/internal/inspector"
	"github.com/Sumatoshi-tech/deltascope/internal/render"
	"github.com/Sumatoshi-tech/deltascope/internal/stats"
)

// Tool name constants.
const (
	ToolNameStatistics    = "delta_statistics"
	ToolNameHistory       = "delta_history"
	ToolNameInsights      = "delta_insights"
	ToolNameConfiguration = "delta_configuration"
	ToolNameTimeline      = "delta_timeline"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyTable indicates the table parameter is empty.
	ErrEmptyTable = errors.New("table parameter is required and must not be empty")
	// ErrNegativeVersion indicates a negative version was requested.
	ErrNegativeVersion = errors.New("version must be non-negative")
	// ErrNegativePaging indicates a negative page or page_size.
	ErrNegativePaging = errors.New("page and page_size must be non-negative")
)

// Input types (auto-generate JSON schemas via struct tags).

// StatisticsInput is the input schema for the delta_statistics tool.
type StatisticsInput struct {
	Table        string `json:"table"                   jsonschema:"table location (path, file://, s3://, gs://, abfss://, az://)"`
	Version      *int64 `json:"version,omitempty"       jsonschema:"inspect this version instead of the latest"`
	IncludeFiles bool   `json:"include_files,omitempty" jsonschema:"include the active file list"`
}

// HistoryInput is the input schema for the delta_history tool.
type HistoryInput struct {
	Table       string `json:"table"                  jsonschema:"table location"`
	Page        int    `json:"page,omitempty"         jsonschema:"1-based page number (default: 1)"`
	PageSize    int    `json:"page_size,omitempty"    jsonschema:"commits per page (default: 20)"`
	OldestFirst bool   `json:"oldest_first,omitempty" jsonschema:"order by ascending version instead of newest first"`
}

// InsightsInput is the input schema for the delta_insights tool.
type InsightsInput struct {
	Table   string `json:"table"             jsonschema:"table location"`
	Version *int64 `json:"version,omitempty" jsonschema:"analyze this version instead of the latest"`
}

// ConfigurationInput is the input schema for the delta_configuration tool.
type ConfigurationInput struct {
	Table string `json:"table" jsonschema:"table location"`
}

// TimelineInput is the input schema for the delta_timeline tool.
type TimelineInput struct {
	Table    string `json:"table"              jsonschema:"table location"`
	Timezone string `json:"timezone,omitempty" jsonschema:"IANA zone for day buckets (default: server local time)"`
}

// Output types.

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// StatisticsOutput is the delta_statistics payload.
type StatisticsOutput struct {
	Statistics            *stats.TableStatistics  `json:"statistics"`
	Schema                inspector.SchemaSummary `json:"schema"`
	OldestRetainedVersion int64                   `json:"oldest_retained_version"`
	LatestVersion         int64                   `json:"latest_version"`
	FromCheckpoint        bool                    `json:"from_checkpoint"`
	ReplayedCommits       int                     `json:"replayed_commits"`
}

// InsightsOutput is the delta_insights payload.
type InsightsOutput struct {
	Version  int64              `json:"version"`
	Insights []insights.Insight `json:"insights"`
	Counts   map[string]int     `json:"counts"`
}

// Handlers.

func (s *Server) handleStatistics(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input StatisticsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	report, err := s.inspect(ctx, input.Table, input.Version)
	if err != nil {
		return errorResult(err)
	}

	statistics := *report.Statistics()
	if !input.IncludeFiles {
		statistics.Files = nil
	}

	oldest, latest := report.VersionRange()

	return jsonResult(StatisticsOutput{
		Statistics:            &statistics,
		Schema:                report.SchemaSummary(),
		OldestRetainedVersion: oldest,
		LatestVersion:         latest,
		FromCheckpoint:        report.FromCheckpoint(),
		ReplayedCommits:       report.ReplayedCommits(),
	})
}

func (s *Server) handleHistory(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input HistoryInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Page < 0 || input.PageSize < 0 {
		return errorResult(ErrNegativePaging)
	}

	report, err := s.inspect(ctx, input.Table, nil)
	if err != nil {
		return errorResult(err)
	}

	size := input.PageSize
	if size == 0 {
		size = s.pageSize
	}

	page, err := render.Paginate(report.History(input.OldestFirst), input.Page, size)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(page)
}

func (s *Server) handleInsights(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input InsightsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	report, err := s.inspect(ctx, input.Table, input.Version)
	if err != nil {
		return errorResult(err)
	}

	found := report.Insights(s.now())

	counts := make(map[string]int)
	for severity, n := range insights.CountBySeverity(found) {
		counts[severity.String()] = n
	}

	return jsonResult(InsightsOutput{
		Version:  report.Statistics().Version,
		Insights: found,
		Counts:   counts,
	})
}

func (s *Server) handleConfiguration(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ConfigurationInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	report, err := s.inspect(ctx, input.Table, nil)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(report.Configuration())
}

func (s *Server) handleTimeline(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input TimelineInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	loc := s.loc

	if input.Timezone != "" {
		zone, err := time.LoadLocation(input.Timezone)
		if err != nil {
			return errorResult(fmt.Errorf("load timezone %q: %w", input.Timezone, err))
		}

		loc = zone
	}

	report, err := s.inspect(ctx, input.Table, nil)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(report.Timeline(loc))
}

// inspect runs one analysis pass over table.
func (s *Server) inspect(ctx context.Context, table string, version *int64) (*inspector.Report, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, ErrEmptyTable
	}

	var opts []inspector.InspectOption

	if version != nil {
		if *version < 0 {
			return nil, fmt.Errorf("%w: %d", ErrNegativeVersion, *version)
		}

		opts = append(opts, inspector.AtVersion(*version))
	}

	source, err := s.opener(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}

	report, err := s.inspector.Inspect(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("inspect table: %w", err)
	}

	return report, nil
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// Tool description constants.
const (
	statisticsToolDescription = "Reconstruct a Delta Lake table and report its statistics: " +
		"version, file count, total size, schema, protocol and last operation."

	historyToolDescription = "Page through the retained commit history of a Delta Lake table, " +
		"newest first unless oldest_first is set."

	insightsToolDescription = "Evaluate health rules (small files, vacuum, partitioning, skew, " +
		"write patterns) and return prioritized findings with recommendations."

	configurationToolDescription = "Report Delta table properties, protocol features and " +
		"transaction log accounting."

	timelineToolDescription = "Summarize table activity: operation counts by type and by day, " +
		"version creation rate and detected write patterns."
)
