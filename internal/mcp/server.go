// Package mcp implements a Model Context Protocol server exposing Delta table
// inspection as MCP tools over stdio transport.
package mcp

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/deltascope/internal/deltalog"
	"github.com/Sumatoshi-tech/deltascope/internal/inspector"
	"github.com/Sumatoshi-tech/deltascope/pkg/observability"
	"github.com/Sumatoshi-tech/deltascope/pkg/version"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "deltascope"

	// defaultPageSize applies when a history call does not set page_size.
	defaultPageSize = 20

	toolOpPrefix = "mcp."
)

// TableOpener resolves a table location to its transaction log.
type TableOpener func(ctx context.Context, location string) (inspector.LogSource, error)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer

	// Opener resolves table locations. Nil opens them with deltalog.Open and
	// credentials from the environment.
	Opener TableOpener

	// Inspector runs the analysis passes. Nil uses inspector.New().
	Inspector *inspector.Inspector

	// PageSize is the default history page size.
	PageSize int

	// Location is the zone used for timeline day buckets. Nil means time.Local.
	Location *time.Location

	// Now is the reference clock for insights. Nil means time.Now.
	Now func() time.Time
}

// Server is an MCP server exposing the inspection tools. Tools are
// registered once in NewServer.
type Server struct {
	inner     *mcpsdk.Server
	tools     []string
	metrics   *observability.REDMetrics
	tracer    trace.Tracer
	opener    TableOpener
	inspector *inspector.Inspector
	pageSize  int
	loc       *time.Location
	now       func() time.Time
}

// NewServer builds the server and registers every tool.
func NewServer(deps ServerDeps) *Server {
	srv := &Server{
		inner: mcpsdk.NewServer(
			&mcpsdk.Implementation{Name: serverName, Version: version.Version},
			&mcpsdk.ServerOptions{Logger: deps.Logger},
		),
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		opener:    deps.Opener,
		inspector: deps.Inspector,
		pageSize:  cmp.Or(max(deps.PageSize, 0), defaultPageSize),
		loc:       deps.Location,
		now:       deps.Now,
	}

	if srv.opener == nil {
		srv.opener = openFromEnvironment
	}

	if srv.inspector == nil {
		srv.inspector = inspector.New(inspector.WithLogger(deps.Logger))
	}

	if srv.loc == nil {
		srv.loc = time.Local
	}

	if srv.now == nil {
		srv.now = time.Now
	}

	addTool(srv, ToolNameStatistics, statisticsToolDescription, srv.handleStatistics)
	addTool(srv, ToolNameHistory, historyToolDescription, srv.handleHistory)
	addTool(srv, ToolNameInsights, insightsToolDescription, srv.handleInsights)
	addTool(srv, ToolNameConfiguration, configurationToolDescription, srv.handleConfiguration)
	addTool(srv, ToolNameTimeline, timelineToolDescription, srv.handleTimeline)

	return srv
}

func openFromEnvironment(ctx context.Context, location string) (inspector.LogSource, error) {
	return deltalog.Open(ctx, location, deltalog.Capabilities{})
}

// ListToolNames returns the registered tool names in lexical order.
func (s *Server) ListToolNames() []string {
	return slices.Sorted(slices.Values(s.tools))
}

// Run serves MCP over stdin and stdout until ctx ends or the client hangs up.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves MCP over transport until ctx ends or the
// connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func addTool[In any](s *Server, name, description string, handler mcpsdk.ToolHandlerFor[In, ToolOutput]) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description}, instrumented(s, name, handler))
	s.tools = append(s.tools, name)
}

// instrumented wraps a tool handler with a server span and RED metrics
// under the operation "mcp.<tool>". A sampled call gets its trace_id
// appended to the result content so a client can find the trace. A result
// flagged IsError counts as a failed request even though the handler
// returned no Go error.
func instrumented[In any](
	s *Server, name string, handler mcpsdk.ToolHandlerFor[In, ToolOutput],
) mcpsdk.ToolHandlerFor[In, ToolOutput] {
	if s.tracer == nil && s.metrics == nil {
		return handler
	}

	op := toolOpPrefix + name

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		call := s.metrics.Begin(ctx, op)

		var span trace.Span
		if s.tracer != nil {
			ctx, span = s.tracer.Start(ctx, op,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attribute.String("mcp.tool", name)))
			defer span.End()
		}

		result, output, err := handler(ctx, req, input)

		failed := err != nil || (result != nil && result.IsError)
		call.End(failed)

		if span == nil {
			return result, output, err
		}

		if failed {
			span.SetStatus(codes.Error, "tool call failed")
		}

		if sc := span.SpanContext(); sc.IsSampled() && result != nil {
			result.Content = append(result.Content, &mcpsdk.TextContent{Text: "trace_id=" + sc.TraceID().String()})
		}

		return result, output, err
	}
}
