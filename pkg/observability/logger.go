package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// NewLogger builds the text or JSON logger described by cfg.Logging,
// writing to w. Records logged with a span in their context carry
// trace_id and span_id. Service metadata is attached before any group is
// opened, so it always sits at the top level of the record.
func NewLogger(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Logging.Level}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Logging.JSON {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(spanHandler{next: handler.WithAttrs(serviceAttrs(cfg.Service))})
}

func serviceAttrs(svc Service) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("service", svc.Name),
		slog.String("mode", string(svc.Mode)),
	}

	if svc.Version != "" {
		attrs = append(attrs, slog.String("version", svc.Version))
	}

	if svc.Environment != "" {
		attrs = append(attrs, slog.String("env", svc.Environment))
	}

	return attrs
}

// spanHandler correlates log records with the active span.
type spanHandler struct {
	next slog.Handler
}

func (h spanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h spanHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	err := h.next.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("write log record: %w", err)
	}

	return nil
}

func (h spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return spanHandler{next: h.next.WithAttrs(attrs)}
}

func (h spanHandler) WithGroup(name string) slog.Handler {
	return spanHandler{next: h.next.WithGroup(name)}
}
