package observability

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// exportPolicy decides which span attribute keys leave the process. Table
// locations may embed SAS tokens or account names, so only deltascope's own
// namespaces are exported and credential-like keys never are.
type exportPolicy struct {
	namespaces []string
	denied     []string
	deniedKeys []string
}

var defaultExportPolicy = exportPolicy{
	namespaces: []string{"deltascope.", "delta.", "table.", "storage.", "mcp.", "http.", "error.", "insights."},
	denied:     []string{"user.", "credential."},
	deniedKeys: []string{"email", "sas_token", "request.body", "response.body"},
}

func (p exportPolicy) exports(key string) bool {
	if slices.Contains(p.deniedKeys, key) || hasAnyPrefix(key, p.denied) {
		return false
	}

	return key == "error" || hasAnyPrefix(key, p.namespaces)
}

func hasAnyPrefix(key string, prefixes []string) bool {
	return slices.ContainsFunc(prefixes, func(prefix string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// redactingProcessor applies exportPolicy to finished spans before its
// delegate sees them.
type redactingProcessor struct {
	sdktrace.SpanProcessor

	policy exportPolicy
	logger *slog.Logger
}

// NewAttributeFilter wraps delegate so only allowed attributes are exported.
// When logger is non-nil each dropped key is reported as a warning.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &redactingProcessor{SpanProcessor: delegate, policy: defaultExportPolicy, logger: logger}
}

func (p *redactingProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	original := s.Attributes()
	kept := make([]attribute.KeyValue, 0, len(original))

	for _, kv := range original {
		if p.policy.exports(string(kv.Key)) {
			kept = append(kept, kv)

			continue
		}

		if p.logger != nil {
			p.logger.Warn("span attribute dropped", "span", s.Name(), "key", string(kv.Key))
		}
	}

	p.SpanProcessor.OnEnd(redactedSpan{ReadOnlySpan: s, attrs: kept})
}

func (p *redactingProcessor) Shutdown(ctx context.Context) error {
	err := p.SpanProcessor.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown span processor: %w", err)
	}

	return nil
}

func (p *redactingProcessor) ForceFlush(ctx context.Context) error {
	err := p.SpanProcessor.ForceFlush(ctx)
	if err != nil {
		return fmt.Errorf("flush span processor: %w", err)
	}

	return nil
}

type redactedSpan struct {
	sdktrace.ReadOnlySpan

	attrs []attribute.KeyValue
}

func (s redactedSpan) Attributes() []attribute.KeyValue {
	return s.attrs
}
