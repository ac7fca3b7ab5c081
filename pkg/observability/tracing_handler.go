package observability

import (
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefixDiagnostics = "diagnostics "

// codeRecorder remembers the first status code a handler sends. A handler
// that only writes a body answers 200.
type codeRecorder struct {
	http.ResponseWriter

	code int
	sent bool
}

func (r *codeRecorder) WriteHeader(code int) {
	if !r.sent {
		r.code, r.sent = code, true
	}

	r.ResponseWriter.WriteHeader(code)
}

// TraceRequests wraps a diagnostics handler with one server span per
// request. Upstream W3C trace context is honoured so a scraper's trace can
// link to the span. Responses of 500 and above mark the span failed.
func TraceRequests(tracer trace.Tracer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))

		ctx, span := tracer.Start(ctx, spanPrefixDiagnostics+hr.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		rec := &codeRecorder{ResponseWriter: rw, code: http.StatusOK}
		next.ServeHTTP(rec, hr.WithContext(ctx))

		span.SetAttributes(
			semconv.HTTPRequestMethodKey.String(hr.Method),
			attribute.String("http.route", hr.URL.Path),
			semconv.HTTPResponseStatusCode(rec.code),
		)

		if rec.code >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, "diagnostics endpoint answered "+strconv.Itoa(rec.code))
		}
	})
}
