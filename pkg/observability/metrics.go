package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "deltascope.requests.total"
	metricRequestDuration  = "deltascope.request.duration.seconds"
	metricErrorsTotal      = "deltascope.errors.total"
	metricInflightRequests = "deltascope.inflight.requests"

	statusOK    = "ok"
	statusError = "error"
)

// durationBucketBoundaries spans a local table read (milliseconds) up to a
// long cloud listing with retries (minutes).
var durationBucketBoundaries = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// REDMetrics counts rate, errors and duration of CLI commands and MCP tool
// calls, keyed by the "op" attribute. A nil *REDMetrics records nothing.
type REDMetrics struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter
	now      func() time.Time
}

// NewREDMetrics creates RED instruments from mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	set := &instrumentSet{meter: mt}

	rm := &REDMetrics{
		requests: set.count(metricRequestsTotal, "Commands and MCP tool calls handled", "{request}"),
		errors:   set.count(metricErrorsTotal, "Commands and tool calls that failed", "{error}"),
		duration: set.seconds(metricRequestDuration, "Wall time of a command or tool call"),
		inflight: set.gauge(metricInflightRequests, "Commands and tool calls in progress", "{request}"),
		now:      time.Now,
	}

	err := set.err()
	if err != nil {
		return nil, fmt.Errorf("red metrics: %w", err)
	}

	return rm, nil
}

// Call is one request in progress, counted in the in-flight gauge until End.
type Call struct {
	red     *REDMetrics
	ctx     context.Context //nolint:containedctx // scoped to one request
	op      attribute.KeyValue
	started time.Time
}

// Begin starts tracking a request for op.
func (rm *REDMetrics) Begin(ctx context.Context, op string) *Call {
	if rm == nil {
		return &Call{}
	}

	call := &Call{red: rm, ctx: ctx, op: attribute.String("op", op), started: rm.now()}
	rm.inflight.Add(ctx, 1, metric.WithAttributes(call.op))

	return call
}

// End completes the request. Calling End more than once has no effect.
func (c *Call) End(failed bool) {
	rm := c.red
	if rm == nil {
		return
	}

	c.red = nil

	status := statusOK
	if failed {
		status = statusError
		rm.errors.Add(c.ctx, 1, metric.WithAttributes(c.op))
	}

	attrs := metric.WithAttributes(c.op, attribute.String("status", status))
	rm.requests.Add(c.ctx, 1, attrs)
	rm.duration.Record(c.ctx, rm.now().Sub(c.started).Seconds(), attrs)
	rm.inflight.Add(c.ctx, -1, metric.WithAttributes(c.op))
}
