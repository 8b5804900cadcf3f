// Package tracingmw implements a stateless tracing-context injector,
// grounded on the teacher's LoggingMiddleware shape (read/write
// metadata around next), generating a request ID the way the teacher's
// logger records a duration.
package tracingmw

import (
	"context"

	"github.com/google/uuid"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/middleware"
)

// TraceIDKey and ParentSpanKey are the Metadata fields this middleware
// reads and writes.
const (
	TraceIDKey   = "trace_id"
	ParentSpanKey = "span_id"
)

// New returns a Middleware that ensures every outgoing Envelope carries
// a trace_id: it reuses one already present in Metadata (propagating a
// trace across a chain of calls), or mints a fresh one otherwise. A
// fresh span_id is generated for this call on every invocation, with
// the inbound trace_id's prior span_id (if any) threaded through as
// the new span's parent.
func New() middleware.Middleware {
	return func(next middleware.Runner) middleware.Runner {
		return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
			md := env.Metadata.Clone()

			traceID, _ := md[TraceIDKey].(string)
			if traceID == "" {
				traceID = uuid.NewString()
			}
			parentSpan, _ := md[ParentSpanKey].(string)

			md[TraceIDKey] = traceID
			md[ParentSpanKey] = uuid.NewString()
			if parentSpan != "" {
				md["parent_span_id"] = parentSpan
			}

			return next(ctx, env.WithMetadata(md))
		}
	}
}
