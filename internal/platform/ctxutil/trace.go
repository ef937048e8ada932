// Package ctxutil carries per-request identifiers on the context so log
// lines written deep in a mutation can be tied back to one HTTP request.
package ctxutil

import "context"

type traceDataKey struct{}

// TraceData holds the ids stamped by the request-log middleware: a uuid per
// request and the otel trace id when a span is active.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}
