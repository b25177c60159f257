package ctxutil

import "context"

type traceDataKey struct{}

// TraceData identifies one inbound request across logs and spans.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// LogFields returns trace_id/request_id key-value pairs for the logger.
func LogFields(ctx context.Context) []any {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	out := make([]any, 0, 4)
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		out = append(out, "request_id", td.RequestID)
	}
	return out
}
