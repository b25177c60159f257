package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/dpnam2112/codemate-backend/internal/platform/ctxutil"
)

const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"
)

// AttachTraceContext must run after otelgin so the active span's trace id is
// preferred over a generated one.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		traceID := strings.TrimSpace(c.GetHeader(HeaderTraceID))
		if traceID == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				traceID = sc.TraceID().String()
			}
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{TraceID: traceID, RequestID: reqID})
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(HeaderTraceID, traceID)
		c.Writer.Header().Set(HeaderRequestID, reqID)
		c.Next()
	}
}
