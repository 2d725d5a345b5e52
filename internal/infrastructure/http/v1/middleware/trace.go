package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appctx "partscatalog/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// maxIDLength bounds client supplied correlation ids.
const maxIDLength = 128

// Trace middleware adds request tracing context.
// Extracts or generates trace IDs for distributed tracing.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := headerOrNew(c, HeaderRequestID)
		traceID := headerOrNew(c, HeaderTraceID)

		trace := &appctx.TraceContext{TraceID: traceID, RequestID: requestID}
		c.Request = c.Request.WithContext(appctx.WithTrace(c.Request.Context(), trace))

		c.Set(traceIDKey, traceID)
		c.Set(requestIDKey, requestID)
		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderTraceID, traceID)

		c.Next()
	}
}

func headerOrNew(c *gin.Context, name string) string {
	v := c.GetHeader(name)
	if v == "" || len(v) > maxIDLength {
		return uuid.NewString()
	}
	return v
}
