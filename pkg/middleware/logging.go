package middleware

import (
	"log/slog"
	"time"

	"assist/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger creates a middleware that logs requests and injects the logger.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)

		// child logger with request details
		reqLog := log.With(
			logging.RequestID(reqID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("remote_addr", c.ClientIP()),
		)
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			reqLog = reqLog.With(logging.TraceID(sc.TraceID().String()))
		}
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), reqLog))

		c.Next()

		status := c.Writer.Status()
		attrs := []any{slog.Int("status", status), slog.Duration("latency", time.Since(start))}
		switch {
		case status >= 500:
			reqLog.Error("http - request - completed", attrs...)
		case status >= 400:
			reqLog.Warn("http - request - completed", attrs...)
		default:
			reqLog.Info("http - request - completed", attrs...)
		}
	}
}
