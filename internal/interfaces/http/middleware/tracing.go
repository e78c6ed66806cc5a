// Package middleware provides the gin middleware chain of the API server.
package middleware

import (
	"net/http"

	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing returns the otelgin middleware, or a pass-through when disabled.
// Spans are named "METHOD route".
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanEnricher tags the request span with the request ID and marks it as an
// error for 4xx/5xx responses. It must run inside Tracing and after
// logger.GinMiddleware has assigned the request ID.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		if id := logger.GetRequestID(c.Request.Context()); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if code, ok := c.Get(errorCodeKey); ok {
			if s, ok := code.(string); ok {
				span.SetAttributes(attribute.String("error.code", s))
			}
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// errorCodeKey is where handlers leave the error code of a failed request
const errorCodeKey = "error_code"

// SetErrorCode records the error code of the response for the span and logs
func SetErrorCode(c *gin.Context, code string) {
	c.Set(errorCodeKey, code)
}
