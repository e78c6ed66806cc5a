package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prevTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
		otel.SetTracerProvider(prevTP)
	})
	return sr
}

func newTracedRouter(status int, code string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Tracing(TracingConfig{ServiceName: "test-service", Enabled: true}))
	r.Use(logger.GinMiddleware(zap.NewNop()))
	r.Use(SpanEnricher())
	r.GET("/runs/:id", func(c *gin.Context) {
		if code != "" {
			SetErrorCode(c, code)
		}
		c.Status(status)
	})
	return r
}

func attrValue(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_Disabled(t *testing.T) {
	sr := setupTestTracer(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Tracing(TracingConfig{Enabled: false}))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestSpanEnricher(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		code       string
		wantError  bool
		wantErrTag string
	}{
		{name: "success", status: http.StatusOK},
		{name: "conflict", status: http.StatusConflict, code: "STATE_CONFLICT", wantError: true, wantErrTag: "STATE_CONFLICT"},
		{name: "server error", status: http.StatusInternalServerError, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := setupTestTracer(t)
			req := httptest.NewRequest(http.MethodGet, "/runs/42", nil)
			req.Header.Set(logger.RequestIDHeader, "req-123")
			w := httptest.NewRecorder()
			newTracedRouter(tt.status, tt.code).ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			spans := sr.Ended()
			require.Len(t, spans, 1)
			span := spans[0]

			id, ok := attrValue(span, "request_id")
			require.True(t, ok)
			assert.Equal(t, "req-123", id.AsString())

			if tt.wantError {
				assert.Equal(t, codes.Error, span.Status().Code)
				if tt.status < http.StatusInternalServerError {
					assert.Equal(t, http.StatusText(tt.status), span.Status().Description)
				}
			} else {
				assert.NotEqual(t, codes.Error, span.Status().Code)
			}
			errTag, ok := attrValue(span, "error.code")
			assert.Equal(t, tt.wantErrTag != "", ok)
			if ok {
				assert.Equal(t, tt.wantErrTag, errTag.AsString())
			}
		})
	}
}

func TestSpanEnricher_WithoutSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SpanEnricher())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
