package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/manufacturing/internal/infrastructure/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newCORSRouter(cfg CORSConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{name: "allowed origin", origins: []string{"https://erp.example.com"}, method: http.MethodGet, origin: "https://erp.example.com", wantStatus: http.StatusOK, wantAllow: "https://erp.example.com"},
		{name: "unknown origin", origins: []string{"https://erp.example.com"}, method: http.MethodGet, origin: "https://evil.example.com", wantStatus: http.StatusOK},
		{name: "empty whitelist", method: http.MethodGet, origin: "https://erp.example.com", wantStatus: http.StatusOK},
		{name: "wildcard", origins: []string{"*"}, method: http.MethodGet, origin: "https://any.example.com", wantStatus: http.StatusOK, wantAllow: "*"},
		{name: "preflight allowed", origins: []string{"https://erp.example.com"}, method: http.MethodOptions, origin: "https://erp.example.com", wantStatus: http.StatusNoContent, wantAllow: "https://erp.example.com"},
		{name: "preflight rejected still 204", origins: []string{"https://erp.example.com"}, method: http.MethodOptions, origin: "https://evil.example.com", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CORSConfigFromHTTP(config.HTTPConfig{CORSAllowOrigins: tt.origins})
			r := newCORSRouter(cfg)

			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantAllow != "" {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
				assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}

func TestCORSConfigFromHTTP_Defaults(t *testing.T) {
	cfg := CORSConfigFromHTTP(config.HTTPConfig{})
	assert.Empty(t, cfg.AllowOrigins)
	assert.Contains(t, cfg.AllowMethods, "DELETE")
	assert.Contains(t, cfg.AllowHeaders, "X-Request-ID")

	custom := CORSConfigFromHTTP(config.HTTPConfig{CORSAllowMethods: []string{"GET"}})
	assert.Equal(t, []string{"GET"}, custom.AllowMethods)
}

func TestSecure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Secure())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}
