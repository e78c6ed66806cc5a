package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/manufacturing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiRoutes struct{}

func (apiRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/mrp/runs", func(c *gin.Context) { c.String(http.StatusOK, "runs") })
	rg.POST("/mrp/runs", func(c *gin.Context) { c.String(http.StatusCreated, "run") })
}

type probeRoutes struct{}

func (probeRoutes) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	NewRouter(engine).Register(apiRoutes{}).RegisterRoot(probeRoutes{}).Setup()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{name: "versioned route", method: http.MethodGet, path: "/api/v1/mrp/runs", wantStatus: http.StatusOK},
		{name: "versioned post", method: http.MethodPost, path: "/api/v1/mrp/runs", wantStatus: http.StatusCreated},
		{name: "root probe", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "probe is not versioned", method: http.MethodGet, path: "/api/v1/health", wantStatus: http.StatusNotFound, wantCode: dto.ErrCodeNotFound},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/orders", wantStatus: http.StatusNotFound, wantCode: dto.ErrCodeNotFound},
		{name: "wrong method", method: http.MethodPut, path: "/api/v1/mrp/runs", wantStatus: http.StatusMethodNotAllowed, wantCode: dto.ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantCode != "" {
				var resp dto.Response
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			}
		})
	}
}
