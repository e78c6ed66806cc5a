package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func setupHealthEngine(checks ...ReadinessCheck) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinMiddleware(zap.NewNop()))
	NewHealthHandler("manufacturing", checks...).RegisterRoutes(r)
	return r
}

func TestHealthHandler_Health(t *testing.T) {
	down := ReadinessCheck{Name: "database", Pinger: pingerFunc(func(context.Context) error { return errors.New("down") })}
	r := setupHealthEngine(down)

	w := doRequest(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"manufacturing"}`, string(decode(t, w).Data))
}

func TestHealthHandler_Ready(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	failing := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     []ReadinessCheck
		wantStatus int
		wantChecks map[string]string
	}{
		{name: "no checks", wantStatus: http.StatusOK, wantChecks: map[string]string{}},
		{
			name:       "all up",
			checks:     []ReadinessCheck{{Name: "database", Pinger: ok}, {Name: "locker", Pinger: ok}},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "locker": "ok"},
		},
		{
			name:       "locker down",
			checks:     []ReadinessCheck{{Name: "database", Pinger: ok}, {Name: "locker", Pinger: failing}},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "ok", "locker": "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, setupHealthEngine(tt.checks...), http.MethodGet, "/ready", nil)
			assert.Equal(t, tt.wantStatus, w.Code)

			env := decode(t, w)
			var data struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &data))
			assert.Equal(t, tt.wantChecks, data.Checks)
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "not_ready", data.Status)
				require.NotNil(t, env.Error)
				assert.Equal(t, "UNAVAILABLE", env.Error.Code)
			}
		})
	}
}
