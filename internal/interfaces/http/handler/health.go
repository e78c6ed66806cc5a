package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"github.com/erp/manufacturing/internal/interfaces/http/dto"
	"github.com/erp/manufacturing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck is one named dependency probed by /ready
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	service string
	checks  []ReadinessCheck
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(service string, checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{service: service, checks: checks, timeout: 2 * time.Second}
}

// RegisterRoutes mounts the probes on the root of the engine
func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
}

// Health reports that the process is serving
func (h *HealthHandler) Health(c *gin.Context) {
	h.Success(c, gin.H{"status": "healthy", "service": h.service})
}

// Ready pings every dependency and answers 503 when one is down
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	ready := true
	for _, check := range h.checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			logger.GetGinLogger(c).Warn("Readiness check failed", zap.String("check", check.Name), zap.Error(err))
			results[check.Name] = err.Error()
			ready = false
			continue
		}
		results[check.Name] = "ok"
	}

	if !ready {
		middleware.SetErrorCode(c, dto.ErrCodeUnavailable)
		c.JSON(http.StatusServiceUnavailable, dto.Response{
			Success: false,
			Data:    gin.H{"status": "not_ready", "checks": results},
			Error:   &dto.ErrorInfo{Code: dto.ErrCodeUnavailable, Message: "Dependencies unavailable", RequestID: requestID(c)},
		})
		return
	}
	h.Success(c, gin.H{"status": "ready", "checks": results})
}
