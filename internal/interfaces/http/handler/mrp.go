package handler

import (
	"context"
	"strings"

	planningapp "github.com/erp/manufacturing/internal/application/planning"
	"github.com/erp/manufacturing/internal/domain/planning"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MRPOperations is the planning surface served over HTTP
type MRPOperations interface {
	ExecuteMRP(ctx context.Context, req planningapp.ExecuteMRPRequest) (*planningapp.RunResponse, error)
	GetMRPRun(ctx context.Context, runID uuid.UUID) (*planningapp.RunResponse, error)
	ListMRPRuns(ctx context.Context, filter planningapp.RunListFilter) (*shared.Paginated[planningapp.RunResponse], error)
	ListRequirements(ctx context.Context, runID uuid.UUID, statuses ...planning.RequirementStatus) ([]planningapp.RequirementResponse, error)
	GetRunSummary(ctx context.Context, runID uuid.UUID) (*planningapp.RunSummary, error)
	DeleteMRPRun(ctx context.Context, runID uuid.UUID) error
	GeneratePurchaseRequests(ctx context.Context, runID uuid.UUID, req planningapp.GeneratePurchaseRequestsRequest) (*planningapp.GenerationResult, error)
}

// MRPHandler serves MRP runs and purchase request generation
type MRPHandler struct {
	BaseHandler
	mrp MRPOperations
}

// NewMRPHandler creates a new MRPHandler
func NewMRPHandler(mrp MRPOperations) *MRPHandler {
	return &MRPHandler{mrp: mrp}
}

// RegisterRoutes mounts the run routes under /mrp
func (h *MRPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	runs := rg.Group("/mrp/runs")
	runs.POST("", h.ExecuteMRP)
	runs.GET("", h.ListMRPRuns)
	runs.GET("/:id", h.GetMRPRun)
	runs.GET("/:id/requirements", h.ListRequirements)
	runs.GET("/:id/summary", h.GetRunSummary)
	runs.DELETE("/:id", h.DeleteMRPRun)
	runs.POST("/:id/purchase-requests", h.GeneratePurchaseRequests)
}

// ExecuteMRP runs requirement netting over the planning horizon
func (h *MRPHandler) ExecuteMRP(c *gin.Context) {
	var req planningapp.ExecuteMRPRequest
	// an empty body runs with the default horizon
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}
	run, err := h.mrp.ExecuteMRP(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, run)
}

// ListMRPRuns lists runs newest first
func (h *MRPHandler) ListMRPRuns(c *gin.Context) {
	var filter planningapp.RunListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.mrp.ListMRPRuns(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetMRPRun returns one run
func (h *MRPHandler) GetMRPRun(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	run, err := h.mrp.GetMRPRun(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, run)
}

// ListRequirements returns the requirements of a run. The status query takes
// a comma separated list, e.g. ?status=shortage,pr_created.
func (h *MRPHandler) ListRequirements(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	reqs, err := h.mrp.ListRequirements(c.Request.Context(), id, statuses...)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reqs)
}

func parseStatuses(raw string) ([]planning.RequirementStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var out []planning.RequirementStatus
	for part := range strings.SplitSeq(raw, ",") {
		s := planning.RequirementStatus(strings.TrimSpace(part))
		if !s.IsValid() {
			return nil, shared.NewDomainError(shared.CodeValidation, "unknown requirement status "+string(s))
		}
		out = append(out, s)
	}
	return out, nil
}

// GetRunSummary returns status counts and unresolved shortages per item
func (h *MRPHandler) GetRunSummary(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	summary, err := h.mrp.GetRunSummary(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// DeleteMRPRun removes a run that no purchase request was generated from
func (h *MRPHandler) DeleteMRPRun(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.mrp.DeleteMRPRun(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// GeneratePurchaseRequests creates one draft purchase request per short item
func (h *MRPHandler) GeneratePurchaseRequests(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req planningapp.GeneratePurchaseRequestsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}
	result, err := h.mrp.GeneratePurchaseRequests(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
