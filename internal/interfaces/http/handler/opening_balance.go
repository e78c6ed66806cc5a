package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	inventoryapp "github.com/erp/manufacturing/internal/application/inventory"
	"github.com/erp/manufacturing/internal/interfaces/http/dto"
	"github.com/erp/manufacturing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// OpeningBalanceImports loads initial stock from a CSV file
type OpeningBalanceImports interface {
	Import(ctx context.Context, r io.Reader, actor string) (*inventoryapp.OpeningBalanceImportResult, error)
}

// OpeningBalanceHandler serves the opening balance upload
type OpeningBalanceHandler struct {
	BaseHandler
	importer OpeningBalanceImports
}

// NewOpeningBalanceHandler creates a new OpeningBalanceHandler
func NewOpeningBalanceHandler(importer OpeningBalanceImports) *OpeningBalanceHandler {
	return &OpeningBalanceHandler{importer: importer}
}

// RegisterRoutes mounts POST /inventory/opening-balances
func (h *OpeningBalanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/inventory/opening-balances", h.Import)
}

// Import takes the CSV file as the request body (text/csv) and the actor as
// a query parameter. A file with invalid rows is rejected as a whole.
func (h *OpeningBalanceHandler) Import(c *gin.Context) {
	actor := c.Query("actor")
	if actor == "" {
		h.Error(c, dto.ErrCodeValidation, "actor query parameter is required")
		return
	}

	result, err := h.importer.Import(c.Request.Context(), c.Request.Body, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if len(result.Errors) > 0 {
		details := make([]dto.ValidationDetail, len(result.Errors))
		for i, e := range result.Errors {
			field := fmt.Sprintf("row %d", e.Row)
			if e.Column != "" {
				field += "." + e.Column
			}
			details[i] = dto.ValidationDetail{Field: field, Message: e.Message}
		}
		middleware.SetErrorCode(c, dto.ErrCodeValidation)
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
			fmt.Sprintf("%d invalid rows, nothing imported", result.TotalErrors), requestID(c), details))
		return
	}
	h.Success(c, result)
}
