package persistence

import (
	"strings"

	"github.com/erp/manufacturing/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// TransactionSortFields contains allowed sort fields for the transaction log
var TransactionSortFields = map[string]bool{
	"transaction_date": true,
	"created_at":       true,
	"transaction_type": true,
	"quantity":         true,
	"reference_type":   true,
}

// RunSortFields contains allowed sort fields for MRP runs
var RunSortFields = map[string]bool{
	"run_date":           true,
	"run_number":         true,
	"status":             true,
	"created_at":         true,
	"total_requirements": true,
	"total_shortages":    true,
}

// applyPage orders and paginates query. Only whitelisted columns reach the
// ORDER BY clause.
func applyPage(query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	query = query.Order(field + " " + ValidateSortOrder(filter.OrderDir))
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}
