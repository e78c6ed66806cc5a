package dto

import (
	"net/http"

	"github.com/erp/manufacturing/internal/domain/shared"
)

// Codes produced by the HTTP layer itself. Domain codes pass through as-is.
const (
	ErrCodeValidation      = shared.CodeValidation
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeNotFound        = shared.CodeNotFound
	ErrCodeInternal        = "INTERNAL"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeUnavailable     = "UNAVAILABLE"
)

var errorCodeHTTPStatus = map[string]int{
	shared.CodeValidation:          http.StatusBadRequest,
	shared.CodeInsufficientStock:   http.StatusUnprocessableEntity,
	shared.CodeNoShortages:         http.StatusUnprocessableEntity,
	shared.CodeNotFound:            http.StatusNotFound,
	shared.CodeStateConflict:       http.StatusConflict,
	shared.CodeConcurrencyConflict: http.StatusConflict,
	shared.CodeIntegrityViolation:  http.StatusInternalServerError,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
}

// ErrorCodeToHTTPStatus maps an error code to its HTTP status. Unknown codes
// are server errors.
func ErrorCodeToHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
