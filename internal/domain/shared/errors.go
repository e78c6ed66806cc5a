package shared

import "errors"

// DomainError represents a domain-level error with a stable code.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so errors.Is works on
// errors built with a custom message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeValidation          = "VALIDATION"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeNotFound            = "NOT_FOUND"
	CodeStateConflict       = "STATE_CONFLICT"
	CodeNoShortages         = "NO_SHORTAGES"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeIntegrityViolation  = "INTEGRITY_VIOLATION"
)

// Common domain errors
var (
	ErrValidation          = NewDomainError(CodeValidation, "Invalid input provided")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrStateConflict       = NewDomainError(CodeStateConflict, "Operation not allowed in current state")
	ErrNoShortages         = NewDomainError(CodeNoShortages, "No unresolved shortages")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrIntegrityViolation  = NewDomainError(CodeIntegrityViolation, "Ledger integrity violated")
)

// ErrorCode extracts the code of a DomainError, or "" for any other error.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
