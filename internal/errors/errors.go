package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/portfolio-ledger/internal/types"
)

// ErrorCategory groups errors by who is at fault and whether a retry helps.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryIngest     ErrorCategory = "ingest"
	CategoryDatabase   ErrorCategory = "database"
	CategoryCache      ErrorCategory = "cache"
	CategoryRateLimit  ErrorCategory = "rate_limit"
	CategorySystem     ErrorCategory = "system"
)

// CategorizedError is an I/O-boundary error carrying its HTTP mapping.
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts e into the API response shape.
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewInvalidParameterError reports a bad request parameter.
func NewInvalidParameterError(param, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewIngestError reports an input row that could not be read. Callers log and
// skip these; they never abort a batch.
func NewIngestError(source string, row int, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryIngest,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "INGEST_ROW_REJECTED",
		Message:    fmt.Sprintf("%s row %d rejected", source, row),
		Cause:      cause,
		Details: map[string]interface{}{
			"source": source,
			"row":    row,
		},
	}
}

// NewRateLimitError reports a throttled client.
func NewRateLimitError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "rate limit exceeded",
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabaseError wraps a Postgres or ClickHouse failure.
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError wraps a Redis failure.
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewServiceUnavailableError reports a dependency that is down.
func NewServiceUnavailableError(service string) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    fmt.Sprintf("service unavailable: %s", service),
		Details: map[string]interface{}{
			"service": service,
		},
	}
}

// Categorize finds the CategorizedError in err's chain or wraps err as an
// internal error. ServiceErrors are mapped by code.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return fromServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

var serviceErrorCodes = map[string]struct {
	category ErrorCategory
	status   int
}{
	"INVALID_PARAMETER":   {CategoryValidation, http.StatusBadRequest},
	"INVALID_ADDRESS":     {CategoryValidation, http.StatusBadRequest},
	"WALLET_NOT_FOUND":    {CategoryNotFound, http.StatusNotFound},
	"ITEM_NOT_FOUND":      {CategoryNotFound, http.StatusNotFound},
	"INSUFFICIENT_DATA":   {CategoryNotFound, http.StatusNotFound},
	"RATE_LIMIT_EXCEEDED": {CategoryRateLimit, http.StatusTooManyRequests},
}

func fromServiceError(err *types.ServiceError) *CategorizedError {
	mapping, ok := serviceErrorCodes[err.Code]
	if !ok {
		mapping.category, mapping.status = CategorySystem, http.StatusInternalServerError
	}
	return &CategorizedError{
		Category:   mapping.category,
		StatusCode: mapping.status,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
	}
}

// GetHTTPStatusCode returns the status to answer with for err.
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether repeating the operation may succeed.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryDatabase, CategoryCache:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// IsUserError reports whether err maps to a 4xx response.
func IsUserError(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
