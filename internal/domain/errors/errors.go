package errors

import (
	"errors"
	"fmt"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeBusiness   ErrorType = "business"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeProvider   ErrorType = "provider"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeCompliance ErrorType = "compliance"
	ErrorTypeCritical   ErrorType = "critical"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy carrying the details. Predefined errors are
// shared, so the receiver is never mutated.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy carrying the underlying cause.
func (e *AppError) WithCause(cause error) *AppError {
	c := *e
	c.Cause = cause
	return &c
}

// Error constructors
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewBusinessError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeBusiness,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       "CONFLICT",
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

// NewTransientProviderError marks a provider failure that is safe to retry
// (rate limits, timeouts, 5xx responses).
func NewTransientProviderError(provider, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Code:       "PROVIDER_TRANSIENT",
		Message:    fmt.Sprintf("%s: %s", provider, message),
		Retryable:  true,
		StatusCode: 502,
		Details:    map[string]interface{}{"provider": provider},
	}
}

// NewPermanentProviderError marks a provider failure that must not be retried
// (invalid recipient, blocked sender, authentication failures).
func NewPermanentProviderError(provider, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Code:       "PROVIDER_PERMANENT",
		Message:    fmt.Sprintf("%s: %s", provider, message),
		Retryable:  false,
		StatusCode: 502,
		Details:    map[string]interface{}{"provider": provider},
	}
}

func NewComplianceError(violation, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeCompliance,
		Code:       "COMPLIANCE_VIOLATION",
		Message:    message,
		Retryable:  false,
		StatusCode: 403,
		Details:    map[string]interface{}{"violation_type": violation},
	}
}

// NewCriticalError marks a systemic failure that halts the campaign cycle and
// is surfaced to operators rather than retried.
func NewCriticalError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeCritical,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 500,
	}
}

// Predefined common errors
var (
	ErrInvalidInput       = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidChannel     = NewValidationError("INVALID_CHANNEL", "Channel must be email or call")
	ErrLeadNotFound       = NewNotFoundError("lead")
	ErrCampaignNotFound   = NewNotFoundError("campaign")
	ErrApprovalNotFound   = NewNotFoundError("approval item")
	ErrNoProvider         = NewCriticalError("NO_PROVIDER", "No outreach provider configured")
	ErrCampaignRunning    = NewConflictError("Campaign already running for channel")
	ErrStorageUnavailable = NewCriticalError("STORAGE_UNAVAILABLE", "Database of record unavailable")
)

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}
