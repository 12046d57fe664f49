package types

import "fmt"

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeAuthorization ErrorType = "authorization"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeExpiredToken  ErrorType = "expired_or_reused_token"
	ErrorTypeNotification  ErrorType = "notification"
	ErrorTypeInternal      ErrorType = "internal"
)

// LabError represents a structured error in the reporting core
type LabError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *LabError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *LabError) Unwrap() error {
	return e.Cause
}

// IsType reports whether err is a LabError of the given type
func IsType(err error, t ErrorType) bool {
	labErr, ok := err.(*LabError)
	return ok && labErr.Type == t
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *LabError {
	return &LabError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewConflictError creates a new conflict error. Callers recover from
// these by treating the row as already existing.
func NewConflictError(code, message string, cause error) *LabError {
	return &LabError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(code, message string) *LabError {
	return &LabError{
		Type:    ErrorTypeAuthorization,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *LabError {
	return &LabError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewExpiredTokenError creates the client-visible "link no longer
// valid" error used for tampered, expired and replayed tokens alike.
func NewExpiredTokenError() *LabError {
	return &LabError{
		Type:    ErrorTypeExpiredToken,
		Code:    ErrCodeInvalidOrExpired,
		Message: "moderation link is no longer valid",
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *LabError {
	return &LabError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error codes
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeUnknownKind      = "UNKNOWN_KIND"
	ErrCodeEmptyValue       = "EMPTY_VALUE"
	ErrCodeMalformedNumber  = "MALFORMED_NUMBER"
	ErrCodeWindowClosed     = "WINDOW_CLOSED"
	ErrCodeConfigLocked     = "CONFIG_LOCKED"
	ErrCodeNotConfigured    = "NOT_CONFIGURED"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInvalidOrExpired = "invalid_or_expired"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)
