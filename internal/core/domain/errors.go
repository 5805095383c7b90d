package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a persistence error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "SK-TYPE-4000")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Registry Errors (TYPE / FIELD)
// ============================================================================

var (
	// ErrInvalidType indicates the type is unknown or not a durable object type.
	ErrInvalidType = NewDomainError("SK-TYPE-4000", "not a durable object type")

	// ErrUnknownField indicates the named field does not exist on the type.
	ErrUnknownField = NewDomainError("SK-FIELD-4040", "unknown field")
)

// ============================================================================
// Snapshot Errors (SNAP / CODEC)
// ============================================================================

var (
	// ErrCapture indicates a field read failed while capturing live objects.
	ErrCapture = NewDomainError("SK-SNAP-5000", "capture failed")

	// ErrDecode indicates malformed or unresolvable snapshot data.
	ErrDecode = NewDomainError("SK-CODEC-4000", "decode failed")

	// ErrUnsupportedValue indicates a value with no wire representation.
	ErrUnsupportedValue = NewDomainError("SK-CODEC-4220", "unsupported value")
)

// ============================================================================
// Save Errors (SAVE)
// ============================================================================

var (
	// ErrNotFound indicates no save exists at the requested location.
	ErrNotFound = NewDomainError("SK-SAVE-4040", "save not found")

	// ErrNoPriorSave indicates LoadLatest was called before any successful save.
	ErrNoPriorSave = NewDomainError("SK-SAVE-4041", "no prior save in this session")

	// ErrStorage indicates the storage backend failed.
	ErrStorage = NewDomainError("SK-SAVE-5001", "storage error")
)

// ============================================================================
// Configuration Errors (CONF)
// ============================================================================

var (
	// ErrInvalidConfig indicates a configuration failed validation.
	ErrInvalidConfig = NewDomainError("SK-CONF-4000", "invalid configuration")
)
