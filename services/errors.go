package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeAllowance    ErrorType = "allowance"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypePrecondition ErrorType = "precondition"
	ErrorTypePaused       ErrorType = "paused"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeExternal     ErrorType = "external"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Validation errors: caller input, always recoverable by the caller
	ErrInvalidTarget   = NewDomainError(ErrorTypeValidation, "target must not be the null identity", nil)
	ErrInvalidCoverage = NewDomainError(ErrorTypeValidation, "coverage must be greater than zero", nil)
	ErrInvalidDeadline = NewDomainError(ErrorTypeValidation, "computed deadline is not in the future", nil)

	// ErrInsufficientAllowance means the caller has not pre-authorized the
	// custody account to debit the full escrow; re-authorize and retry.
	ErrInsufficientAllowance = NewDomainError(ErrorTypeAllowance, "ledger allowance below required escrow", nil)

	// ErrPolicyNotFound is returned both for a genuinely missing identifier
	// and for an ownership mismatch. The conflation is deliberate: callers
	// must not be able to probe for the existence of other users' policies.
	// Do not split this into two distinct errors.
	ErrPolicyNotFound = NewDomainError(ErrorTypeNotFound, "policy not found", nil)

	// ErrPolicyAlreadyResolved guards the terminal state; never retried.
	ErrPolicyAlreadyResolved = NewDomainError(ErrorTypeConflict, "policy already resolved", nil)

	// ErrDeadlineNotPassed covers both temporal thresholds: ordinary
	// verification (now > deadline) and emergency recovery
	// (now > deadline + grace period).
	ErrDeadlineNotPassed = NewDomainError(ErrorTypePrecondition, "deadline has not passed", nil)

	// ErrEnginePaused gates creation and verification while paused.
	ErrEnginePaused = NewDomainError(ErrorTypePaused, "engine is paused", nil)

	// ErrAdminOnly guards the administrative surface.
	ErrAdminOnly = NewDomainError(ErrorTypeForbidden, "restricted to the administrator", nil)

	// ErrInvalidAdmin rejects transferring ownership to the null identity.
	ErrInvalidAdmin = NewDomainError(ErrorTypeValidation, "new administrator must not be the null identity", nil)

	// External collaborator errors
	ErrLedgerUnavailable = NewDomainError(ErrorTypeExternal, "ledger unavailable", nil)
	ErrTransferFailed    = NewDomainError(ErrorTypeExternal, "ledger transfer failed", nil)

	// Internal errors
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError     = NewDomainError(ErrorTypeInternal, "database error", nil)
	ErrTransactionFailed = NewDomainError(ErrorTypeInternal, "transaction failed", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return hasType(err, ErrorTypeUnauthorized)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return hasType(err, ErrorTypeForbidden)
}

// IsAllowanceError checks if an error is an allowance error
func IsAllowanceError(err error) bool {
	return hasType(err, ErrorTypeAllowance)
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return hasType(err, ErrorTypeConflict)
}

// IsPreconditionError checks if an error is a temporal precondition error
func IsPreconditionError(err error) bool {
	return hasType(err, ErrorTypePrecondition)
}

// IsPausedError checks if an error is a paused-gate error
func IsPausedError(err error) bool {
	return hasType(err, ErrorTypePaused)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return hasType(err, ErrorTypeInternal)
}

// IsExternalError checks if an error is an external collaborator error
func IsExternalError(err error) bool {
	return hasType(err, ErrorTypeExternal)
}

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an external collaborator error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}
