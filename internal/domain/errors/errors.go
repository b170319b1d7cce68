package errors

import (
	"errors"
	"fmt"
)

var (
	// Order errors
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrOrderAlreadyCancelled  = errors.New("order already cancelled")
	ErrEmptyOrder             = errors.New("order has no items")

	// Saga errors
	ErrSagaNotFound      = errors.New("saga not found")
	ErrSagaAlreadyActive = errors.New("saga already active for order")
	ErrSagaTerminal      = errors.New("saga already in terminal state")
	ErrDuplicateEvent    = errors.New("event already processed")
	ErrProtocolViolation = errors.New("event not accepted in current saga state")

	// Bus errors
	ErrBusUnavailable = errors.New("event bus unavailable")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
