package errors

import (
	"errors"
	"fmt"
)

// Error codes used across the engine.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeTransientStore       = "TRANSIENT_STORE_ERROR"
	CodePermanentStore       = "PERMANENT_STORE_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeSchedulingImpossible = "SCHEDULING_IMPOSSIBLE"
	CodeDeliveryFailed       = "DELIVERY_FAILED"
)

// AppError represents an application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Err: err}
}

// NewTransientStoreError creates a retryable store error
func NewTransientStoreError(message string, err error) *AppError {
	return &AppError{Code: CodeTransientStore, Message: message, Err: err}
}

// NewPermanentStoreError creates a non-retryable store error
func NewPermanentStoreError(message string, err error) *AppError {
	return &AppError{Code: CodePermanentStore, Message: message, Err: err}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, Err: err}
}

// NewSchedulingImpossibleError marks a schedule that yields no future instant
func NewSchedulingImpossibleError(message string, err error) *AppError {
	return &AppError{Code: CodeSchedulingImpossible, Message: message, Err: err}
}

// NewDeliveryError creates a gateway delivery error
func NewDeliveryError(message string, err error) *AppError {
	return &AppError{Code: CodeDeliveryFailed, Message: message, Err: err}
}

// HasCode reports whether err is an AppError with the given code
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsNotFound reports whether err represents a missing entity
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return HasCode(err, CodeValidation)
}

// IsTransientStore reports whether err was classified as retryable
func IsTransientStore(err error) bool {
	return HasCode(err, CodeTransientStore)
}

// IsSchedulingImpossible reports whether err marks an unschedulable entity
func IsSchedulingImpossible(err error) bool {
	return HasCode(err, CodeSchedulingImpossible)
}
