package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the kind of failure reported by a core component
type ErrorCategory string

const (
	ErrorCategoryValidation    ErrorCategory = "VALIDATION"
	ErrorCategoryInvalidSignal ErrorCategory = "INVALID_SIGNAL"
	ErrorCategoryNotFound      ErrorCategory = "NOT_FOUND"
	ErrorCategoryDuplicate     ErrorCategory = "DUPLICATE"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryData          ErrorCategory = "DATA"
)

// CoreError represents a categorized error with context
type CoreError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *CoreError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// Is matches another *CoreError by category so that errors.Is works against
// the sentinel values below.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return t.Component == "" && t.Operation == "" && t.Category == e.Category
}

// NewCoreError creates a new categorized error
func NewCoreError(category ErrorCategory, component, operation, message string) *CoreError {
	return &CoreError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with core error context
func WrapError(err error, category ErrorCategory, component, operation string) *CoreError {
	if err == nil {
		return nil
	}

	return &CoreError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *CoreError) WithContext(key string, value interface{}) *CoreError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Sentinels for errors.Is checks
var (
	ErrValidation    = &CoreError{Category: ErrorCategoryValidation}
	ErrInvalidSignal = &CoreError{Category: ErrorCategoryInvalidSignal}
	ErrNotFound      = &CoreError{Category: ErrorCategoryNotFound}
	ErrDuplicate     = &CoreError{Category: ErrorCategoryDuplicate}
	ErrConfiguration = &CoreError{Category: ErrorCategoryConfiguration}
)

// Common error constructors
func NewValidationError(component, operation, message string) *CoreError {
	return NewCoreError(ErrorCategoryValidation, component, operation, message)
}

func NewInvalidSignalError(component, operation, message string) *CoreError {
	return NewCoreError(ErrorCategoryInvalidSignal, component, operation, message)
}

func NewNotFoundError(component, operation, id string) *CoreError {
	return NewCoreError(ErrorCategoryNotFound, component, operation, fmt.Sprintf("%q not found", id)).
		WithContext("id", id)
}

func NewDuplicateError(component, operation, id string) *CoreError {
	return NewCoreError(ErrorCategoryDuplicate, component, operation, fmt.Sprintf("%q already tracked", id)).
		WithContext("id", id)
}

func NewConfigurationError(component, operation, message string) *CoreError {
	return NewCoreError(ErrorCategoryConfiguration, component, operation, message)
}

func NewDataError(component, operation string, err error) *CoreError {
	return WrapError(err, ErrorCategoryData, component, operation)
}

// CategoryOf returns the category of err, or "" when it is not a CoreError
func CategoryOf(err error) ErrorCategory {
	var ce *CoreError
	if stderrors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND core error
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// IsDuplicate reports whether err is a DUPLICATE core error
func IsDuplicate(err error) bool {
	return stderrors.Is(err, ErrDuplicate)
}

// IsValidation reports whether err is a VALIDATION core error
func IsValidation(err error) bool {
	return stderrors.Is(err, ErrValidation)
}
