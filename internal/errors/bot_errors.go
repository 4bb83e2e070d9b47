package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents different types of errors that can occur
// during a position evaluation
type ErrorCategory string

const (
	// Missing-data errors always resolve to "no decision"
	ErrorCategoryMissingData ErrorCategory = "MISSING_DATA"

	// Signal-provider errors contribute a neutral vote and never abort
	ErrorCategorySignalProvider ErrorCategory = "SIGNAL_PROVIDER"

	// Invariant violations are hard-rejected and logged as anomalies
	ErrorCategoryInvariant ErrorCategory = "INVARIANT"

	// Infrastructure errors (network, exchange, timeout)
	ErrorCategoryNetwork  ErrorCategory = "NETWORK"
	ErrorCategoryExchange ErrorCategory = "EXCHANGE"
	ErrorCategoryTimeout  ErrorCategory = "TIMEOUT"

	// Configuration/parameter errors
	ErrorCategoryParameters ErrorCategory = "PARAMETERS"
	ErrorCategoryConfig     ErrorCategory = "CONFIG"
)

// BotError represents a categorized error with evaluation context
type BotError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *BotError) Unwrap() error {
	return e.Underlying
}

// New creates a new categorized bot error
func New(category ErrorCategory, component, operation, message string) *BotError {
	return &BotError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with bot error context
func Wrap(err error, category ErrorCategory, component, operation string) *BotError {
	if err == nil {
		return nil
	}
	return &BotError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *BotError) WithContext(key string, value interface{}) *BotError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsMissingData reports whether err (or anything it wraps) is a
// missing-data error, which callers must resolve to an implicit hold.
func IsMissingData(err error) bool {
	return hasCategory(err, ErrorCategoryMissingData)
}

// IsInvariant reports whether err is an invariant violation.
func IsInvariant(err error) bool {
	return hasCategory(err, ErrorCategoryInvariant)
}

func hasCategory(err error, category ErrorCategory) bool {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr.Category == category
	}
	return false
}

// Common constructors

func NewMissingData(component, operation, message string) *BotError {
	return New(ErrorCategoryMissingData, component, operation, message)
}

func NewInvariant(component, operation, message string) *BotError {
	return New(ErrorCategoryInvariant, component, operation, message)
}

func NewParameters(component, operation, message string) *BotError {
	return New(ErrorCategoryParameters, component, operation, message)
}

func WrapNetwork(err error, component, operation string) *BotError {
	return Wrap(err, ErrorCategoryNetwork, component, operation)
}

func WrapExchange(err error, component, operation string) *BotError {
	return Wrap(err, ErrorCategoryExchange, component, operation)
}
