// Package errors defines the error taxonomy shared by the reconciliation
// service, its HTTP layer and its CLI.
//
// Every recoverable failure is a *ReconcilerError carrying a category (which
// decides the HTTP status and the CLI exit code), a stable machine-readable
// code, a human message and an optional suggestion. Storage connectivity
// failures are the only category treated as fatal for the request.
package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryInvalidState  ErrorCategory = "invalid_state"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryStorage       ErrorCategory = "storage"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Validation errors
	CodeInvalidID     ErrorCode = "invalid_id"
	CodeInvalidBody   ErrorCode = "invalid_body"
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"
	CodeOutOfRange    ErrorCode = "out_of_range"
	CodeScopeMismatch ErrorCode = "scope_mismatch"
	CodeUnknownAction ErrorCode = "unknown_action"

	// Not found errors
	CodeStatementNotFound ErrorCode = "statement_not_found"
	CodeItemNotFound      ErrorCode = "item_not_found"
	CodeMovementNotFound  ErrorCode = "movement_not_found"

	// State errors
	CodeIllegalTransition ErrorCode = "illegal_transition"
	CodeAlreadyClosed     ErrorCode = "already_closed"

	// Conflict errors
	CodeMovementLinked  ErrorCode = "movement_already_linked"
	CodeConcurrentWrite ErrorCode = "concurrent_write"
	CodeRetryExhausted  ErrorCode = "retry_exhausted"

	// Configuration errors
	CodeInvalidTolerance ErrorCode = "invalid_tolerance"
	CodeInvalidConfig    ErrorCode = "invalid_config"
	CodeMissingConfig    ErrorCode = "missing_config"

	// Storage errors
	CodeConnectionFailed ErrorCode = "connection_failed"
	CodeQueryFailed      ErrorCode = "query_failed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the response status for the error category.
func (e *ReconcilerError) HTTPStatus() int {
	switch e.Category {
	case CategoryValidation, CategoryConfiguration:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryInvalidState:
		return http.StatusUnprocessableEntity
	case CategoryConflict:
		return http.StatusConflict
	case CategoryStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryValidation, CategoryNotFound:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryInvalidState, CategoryConflict:
		return 5
	case CategoryStorage:
		return 6
	default:
		return 1
	}
}

// IsFatal reports whether the error should be logged for operator follow-up.
func (e *ReconcilerError) IsFatal() bool {
	return e.Category == CategoryStorage || e.Category == CategoryInternal
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconcilerError
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message string, err error) *ReconcilerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// ValidationError creates an error for a malformed id, query parameter or body field.
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidID:
		message = fmt.Sprintf("invalid identifier in '%s': %v", field, value)
		suggestion = "identifiers are positive integers"
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "ensure amounts are valid decimal numbers (e.g., '12.34')"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use date format YYYY-MM-DD"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	case CodeScopeMismatch:
		message = fmt.Sprintf("'%s' does not belong to the same bank account and company: %v", field, value)
		suggestion = "link items only to movements of the statement's own bank account"
	case CodeUnknownAction:
		message = fmt.Sprintf("unknown action in '%s': %v", field, value)
	case CodeInvalidBody:
		message = fmt.Sprintf("malformed request body: %v", value)
		suggestion = "send a valid JSON document"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	result := build(CategoryValidation, code, message, err)
	if suggestion != "" {
		result.WithSuggestion(suggestion)
	}
	return result.
		WithContext("field", field).
		WithContext("value", value)
}

// NotFoundError creates an error for a resource that is absent or outside
// the caller's tenant scope. Both cases are reported identically.
func NotFoundError(code ErrorCode, resource string, id int64) *ReconcilerError {
	return New(CategoryNotFound, code, fmt.Sprintf("%s %d not found", resource, id)).
		WithContext("resource", resource).
		WithContext("id", id)
}

// InvalidStateError creates an error for an operation that is illegal for
// the statement's current estado.
func InvalidStateError(operation string, state string) *ReconcilerError {
	return New(CategoryInvalidState, CodeIllegalTransition,
		fmt.Sprintf("operation %s is not allowed while statement is %s", operation, state)).
		WithSuggestion("reopen the statement before modifying it").
		WithContext("operation", operation).
		WithContext("estado", state)
}

// AlreadyClosedError is returned by Close on a statement that is already closed.
func AlreadyClosedError(statementID int64, state string) *ReconcilerError {
	return New(CategoryInvalidState, CodeAlreadyClosed,
		fmt.Sprintf("statement %d is already closed (%s)", statementID, state)).
		WithContext("statement_id", statementID).
		WithContext("estado", state)
}

// ConflictError creates an error for a lost race on the one-link-per-movement
// constraint or on a concurrently modified row.
func ConflictError(code ErrorCode, resource string, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeMovementLinked:
		message = fmt.Sprintf("%s is already linked to another statement item", resource)
		suggestion = "re-read the unmatched movements and pick another candidate"
	case CodeRetryExhausted:
		message = fmt.Sprintf("gave up on %s after repeated conflicts", resource)
		suggestion = "retry the request once concurrent edits have settled"
	default:
		message = fmt.Sprintf("concurrent modification of %s", resource)
		suggestion = "re-read the resource and retry"
	}

	return build(CategoryConflict, code, message, err).
		WithSuggestion(suggestion).
		WithContext("resource", resource)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidTolerance:
		message = fmt.Sprintf("invalid tolerance '%s': %v", setting, value)
		suggestion = "tolerances must be zero or positive"
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// StorageError wraps a failure of the underlying store.
func StorageError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message string

	switch code {
	case CodeConnectionFailed:
		message = fmt.Sprintf("storage unavailable during %s", operation)
	default:
		message = fmt.Sprintf("storage error during %s", operation)
	}

	return build(CategoryStorage, code, message, err).
		WithSuggestion("retry the request; the operation was rolled back").
		WithContext("operation", operation)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ReconcilerError {
	return build(CategoryInternal, code, fmt.Sprintf("unexpected error during %s", operation), err).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	Errors     []*ReconcilerError    `json:"errors"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*ReconcilerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		Errors:     errs,
	}
	for _, err := range errs {
		summary.ByCategory[err.Category]++
	}
	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// AsReconcilerError extracts a ReconcilerError from an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// IsCategory reports whether err carries a ReconcilerError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	re, ok := AsReconcilerError(err)
	return ok && re.Category == category
}

// IsCode reports whether err carries a ReconcilerError with the given code.
func IsCode(err error, code ErrorCode) bool {
	re, ok := AsReconcilerError(err)
	return ok && re.Code == code
}

// WrapIfNeeded wraps an error if it's not already a ReconcilerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}
