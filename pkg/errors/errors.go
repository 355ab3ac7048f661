package errors

import "fmt"

// Error codes
const (
	CodeNotFound   = "NOT_FOUND"
	CodeFetch      = "FETCH_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeCache      = "CACHE_ERROR"
	CodeState      = "STATE_CONFLICT"
)

type RestoreError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *RestoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *RestoreError) Unwrap() error {
	return e.Cause
}

// NotFoundError marks an expected absence: the upstream has no record for the
// requested key. Callers treat it as "nothing to restore", never as a failure.
type NotFoundError struct {
	*RestoreError
	Kind string
	Key  string
}

func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{
		RestoreError: &RestoreError{
			Message:    fmt.Sprintf("%s not found", kind),
			Code:       CodeNotFound,
			StatusCode: 404,
			Context: map[string]any{
				"kind": kind,
				"key":  key,
			},
		},
		Kind: kind,
		Key:  key,
	}
}

// FetchError covers transport, credential and parse failures against an
// upstream source. It carries which source and operation failed so the
// fallback chain can log precisely before moving on.
type FetchError struct {
	*RestoreError
	Source    string
	Operation string
}

func NewFetchError(message, source, operation string, statusCode int, cause error) *FetchError {
	return &FetchError{
		RestoreError: &RestoreError{
			Message:    message,
			Code:       CodeFetch,
			StatusCode: statusCode,
			Context: map[string]any{
				"source":    source,
				"operation": operation,
			},
			Cause: cause,
		},
		Source:    source,
		Operation: operation,
	}
}

type ValidationError struct {
	*RestoreError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		RestoreError: &RestoreError{
			Message:    message,
			Code:       CodeValidation,
			StatusCode: 400,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type CacheError struct {
	*RestoreError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		RestoreError: &RestoreError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

// StateError marks a lifecycle conflict: an operation arrived for a
// component that is past the state where it could honor it, like a
// snapshot for a session that already stopped.
type StateError struct {
	*RestoreError
	Component string
}

func NewStateError(message, component string) *StateError {
	return &StateError{
		RestoreError: &RestoreError{
			Message:    message,
			Code:       CodeState,
			StatusCode: 409,
			Context: map[string]any{
				"component": component,
			},
		},
		Component: component,
	}
}
