package server

import "github.com/faberic/fabric"

// statusError lets a handler-path failure carry a specific response
// code/retryable flag through to the base runner instead of always
// falling back to HANDLER_ERROR, per spec.md §7's error taxonomy.
type statusError struct {
	code      any
	message   string
	retryable bool
}

func (e *statusError) Error() string { return e.message }

func errNotFound(message string) error {
	return &statusError{code: fabric.CodeNotFound, message: message}
}

func errValidation(message string) error {
	return &statusError{code: fabric.CodeValidationError, message: message}
}

func errOutputValidation(message string) error {
	return &statusError{code: fabric.CodeOutputValidationError, message: message}
}

// toStatus converts a handler-path error into a Status, defaulting to
// HANDLER_ERROR (non-retryable) for plain errors that don't name a more
// specific taxonomy entry.
func toStatus(err error) fabric.Status {
	if se, ok := err.(*statusError); ok {
		return fabric.Err(se.code, se.message, se.retryable)
	}
	return fabric.Err(fabric.CodeHandlerError, err.Error(), false)
}
