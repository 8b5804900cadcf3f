// Package fabric defines the envelope/status/metadata model that every
// transport, middleware, and handler in the RPC fabric exchanges.
//
// Envelopes and ResponseItems are immutable after creation: a middleware
// that needs to change metadata builds a shallow copy and passes that
// copy to next, it never mutates the value it was handed.
package fabric

// Stable error code identifiers. Transports may also surface their own
// numeric codes (e.g. an HTTP status) as Status.Code instead of one of
// these strings — both are valid.
const (
	CodeNotFound               = "NOT_FOUND"
	CodeValidationError        = "VALIDATION_ERROR"
	CodeOutputValidationError  = "OUTPUT_VALIDATION_ERROR"
	CodeTimeout                = "TIMEOUT"
	CodeAborted                = "ABORTED"
	CodeCircuitOpen            = "CIRCUIT_OPEN"
	CodeRateLimit              = "RATE_LIMIT"
	CodeHandlerError           = "HANDLER_ERROR"
	CodeExecutionError         = "EXECUTION_ERROR"
	CodeAlreadyRegistered      = "ALREADY_REGISTERED"
)

// Status is the tagged-union result of a single response item: either a
// success carrying a protocol code, or an error carrying a stable or
// transport-native code, a message, and whether retrying is safe.
type Status struct {
	Success   bool
	Code      any // int (transport-native, e.g. HTTP 404) or one of the Code* strings
	Message   string
	Retryable bool
}

// Ok builds a success status with the given protocol code (0 if unused).
func Ok(code any) Status {
	return Status{Success: true, Code: code}
}

// Err builds an error status.
func Err(code any, message string, retryable bool) Status {
	return Status{Success: false, Code: code, Message: message, Retryable: retryable}
}
