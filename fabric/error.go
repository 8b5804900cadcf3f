package fabric

import "fmt"

// CallError is the typed exception a Client surfaces when ThrowOnError
// is set and a call's first response item carries an error status.
type CallError struct {
	Code       any
	Message    string
	Retryable  bool
	ResponseID string
	Status     Status
}

func (e *CallError) Error() string {
	return fmt.Sprintf("fabric: %v: %s", e.Code, e.Message)
}

// NewCallError builds a CallError from a terminal error ResponseItem.
func NewCallError(item *ResponseItem) *CallError {
	return &CallError{
		Code:       item.Status.Code,
		Message:    item.Status.Message,
		Retryable:  item.Status.Retryable,
		ResponseID: item.ID,
		Status:     item.Status,
	}
}
