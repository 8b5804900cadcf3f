package ws

import "github.com/faberic/fabric/method"

// wireMessage is the minimum WebSocket message shape spec.md §6
// requires: a tagged envelope carrying either a request, a response, or
// a heartbeat ping/pong.
type wireMessage struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"` // request|response|ping|pong|error
	Method   *method.Method `json:"method,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Status   *wireStatus    `json:"status,omitempty"`
	Stream   *wireStream    `json:"stream,omitempty"`
	Error    *wireError     `json:"error,omitempty"`
}

type wireStatus struct {
	Success bool `json:"success"`
	Code    any  `json:"code,omitempty"`
}

type wireStream struct {
	Done bool `json:"done"`
}

type wireError struct {
	Code      any    `json:"code,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

const (
	typeRequest  = "request"
	typeResponse = "response"
	typePing     = "ping"
	typePong     = "pong"
	typeError    = "error"
)
