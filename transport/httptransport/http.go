// Package httptransport implements the request/response Transport over
// plain HTTP, using the injected URL/method strategies from spec.md §6.
// Bodies are JSON except for GET. For GET the payload is not sent at
// all: Send builds no body and adds no query parameters to the URL.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/faberic/fabric"
)

// Transport sends envelopes as HTTP requests against BaseURL, using the
// given strategies to compute the path and verb.
type Transport struct {
	BaseURL    string
	Client     *http.Client
	URL        URLStrategy
	HTTPMethod HTTPMethodStrategy

	mu     sync.Mutex
	closed bool
}

// New builds an HTTP transport with the default strategies and a
// client with no timeout override (callers control timeouts via ctx,
// matching the rest of the fabric's cancellation model).
func New(baseURL string) *Transport {
	return &Transport{
		BaseURL:    baseURL,
		Client:     &http.Client{},
		URL:        DefaultURLStrategy,
		HTTPMethod: DefaultHTTPMethodStrategy,
	}
}

func (t *Transport) Name() string { return "http" }

func (t *Transport) Send(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
	ch := make(chan *fabric.ResponseItem, 1)

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		ch <- errItem(env.ID, fabric.CodeAborted, "transport closed", false)
		close(ch)
		return ch, nil
	}

	verb := t.HTTPMethod(env.Method)
	url := t.URL(env.Method, t.BaseURL)

	var body io.Reader
	if verb != http.MethodGet && env.Payload != nil {
		buf, err := json.Marshal(env.Payload)
		if err != nil {
			ch <- errItem(env.ID, fabric.CodeExecutionError, fmt.Sprintf("encode payload: %v", err), false)
			close(ch)
			return ch, nil
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, verb, url, body)
	if err != nil {
		ch <- errItem(env.ID, fabric.CodeExecutionError, fmt.Sprintf("build request: %v", err), false)
		close(ch)
		return ch, nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range env.Metadata {
		if s, ok := v.(string); ok {
			req.Header.Set(k, s)
		}
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// the caller cancelled: ABORTED, not retryable
			ch <- errItem(env.ID, fabric.CodeAborted, err.Error(), false)
		} else {
			// a transient network error is retryable
			ch <- errItem(env.ID, fabric.CodeExecutionError, err.Error(), true)
		}
		close(ch)
		return ch, nil
	}
	defer resp.Body.Close()

	payload, err := decodeBody(resp)
	if err != nil {
		ch <- errItem(env.ID, fabric.CodeExecutionError, fmt.Sprintf("decode response: %v", err), false)
		close(ch)
		return ch, nil
	}

	if resp.StatusCode >= 400 {
		ch <- &fabric.ResponseItem{
			ID:      env.ID,
			Status:  fabric.Err(resp.StatusCode, httpStatusMessage(resp), retryableHTTPStatus(resp.StatusCode)),
			Payload: payload,
		}
		close(ch)
		return ch, nil
	}

	ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Ok(resp.StatusCode), Payload: payload}
	close(ch)
	return ch, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.Client.CloseIdleConnections()
	return nil
}

func decodeBody(resp *http.Response) (any, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func httpStatusMessage(resp *http.Response) string {
	return resp.Status
}

// retryableHTTPStatus maps HTTP error codes to the protocol-independent
// Retryable flag spec.md §4.2 requires: 408/429/5xx are retryable,
// other 4xx are not.
func retryableHTTPStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500
}

func errItem(id string, code any, message string, retryable bool) *fabric.ResponseItem {
	return &fabric.ResponseItem{ID: id, Status: fabric.Err(code, message, retryable)}
}
