package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/method"
	"github.com/faberic/fabric/transport"
	"github.com/google/uuid"
)

// Listener is the server-side counterpart of Transport: a plain
// net/http.Server that parses "/{version?}/{service}/{operation}" path
// segments (the inverse of DefaultURLStrategy) into a method.Method,
// builds an Envelope, and hands it to the attached Server's HandleFunc.
type Listener struct {
	Addr   string
	Server *http.Server
}

// NewListener builds an HTTP Listener bound to addr.
func NewListener(addr string) *Listener {
	return &Listener{Addr: addr}
}

func (l *Listener) Name() string { return "http" }

// Listen blocks serving HTTP until ctx is cancelled or Close is called,
// per the transport.Listener contract.
func (l *Listener) Listen(ctx context.Context, handle transport.HandleFunc) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		l.serveHTTP(w, r, handle)
	})

	l.Server = &http.Server{Addr: l.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- l.Server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return l.Server.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (l *Listener) Close() error {
	if l.Server == nil {
		return nil
	}
	return l.Server.Close()
}

func (l *Listener) serveHTTP(w http.ResponseWriter, r *http.Request, handle transport.HandleFunc) {
	m, ok := parsePath(r.URL.Path)
	if !ok {
		http.Error(w, "fabric: malformed path, expected /[version/]service/operation", http.StatusBadRequest)
		return
	}

	var payload any
	if r.Method != http.MethodGet {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "fabric: read body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &payload); err != nil {
				http.Error(w, "fabric: decode body: "+err.Error(), http.StatusBadRequest)
				return
			}
		}
	} else {
		payload = queryToPayload(r.URL.Query())
	}

	md := fabric.Metadata{}
	for k := range r.Header {
		md[k] = r.Header.Get(k)
	}

	env := &fabric.Envelope{
		ID:       uuid.NewString(),
		Method:   m,
		Payload:  payload,
		Metadata: md,
		Cancel:   r.Context(),
	}

	item := handle(r.Context(), env)

	// Mirrors Transport.Send's decode contract exactly: the body IS the
	// payload (no response envelope), success/failure and retryability
	// are carried by the HTTP status code alone, matching
	// retryableHTTPStatus's inverse.
	status := http.StatusOK
	if !item.Status.Success {
		if code, ok := item.Status.Code.(int); ok {
			status = code
		} else {
			status = statusFor(item.Status.Code)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if item.Status.Message != "" {
		w.Header().Set("X-Fabric-Status-Message", item.Status.Message)
	}
	w.WriteHeader(status)
	if item.Payload != nil {
		_ = json.NewEncoder(w).Encode(item.Payload)
	}
}

// parsePath inverts DefaultURLStrategy: "/service/operation" or
// "/version/service/operation".
func parsePath(p string) (method.Method, bool) {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	switch len(segs) {
	case 2:
		return method.Method{Service: segs[0], Operation: segs[1]}, true
	case 3:
		return method.Method{Version: segs[0], Service: segs[1], Operation: segs[2]}, true
	default:
		return method.Method{}, false
	}
}

func queryToPayload(q map[string][]string) any {
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]any, len(q))
	for k, v := range q {
		if len(v) == 1 {
			out[k] = v[0]
		} else {
			out[k] = v
		}
	}
	return out
}

// statusFor maps a stable error code to a representative HTTP status
// for the wire response, mirroring retryableHTTPStatus's inverse.
func statusFor(code any) int {
	switch code {
	case fabric.CodeNotFound:
		return http.StatusNotFound
	case fabric.CodeValidationError, fabric.CodeOutputValidationError:
		return http.StatusBadRequest
	case fabric.CodeTimeout:
		return http.StatusRequestTimeout
	case fabric.CodeRateLimit:
		return http.StatusTooManyRequests
	case fabric.CodeCircuitOpen:
		return http.StatusServiceUnavailable
	case fabric.CodeAborted:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
