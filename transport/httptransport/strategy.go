package httptransport

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/faberic/fabric/method"
)

// URLStrategy computes the request URL for a method against a base URL.
type URLStrategy func(m method.Method, baseURL string) string

// HTTPMethodStrategy computes the HTTP verb for a method.
type HTTPMethodStrategy func(m method.Method) string

// DefaultURLStrategy builds "/{version?}/{service}/{operation}", per
// spec.md §6.
func DefaultURLStrategy(m method.Method, baseURL string) string {
	base := strings.TrimSuffix(baseURL, "/")
	if m.Version != "" {
		return fmt.Sprintf("%s/%s/%s/%s", base, m.Version, m.Service, m.Operation)
	}
	return fmt.Sprintf("%s/%s/%s", base, m.Service, m.Operation)
}

// DefaultHTTPMethodStrategy maps operation names to verbs per spec.md §6:
// get/list -> GET, create -> POST, update -> PUT, patch -> PATCH,
// delete -> DELETE, anything else -> POST.
func DefaultHTTPMethodStrategy(m method.Method) string {
	switch strings.ToLower(m.Operation) {
	case "get", "list":
		return http.MethodGet
	case "create":
		return http.MethodPost
	case "update":
		return http.MethodPut
	case "patch":
		return http.MethodPatch
	case "delete":
		return http.MethodDelete
	default:
		return http.MethodPost
	}
}
