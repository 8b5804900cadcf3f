package client

import (
	"context"

	"github.com/faberic/fabric/method"
	"github.com/faberic/fabric/procedure"
)

// CallPath implements procedure.ProcedureCaller, letting a procedure
// handler recursively call a sibling procedure through this same
// client (schema validation and middleware included) instead of
// reaching into the registry directly. A path's first segment maps to
// the method's service, its last segment to the operation — the same
// convention server.Register uses to build an exact-match Matcher for
// a registered procedure's path.
func (c *Client) CallPath(ctx context.Context, path procedure.Path, input any) (any, error) {
	m := method.Method{Service: serviceOf(path), Operation: operationOf(path)}
	return c.Call(ctx, m, input)
}

func serviceOf(p procedure.Path) string {
	if len(p) > 0 {
		return p[0]
	}
	return ""
}

func operationOf(p procedure.Path) string {
	if len(p) > 1 {
		return p[len(p)-1]
	}
	return ""
}
