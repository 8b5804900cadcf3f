package server

import (
	"context"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/procedure"
)

// wrapProcedure turns a Procedure into a Handler that validates input,
// invokes the procedure with a CallContext supporting recursive
// in-registry calls, and validates output — spec.md §4.8's "procedure
// handlers" paragraph.
func (s *Server) wrapProcedure(proc *procedure.Procedure) Handler {
	return func(ctx context.Context, env *fabric.Envelope) (any, error) {
		return s.invokeProcedure(ctx, proc, env.Payload, env.Metadata)
	}
}

func (s *Server) invokeProcedure(ctx context.Context, proc *procedure.Procedure, payload any, md fabric.Metadata) (any, error) {
	if !proc.Executable() {
		return nil, errNotFound("procedure " + proc.Path.Key() + " has no handler")
	}

	input := payload
	if proc.InputSchema != nil {
		parsed, err := proc.InputSchema.Parse(payload)
		if err != nil {
			return nil, errValidation(err.Error())
		}
		input = parsed
	}

	pctx := &procedure.CallContext{
		Metadata:   md,
		Path:       proc.Path,
		Repository: s.registry,
		Client:     &registryCaller{srv: s},
	}

	out, err := proc.Handler(ctx, input, pctx)
	if err != nil {
		return nil, err
	}

	if proc.OutputSchema != nil {
		parsed, err := proc.OutputSchema.Parse(out)
		if err != nil {
			return nil, errOutputValidation(err.Error())
		}
		out = parsed
	}

	return out, nil
}

// registryCaller implements procedure.ProcedureCaller by looking
// methods up directly in the server's own registry and invoking them
// in-process, without going through a transport — the same path an
// external caller reaches via Register, minus the network hop.
type registryCaller struct {
	srv *Server
}

func (rc *registryCaller) CallPath(ctx context.Context, path procedure.Path, input any) (any, error) {
	proc, ok := rc.srv.registry.Get(path)
	if !ok {
		return nil, errNotFound("no procedure at " + path.Key())
	}
	return rc.srv.invokeProcedure(ctx, proc, input, fabric.Metadata{})
}
