package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/method"
	"github.com/faberic/fabric/middleware"
	"github.com/faberic/fabric/procedure"
)

func TestHandleDispatchesToMatchedHandler(t *testing.T) {
	s := New()
	s.Handle(Matcher{Service: Literal("users"), Operation: Literal("get")}, func(ctx context.Context, env *fabric.Envelope) (any, error) {
		return map[string]any{"id": "1", "name": "ada"}, nil
	})

	env := &fabric.Envelope{ID: "r1", Method: method.Method{Service: "users", Operation: "get"}}
	item := s.ServeEnvelope(context.Background(), env)

	require.True(t, item.Status.Success)
	assert.Equal(t, map[string]any{"id": "1", "name": "ada"}, item.Payload)
}

func TestHandleReturnsNotFoundOnMiss(t *testing.T) {
	s := New()
	env := &fabric.Envelope{ID: "r1", Method: method.Method{Service: "users", Operation: "get"}}
	item := s.ServeEnvelope(context.Background(), env)

	require.False(t, item.Status.Success)
	assert.Equal(t, fabric.CodeNotFound, item.Status.Code)
}

func TestHandleRecoversPanicIntoHandlerError(t *testing.T) {
	s := New()
	s.Handle(Matcher{Service: Literal("x"), Operation: Literal("y")}, func(ctx context.Context, env *fabric.Envelope) (any, error) {
		panic("boom")
	})
	env := &fabric.Envelope{ID: "r1", Method: method.Method{Service: "x", Operation: "y"}}
	item := s.ServeEnvelope(context.Background(), env)

	require.False(t, item.Status.Success)
	assert.Equal(t, fabric.CodeHandlerError, item.Status.Code)
}

func TestFirstMatchWinsInRegistrationOrder(t *testing.T) {
	s := New()
	s.Handle(Matcher{Service: Literal("users"), Operation: Regex(".*")}, func(ctx context.Context, env *fabric.Envelope) (any, error) {
		return "specific", nil
	})
	s.Handle(Matcher{Service: Regex(".*"), Operation: Regex(".*")}, func(ctx context.Context, env *fabric.Envelope) (any, error) {
		return "general", nil
	})

	env := &fabric.Envelope{ID: "r1", Method: method.Method{Service: "users", Operation: "get"}}
	item := s.ServeEnvelope(context.Background(), env)
	assert.Equal(t, "specific", item.Payload)
}

func TestMiddlewareChainWrapsHandler(t *testing.T) {
	var order []string
	mw := middleware.Declared{
		Middleware: func(next middleware.Runner) middleware.Runner {
			return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
				order = append(order, "before")
				ch, err := next(ctx, env)
				order = append(order, "after")
				return ch, err
			}
		},
	}
	s := New(WithMiddleware(mw))
	s.Handle(Matcher{Service: Literal("x"), Operation: Literal("y")}, func(ctx context.Context, env *fabric.Envelope) (any, error) {
		order = append(order, "handler")
		return nil, nil
	})

	env := &fabric.Envelope{ID: "r1", Method: method.Method{Service: "x", Operation: "y"}}
	s.ServeEnvelope(context.Background(), env)

	assert.Equal(t, []string{"before", "handler", "after"}, order)
}

func TestRegisterProcedureValidatesInputAndOutput(t *testing.T) {
	reg := procedure.New()
	s := New(WithRegistry(reg))

	proc := &procedure.Procedure{
		Path:         procedure.Path{"users", "get"},
		InputSchema:  procedure.NoopValidator{},
		OutputSchema: procedure.NoopValidator{},
		Handler: func(ctx context.Context, input any, pctx *procedure.CallContext) (any, error) {
			return map[string]any{"id": "1"}, nil
		},
	}
	require.NoError(t, s.Register(proc))

	env := &fabric.Envelope{ID: "r1", Method: method.Method{Service: "users", Operation: "get"}, Payload: map[string]any{"id": "1"}}
	item := s.ServeEnvelope(context.Background(), env)

	require.True(t, item.Status.Success)
	assert.Equal(t, map[string]any{"id": "1"}, item.Payload)
}

func TestRegisterProcedureRecursiveCallPath(t *testing.T) {
	reg := procedure.New()
	s := New(WithRegistry(reg))

	inner := &procedure.Procedure{
		Path:        procedure.Path{"users", "get"},
		InputSchema: procedure.NoopValidator{},
		Handler: func(ctx context.Context, input any, pctx *procedure.CallContext) (any, error) {
			return "inner-result", nil
		},
	}
	require.NoError(t, s.Register(inner))

	outer := &procedure.Procedure{
		Path:        procedure.Path{"orders", "get"},
		InputSchema: procedure.NoopValidator{},
		Handler: func(ctx context.Context, input any, pctx *procedure.CallContext) (any, error) {
			return pctx.Client.CallPath(ctx, procedure.Path{"users", "get"}, nil)
		},
	}
	require.NoError(t, s.Register(outer))

	env := &fabric.Envelope{ID: "r1", Method: method.Method{Service: "orders", Operation: "get"}}
	item := s.ServeEnvelope(context.Background(), env)

	require.True(t, item.Status.Success)
	assert.Equal(t, "inner-result", item.Payload)
}
