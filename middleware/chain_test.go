package middleware

import (
	"context"
	"testing"

	"github.com/faberic/fabric"
)

func terminalEcho(payload any) Runner {
	return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
		ch := make(chan *fabric.ResponseItem, 1)
		ch <- &fabric.ResponseItem{ID: env.ID, Status: fabric.Ok(0), Payload: payload}
		close(ch)
		return ch, nil
	}
}

func tagging(tag string) Middleware {
	return func(next Runner) Runner {
		return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
			env = env.WithMetadata(env.Metadata.Merge(fabric.Metadata{"trace": tag}))
			out, err := next(ctx, env)
			return out, err
		}
	}
}

func identity(next Runner) Runner { return next }

func collect(t *testing.T, ch <-chan *fabric.ResponseItem) []*fabric.ResponseItem {
	t.Helper()
	var items []*fabric.ResponseItem
	for item := range ch {
		items = append(items, item)
	}
	return items
}

// TestChainOrder verifies the onion model: Chain(A,B,C) runs A's
// before-logic first, reaching the terminal through B then C.
func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Runner) Runner {
			return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
				order = append(order, name+":before")
				out, err := next(ctx, env)
				order = append(order, name+":after")
				return out, err
			}
		}
	}
	chain := Chain(mark("A"), mark("B"), mark("C"))
	runner := chain(terminalEcho("x"))
	items := collect(t, mustRun(t, runner))
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	want := []string{"A:before", "B:before", "C:before", "C:after", "B:after", "A:after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

// TestChainAssociativity checks P1: composing [A,B] then prepending C
// behaves identically to composing [C,A,B].
func TestChainAssociativity(t *testing.T) {
	var leftOrder, rightOrder []string
	markInto := func(sink *[]string, name string) Middleware {
		return func(next Runner) Runner {
			return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
				*sink = append(*sink, name)
				return next(ctx, env)
			}
		}
	}

	ab := Chain(markInto(&leftOrder, "A"), markInto(&leftOrder, "B"))
	left := Chain(markInto(&leftOrder, "C"))(ab(terminalEcho("x")))

	right := Chain(markInto(&rightOrder, "C"), markInto(&rightOrder, "A"), markInto(&rightOrder, "B"))(terminalEcho("x"))

	collect(t, mustRun(t, left))
	collect(t, mustRun(t, right))

	if len(leftOrder) != len(rightOrder) {
		t.Fatalf("leftOrder=%v rightOrder=%v", leftOrder, rightOrder)
	}
	for i := range leftOrder {
		if leftOrder[i] != rightOrder[i] {
			t.Fatalf("leftOrder=%v rightOrder=%v", leftOrder, rightOrder)
		}
	}
}

// TestIdentityMiddleware checks P2: an identity middleware does not
// change the composed behavior.
func TestIdentityMiddleware(t *testing.T) {
	withIdentity := Chain(tagging("x"), identity, tagging("y"))(terminalEcho("payload"))
	withoutIdentity := Chain(tagging("x"), tagging("y"))(terminalEcho("payload"))

	a := collect(t, mustRun(t, withIdentity))
	b := collect(t, mustRun(t, withoutIdentity))
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected single items")
	}
	if a[0].Payload != b[0].Payload {
		t.Fatalf("identity middleware changed behavior: %v vs %v", a[0].Payload, b[0].Payload)
	}
}

func TestValidateContractsDetectsMissingRequirement(t *testing.T) {
	mws := []Declared{
		{Middleware: identity, Provides: nil, Requires: []string{"auth"}},
	}
	err := ValidateContracts(nil, mws)
	if err == nil {
		t.Fatal("expected ContractError for unmet requirement")
	}
}

func TestValidateContractsSatisfiedByUpstream(t *testing.T) {
	mws := []Declared{
		{Middleware: identity, Provides: []string{"auth"}},
		{Middleware: identity, Requires: []string{"auth"}},
	}
	if err := ValidateContracts(nil, mws); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func mustRun(t *testing.T, r Runner) <-chan *fabric.ResponseItem {
	t.Helper()
	ch, err := r(context.Background(), &fabric.Envelope{ID: "1", Metadata: fabric.Metadata{}})
	if err != nil {
		t.Fatalf("runner returned error: %v", err)
	}
	return ch
}
