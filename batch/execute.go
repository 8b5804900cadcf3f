// Package batch implements the fan-out engine described in spec.md §4.7:
// three strategies (all / race / stream) over a set of resolved route
// calls, producing a result isomorphic to the request tree.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/faberic/fabric/router"
	"github.com/faberic/fabric/routetree"
	"golang.org/x/sync/errgroup"
)

// Strategy selects the batch executor's fan-out behavior.
type Strategy int

const (
	// All launches every resolved route concurrently and waits for
	// every result; failures do not cancel peers.
	All Strategy = iota
	// Race launches every resolved route concurrently; the first
	// result to settle (success or failure) wins, peers are left to
	// finish but their outcomes are discarded.
	Race
	// Stream yields results in completion order with bounded in-flight
	// concurrency.
	Stream
)

// Options configures a batch run.
type Options struct {
	Strategy Strategy
	// ContinueOnError records caller intent only: the executor does not
	// read it. All collects every result either way, and Success is
	// always the conjunction of individual results.
	ContinueOnError bool
	// StreamConcurrency bounds in-flight calls for Stream. Zero means
	// "one permit per route" (no bound beyond the route count).
	StreamConcurrency int
}

// CallFunc performs one resolved call and returns its payload or error.
type CallFunc func(ctx context.Context, call router.ResolvedCall) (any, error)

// Item is one call's outcome, produced in whatever order the chosen
// Strategy delivers it.
type Item struct {
	Path     []string
	Result   routetree.CallResult
	Duration time.Duration
}

// Result is the aggregate outcome of an All or Race run.
type Result struct {
	Items    []Item
	Tree     *routetree.Node
	Success  bool
	Duration time.Duration
}

// Execute runs calls under opts.Strategy. For All and Race it blocks
// until the strategy's join condition is met and returns the aggregate
// Result. For Stream, it drains ExecuteStream into the same aggregate
// shape — callers that want results as they arrive should call
// ExecuteStream directly instead.
func Execute(ctx context.Context, calls []router.ResolvedCall, call CallFunc, opts Options) (*Result, error) {
	switch opts.Strategy {
	case Race:
		return executeRace(ctx, calls, call)
	case Stream:
		return drainStream(ctx, calls, call, opts)
	default:
		return executeAll(ctx, calls, call)
	}
}

// callOne runs call and converts any exception (panic) or returned
// error into a failure CallResult — no raw exception ever escapes the
// executor, per spec.md §4.7.
func callOne(ctx context.Context, call CallFunc, rc router.ResolvedCall) (item Item) {
	start := time.Now()
	defer func() {
		item.Duration = time.Since(start)
		if r := recover(); r != nil {
			item.Result = routetree.CallResult{
				Success: false, Code: "EXECUTION_ERROR",
				Message: fmt.Sprintf("panic: %v", r), Path: rc.Path,
			}
		}
	}()
	item.Path = rc.Path

	data, err := call(ctx, rc)
	if err != nil {
		item.Result = routetree.CallResult{
			Success: false, Code: "EXECUTION_ERROR", Message: err.Error(), Path: rc.Path,
		}
		return item
	}
	item.Result = routetree.CallResult{Success: true, Data: data, Path: rc.Path}
	return item
}

func executeAll(ctx context.Context, calls []router.ResolvedCall, call CallFunc) (*Result, error) {
	start := time.Now()
	items := make([]Item, len(calls))

	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i, rc := range calls {
		i, rc := i, rc
		go func() {
			defer wg.Done()
			items[i] = callOne(ctx, call, rc)
		}()
	}
	wg.Wait()

	return finishAll(items, start), nil
}

func finishAll(items []Item, start time.Time) *Result {
	success := true
	leafResults := make([]routetree.LeafResult, 0, len(items))
	for _, it := range items {
		if !it.Result.Success {
			success = false
		}
		leafResults = append(leafResults, routetree.LeafResult{Path: it.Path, Result: it.Result})
	}
	return &Result{
		Items:    items,
		Tree:     routetree.BuildResponseTree(leafResults),
		Success:  success,
		Duration: time.Since(start),
	}
}

// executeRace launches every call concurrently; the first-settled
// result (success or failure) is the result. Peers keep running but
// their outcomes are discarded — the batch's own ctx is forwarded into
// every call so a cancelled race cooperatively stops losers (spec.md
// §9 open question on race cancellation, resolved in favor of
// forwarding cancellation rather than leaving peers to run unbounded).
func executeRace(ctx context.Context, calls []router.ResolvedCall, call CallFunc) (*Result, error) {
	start := time.Now()
	if len(calls) == 0 {
		return finishAll(nil, start), nil
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan Item, len(calls))
	var wg sync.WaitGroup
	wg.Add(len(calls))
	for _, rc := range calls {
		rc := rc
		go func() {
			defer wg.Done()
			resultCh <- callOne(raceCtx, call, rc)
		}()
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	winner, ok := <-resultCh
	cancel() // stop losers cooperatively; their results are discarded below
	if !ok {
		return finishAll(nil, start), nil
	}

	// Drain remaining results without blocking the caller on losers
	// that ignore cancellation.
	go func() {
		for range resultCh {
		}
	}()

	leafResults := []routetree.LeafResult{{Path: winner.Path, Result: winner.Result}}
	return &Result{
		Items:    []Item{winner},
		Tree:     routetree.BuildResponseTree(leafResults),
		Success:  winner.Result.Success,
		Duration: time.Since(start),
	}, nil
}

// ExecuteStream runs calls with bounded concurrency and streams results
// in completion order, not route order, matching spec.md §4.7/§5.
func ExecuteStream(ctx context.Context, calls []router.ResolvedCall, call CallFunc, opts Options) <-chan Item {
	concurrency := opts.StreamConcurrency
	if concurrency <= 0 {
		concurrency = len(calls)
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	out := make(chan Item, len(calls))
	sem := NewSemaphore(concurrency)

	go func() {
		defer close(out)
		g, gctx := errgroup.WithContext(ctx)
		for _, rc := range calls {
			rc := rc
			g.Go(func() error {
				return sem.WithPermit(gctx, func() error {
					out <- callOne(gctx, call, rc)
					return nil
				})
			})
		}
		g.Wait()
	}()

	return out
}

func drainStream(ctx context.Context, calls []router.ResolvedCall, call CallFunc, opts Options) (*Result, error) {
	start := time.Now()
	var items []Item
	for item := range ExecuteStream(ctx, calls, call, opts) {
		items = append(items, item)
	}
	return finishAll(items, start), nil
}
