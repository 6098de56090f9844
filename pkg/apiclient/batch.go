package apiclient

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Call is one named unit of work for RunBatch.
type Call struct {
	Name string
	Fn   func(ctx context.Context) (any, error)
}

// Result holds the outcome of a Call.
type Result struct {
	Name  string
	Value any
	Err   error
}

// RunBatch runs calls concurrently with at most limit in flight and returns
// their results in submission order. A failing call does not cancel the
// others; cancelling ctx does.
func RunBatch(ctx context.Context, limit int, calls ...Call) []Result {
	results := make([]Result, len(calls))
	if len(calls) == 0 {
		return results
	}
	if limit <= 0 || limit > len(calls) {
		limit = len(calls)
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, call := range calls {
		results[i].Name = call.Name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			if call.Fn == nil {
				return nil
			}
			results[i].Value, results[i].Err = call.Fn(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
