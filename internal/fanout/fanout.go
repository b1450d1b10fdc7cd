// Package fanout runs one operation per instance concurrently and joins on all of them.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome pairs an operation's value with its error.
type Outcome[R any] struct {
	Value R
	Err   error
}

// All calls fn once per item in parallel and blocks until every call returns.
// Results are stored at the index of their item, so output order matches input
// order regardless of completion order. There is no short-circuit: a slow item
// delays the join but never cancels its siblings.
func All[T, R any](ctx context.Context, items []T, fn func(context.Context, T) R) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}
	var g errgroup.Group
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			results[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // callbacks never return errors
	return results
}

// Collect is All for operations that can fail. Errors are kept per item so the
// caller decides how to absorb them.
func Collect[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error)) []Outcome[R] {
	return All(ctx, items, func(ctx context.Context, item T) Outcome[R] {
		v, err := fn(ctx, item)
		return Outcome[R]{Value: v, Err: err}
	})
}
