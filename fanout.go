package weave

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// All runs fns concurrently and waits for them. Each branch records its
// components under the caller's current checkpoint node. The first error
// cancels the context passed to the remaining branches and is returned.
func All(ctx context.Context, fns ...func(ctx context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error {
			return fn(ctx)
		})
	}
	return g.Wait()
}

// Map runs fn for every item concurrently and returns the results in item
// order. limit bounds the number of items processed at once; zero or less
// means no limit.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			result, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
