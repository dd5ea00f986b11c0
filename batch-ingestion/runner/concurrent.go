// Package runner executes planned batches against an RPC source and a store.
package runner

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/containerman17/op-batches/batch-ingestion/consts"
)

// SerialWorkers runs targets one by one in key order. Handy under a debugger.
const SerialWorkers = consts.RunnerSerialWorkers

// TaskError identifies the target whose function failed.
type TaskError struct {
	Key any
	Err error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %v failed: %v", e.Key, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// RunConcurrently calls fn for every target with at most workers calls in flight
// and returns the results under the same keys. workers <= 0 selects the default,
// SerialWorkers selects serial execution. The first failure cancels the context
// passed to the remaining calls and is returned as a *TaskError.
func RunConcurrently[K cmp.Ordered, V, R any](
	ctx context.Context,
	fn func(ctx context.Context, target V) (R, error),
	targets map[K]V,
	workers int,
) (map[K]R, error) {
	if workers == SerialWorkers {
		return runSerially(ctx, fn, targets)
	}
	if workers <= 0 {
		workers = consts.RunnerDefaultWorkers
	}

	results := make(map[K]R, len(targets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, key := range sortedKeys(targets) {
		target := targets[key]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := fn(gctx, target)
			if err != nil {
				return &TaskError{Key: key, Err: err}
			}
			mu.Lock()
			results[key] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runSerially[K cmp.Ordered, V, R any](
	ctx context.Context,
	fn func(ctx context.Context, target V) (R, error),
	targets map[K]V,
) (map[K]R, error) {
	results := make(map[K]R, len(targets))
	for _, key := range sortedKeys(targets) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := fn(ctx, targets[key])
		if err != nil {
			return nil, &TaskError{Key: key, Err: err}
		}
		results[key] = res
	}
	return results, nil
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
