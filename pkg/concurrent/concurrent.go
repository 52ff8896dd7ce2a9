package concurrent

import (
	"context"

	"github.com/zeusync/markov/pkg/sequence"
	"golang.org/x/sync/errgroup"
)

// ForEach runs action for every element of the iterator with at most workers
// goroutines in flight. Elements are pulled lazily, so an unbounded source does not
// get buffered in memory. The first error cancels ctx for the remaining actions,
// stops pulling new elements and is returned once in-flight actions finish.
// A workers value below 1 means one worker.
func ForEach[T any](ctx context.Context, i *sequence.Iterator[T], workers int, action func(context.Context, T) error) error {
	if workers < 1 {
		workers = 1
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	next, stop := i.Pull()
	defer stop()

	for {
		if gctx.Err() != nil {
			break
		}

		value, valid := next()
		if !valid {
			break
		}

		group.Go(func() error {
			return action(gctx, value)
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
