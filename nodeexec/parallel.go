package nodeexec

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/stream"
)

// ParallelPerItem runs up to Degree ExecuteItem calls concurrently,
// re-establishing input order on the output side by indexing results
// before emitting them.
//
// This implementation reads the whole input pipe before dispatching work,
// trading the ability to stream an unbounded source through a parallel
// stage for a much simpler (and easier to get right) reorder step than a
// sliding window keyed by a ring buffer of size Degree. Sources fed to a
// parallel transform are expected to be bounded; an unbounded one should
// sit behind Batching instead.
type ParallelPerItem[In, Out any] struct {
	Degree int
}

func (p ParallelPerItem[In, Out]) Run(ctx context.Context, pc core.PipelineProperties, node core.TransformNode[In, Out], in core.Pipe[In]) (core.Pipe[Out], error) {
	degree := p.Degree
	if degree < 1 {
		degree = 1
	}
	name := in.Name() + ".parallel"
	return stream.NewStreaming[Out](name, func(genCtx context.Context, emit func(Out) bool) error {
		src, err := in.Open(genCtx)
		if err != nil {
			return err
		}

		var items []In
		for it := range src {
			if it.Err != nil {
				return it.Err
			}
			items = append(items, it.Value)
		}

		results := make([]Out, len(items))
		skipped := make([]bool, len(items))
		sem := semaphore.NewWeighted(int64(degree))
		grp, gctx := errgroup.WithContext(genCtx)

		for i, item := range items {
			i, item := i, item
			if err := sem.Acquire(gctx, 1); err != nil {
				break
			}
			grp.Go(func() error {
				defer sem.Release(1)
				out, execErr := node.ExecuteItem(gctx, item, pc)
				if execErr != nil {
					if errors.Is(execErr, ErrSkipItem) {
						skipped[i] = true
						return nil
					}
					return execErr
				}
				results[i] = out
				return nil
			})
		}
		if err := grp.Wait(); err != nil {
			return err
		}

		for i := range results {
			if skipped[i] {
				continue
			}
			if !emit(results[i]) {
				return genCtx.Err()
			}
		}
		return nil
	}), nil
}
