package nodeexec

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/stream"
)

// Join merges N erased inbound pipes into one by arrival order
// (JoinInterleave): every input is read concurrently into a shared
// channel bounded by capacityPerInput*len(inputs), and the merged pipe
// yields items in whatever order they actually arrive. The first error
// from any input (or from the merge itself) terminates the merged pipe.
func Join(ctx context.Context, name string, inputs []core.Pipe[any], capacityPerInput int) (core.Pipe[any], error) {
	if capacityPerInput <= 0 {
		capacityPerInput = 1
	}
	return stream.NewStreaming[any](name, func(genCtx context.Context, emit func(any) bool) error {
		merged := make(chan core.Item[any], capacityPerInput*len(inputs))
		grp, gctx := errgroup.WithContext(genCtx)
		for _, input := range inputs {
			input := input
			grp.Go(func() error {
				src, err := input.Open(gctx)
				if err != nil {
					return err
				}
				for it := range src {
					select {
					case <-gctx.Done():
						return gctx.Err()
					case merged <- it:
					}
					if it.Err != nil {
						return it.Err
					}
				}
				return nil
			})
		}

		var joinErr error
		done := make(chan struct{})
		go func() {
			joinErr = grp.Wait()
			close(merged)
			close(done)
		}()

		for it := range merged {
			if it.Err != nil {
				<-done
				return it.Err
			}
			if !emit(it.Value) {
				<-done
				return genCtx.Err()
			}
		}
		<-done
		return joinErr
	}), nil
}
