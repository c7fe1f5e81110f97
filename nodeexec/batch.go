package nodeexec

import (
	"context"
	"time"

	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/stream"
)

// Batch groups items until BatchSize is reached or Timeout elapses since
// the first item of the current group was buffered, whichever comes
// first, then emits the group as a single slice. BatchSize <= 0 disables
// the size trigger; Timeout <= 0 disables the timeout trigger (at least
// one of the two must be positive for the node to ever emit).
type Batch[T any] struct {
	BatchSize int
	Timeout   time.Duration
}

func (b Batch[T]) Run(ctx context.Context, in core.Pipe[T]) (core.Pipe[[]T], error) {
	name := in.Name() + ".batch"
	return stream.NewStreaming[[]T](name, func(genCtx context.Context, emit func([]T) bool) error {
		src, err := in.Open(genCtx)
		if err != nil {
			return err
		}

		var buf []T
		var timer *time.Timer
		var timerCh <-chan time.Time

		arm := func() {
			if b.Timeout <= 0 {
				return
			}
			timer = time.NewTimer(b.Timeout)
			timerCh = timer.C
		}
		disarm := func() {
			if timer != nil {
				timer.Stop()
			}
			timer, timerCh = nil, nil
		}

		for {
			select {
			case <-genCtx.Done():
				return genCtx.Err()
			case it, ok := <-src:
				if !ok {
					if len(buf) > 0 {
						disarm()
						if !emit(buf) {
							return genCtx.Err()
						}
					}
					return nil
				}
				if it.Err != nil {
					return it.Err
				}
				if len(buf) == 0 {
					arm()
				}
				buf = append(buf, it.Value)
				if b.BatchSize > 0 && len(buf) >= b.BatchSize {
					batch := buf
					buf = nil
					disarm()
					if !emit(batch) {
						return genCtx.Err()
					}
				}
			case <-timerCh:
				batch := buf
				buf = nil
				disarm()
				if !emit(batch) {
					return genCtx.Err()
				}
			}
		}
	}), nil
}

// Unbatch flattens a pipe of slices back into a pipe of their elements,
// preserving order within and across batches.
type Unbatch[T any] struct{}

func (Unbatch[T]) Run(ctx context.Context, in core.Pipe[[]T]) (core.Pipe[T], error) {
	name := in.Name() + ".unbatch"
	return stream.NewStreaming[T](name, func(genCtx context.Context, emit func(T) bool) error {
		src, err := in.Open(genCtx)
		if err != nil {
			return err
		}
		for it := range src {
			if it.Err != nil {
				return it.Err
			}
			for _, v := range it.Value {
				if !emit(v) {
					return genCtx.Err()
				}
			}
		}
		return nil
	}), nil
}
