package stream

import (
	"context"
	"fmt"

	"github.com/npipeline/NPipeline-sub013/core"
)

// Box erases a typed pipe to Pipe[any], the wire type the graph executor
// moves between nodes. Erasure happens once, here, at graph-construction
// time: the executor's steady-state loop never reflects on an item, it
// just moves core.Item[any] values around.
func Box[T any](p core.Pipe[T]) core.Pipe[any] {
	return &boxed[T]{inner: p}
}

type boxed[T any] struct{ inner core.Pipe[T] }

func (b *boxed[T]) Name() string { return b.inner.Name() }

func (b *boxed[T]) Open(ctx context.Context) (<-chan core.Item[any], error) {
	src, err := b.inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan core.Item[any])
	go func() {
		defer close(out)
		for it := range src {
			select {
			case <-ctx.Done():
				return
			case out <- core.Item[any]{Value: it.Value, Err: it.Err}:
			}
			if it.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

// NullCoercionObserver is invoked when Unbox substitutes the target
// type's zero value for an erased nil, the join null-handling behavior
// called out in the graph model. A nil observer is a no-op.
type NullCoercionObserver func(streamName string)

// Unbox restores a Pipe[any] to a typed Pipe[T]. A nil boxed value
// coerces to T's zero value (observer notified); any other type mismatch
// is a terminal error on the returned pipe.
func Unbox[T any](p core.Pipe[any], observer NullCoercionObserver) core.Pipe[T] {
	return &unboxed[T]{inner: p, observer: observer}
}

type unboxed[T any] struct {
	inner    core.Pipe[any]
	observer NullCoercionObserver
}

func (u *unboxed[T]) Name() string { return u.inner.Name() }

func (u *unboxed[T]) Open(ctx context.Context) (<-chan core.Item[T], error) {
	src, err := u.inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan core.Item[T])
	go func() {
		defer close(out)
		for it := range src {
			if it.Err != nil {
				select {
				case out <- core.Item[T]{Err: it.Err}:
				case <-ctx.Done():
				}
				return
			}
			v, ok := it.Value.(T)
			if !ok {
				if it.Value == nil {
					if u.observer != nil {
						u.observer(u.inner.Name())
					}
					var zero T
					v = zero
				} else {
					err := fmt.Errorf("stream %q: cannot coerce %T to target type", u.inner.Name(), it.Value)
					select {
					case out <- core.Item[T]{Err: err}:
					case <-ctx.Done():
					}
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case out <- core.Item[T]{Value: v}:
			}
		}
	}()
	return out, nil
}
