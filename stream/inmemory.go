package stream

import (
	"context"

	"github.com/npipeline/NPipeline-sub013/core"
)

// InMemory replays a fixed slice on every Open call. Used by sources that
// were materialized ahead of time (test fixtures, small literal inputs)
// and by anything CappedReplayable-like that needs a restartable pipe.
type InMemory[T any] struct {
	name  string
	items []T
}

func NewInMemory[T any](name string, items []T) *InMemory[T] {
	return &InMemory[T]{name: name, items: items}
}

func (p *InMemory[T]) Name() string { return p.name }

func (p *InMemory[T]) Open(ctx context.Context) (<-chan core.Item[T], error) {
	ch := make(chan core.Item[T])
	go func() {
		defer close(ch)
		for _, v := range p.items {
			select {
			case <-ctx.Done():
				return
			case ch <- core.Item[T]{Value: v}:
			}
		}
	}()
	return ch, nil
}
