package stream

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/npipeline/NPipeline-sub013/core"
)

// Generator pushes values to emit. emit returns false once the consumer
// side has gone away (ctx cancelled); the generator should stop promptly.
type Generator[T any] func(ctx context.Context, emit func(T) bool) error

// Streaming wraps a Generator as a one-shot Pipe: Open may only be called
// once successfully. This is the pipe every nodeexec strategy returns,
// since a strategy's output is itself the live consumption of an upstream
// pipe and cannot be meaningfully replayed.
type Streaming[T any] struct {
	name   string
	gen    Generator[T]
	opened atomic.Bool
}

func NewStreaming[T any](name string, gen Generator[T]) *Streaming[T] {
	return &Streaming[T]{name: name, gen: gen}
}

func (p *Streaming[T]) Name() string { return p.name }

func (p *Streaming[T]) Open(ctx context.Context) (<-chan core.Item[T], error) {
	if !p.opened.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("stream %q: Streaming pipe is one-shot and was already opened", p.name)
	}
	ch := make(chan core.Item[T])
	go func() {
		defer close(ch)
		err := p.gen(ctx, func(v T) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- core.Item[T]{Value: v}:
				return true
			}
		})
		if err != nil {
			select {
			case ch <- core.Item[T]{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}
