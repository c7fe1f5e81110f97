package stream

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/npipeline/NPipeline-sub013/core"
)

// Counting wraps a pipe, incrementing a shared counter for every
// successfully-forwarded item. The executor attaches one to each edge so
// the runner can report per-edge throughput in RunResult, and flags
// pc.Property(core.LastRetryExhaustedPropertyKey) when a RetryExhaustedError
// flows past it so a downstream sink can detect "upstream gave up" without
// parsing the terminal error.
type Counting[T any] struct {
	inner   core.Pipe[T]
	counter *uint64
	props   core.PipelineProperties
}

func NewCounting[T any](inner core.Pipe[T], counter *uint64, props core.PipelineProperties) *Counting[T] {
	return &Counting[T]{inner: inner, counter: counter, props: props}
}

func (p *Counting[T]) Name() string { return p.inner.Name() }

func (p *Counting[T]) Open(ctx context.Context) (<-chan core.Item[T], error) {
	src, err := p.inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan core.Item[T])
	go func() {
		defer close(out)
		for it := range src {
			if it.Err != nil {
				var exhausted *core.RetryExhaustedError
				if errors.As(it.Err, &exhausted) && p.props != nil {
					p.props.SetProperty(core.LastRetryExhaustedPropertyKey, it.Err)
				}
				select {
				case out <- it:
				case <-ctx.Done():
				}
				return
			}
			if p.counter != nil {
				atomic.AddUint64(p.counter, 1)
			}
			select {
			case out <- it:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
