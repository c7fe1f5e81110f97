package stream

import (
	"context"
	"sync"

	"github.com/npipeline/NPipeline-sub013/core"
)

// CappedReplayable buffers everything a source has produced so far and
// replays it ahead of any new consumption on a later Open call, up to a
// configured item cap. It exists for upstream sources that must be
// re-consumed by a retry attempt: the retried attempt should see the same
// prefix the failed attempt saw, not re-trigger side effects in the
// source. Only sequential re-opens are supported (one retry loop driving
// it), not concurrent readers.
type CappedReplayable[T any] struct {
	name   string
	source core.Pipe[T]
	cap    int

	mu         sync.Mutex
	started    bool
	srcCh      <-chan core.Item[T]
	buffered   []T
	sourceErr  error
	sourceDone bool
}

func NewCappedReplayable[T any](name string, source core.Pipe[T], cap int) *CappedReplayable[T] {
	return &CappedReplayable[T]{name: name, source: source, cap: cap}
}

func (p *CappedReplayable[T]) Name() string { return p.name }

func (p *CappedReplayable[T]) Open(ctx context.Context) (<-chan core.Item[T], error) {
	out := make(chan core.Item[T])
	go func() {
		defer close(out)

		p.mu.Lock()
		replay := append([]T(nil), p.buffered...)
		alreadyErr := p.sourceErr
		alreadyDone := p.sourceDone
		if !p.started {
			p.started = true
			ch, err := p.source.Open(ctx)
			if err != nil {
				p.mu.Unlock()
				select {
				case out <- core.Item[T]{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			p.srcCh = ch
		}
		p.mu.Unlock()

		for _, v := range replay {
			select {
			case <-ctx.Done():
				return
			case out <- core.Item[T]{Value: v}:
			}
		}
		if alreadyErr != nil {
			select {
			case out <- core.Item[T]{Err: alreadyErr}:
			case <-ctx.Done():
			}
			return
		}
		if alreadyDone {
			return
		}

		for it := range p.srcCh {
			if it.Err != nil {
				p.mu.Lock()
				p.sourceErr = it.Err
				p.sourceDone = true
				p.mu.Unlock()
				select {
				case out <- it:
				case <-ctx.Done():
				}
				return
			}
			p.mu.Lock()
			if p.cap > 0 && len(p.buffered) >= p.cap {
				p.mu.Unlock()
				err := &core.BufferCapExceededError{StreamName: p.name, Cap: p.cap}
				select {
				case out <- core.Item[T]{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			p.buffered = append(p.buffered, it.Value)
			p.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case out <- it:
			}
		}
		p.mu.Lock()
		p.sourceDone = true
		p.mu.Unlock()
	}()
	return out, nil
}
