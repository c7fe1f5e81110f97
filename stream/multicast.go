package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/npipeline/NPipeline-sub013/core"
)

// BranchMetrics tracks how far the pump is ahead of each Multicast
// subscriber, and in aggregate, so a runner can surface backpressure
// instead of guessing at it from goroutine stacks.
type BranchMetrics struct {
	PerSubscriberPending []int64
	AggregatePending     int64
}

// Multicast fans a single source out to N independent subscribers, each
// seeing every element. A single pump goroutine enumerates the source and,
// per element, writes concurrently to every subscriber channel via an
// errgroup; the pump cannot advance to the next element until every
// subscriber has accepted the current one, which is what bounds how far
// ahead of the slowest subscriber the others can get (at most one
// per-subscriber buffer's worth).
type Multicast[T any] struct {
	name string
	n    int

	mu        sync.Mutex
	issued    int
	once      sync.Once
	source    core.Pipe[T]
	writeEnds []chan<- core.Item[T]
	readEnds  []<-chan core.Item[T]
	metrics   BranchMetrics
}

// NewMulticast allocates n subscriber channels up front. perSubscriberBuffer
// <= 0 means an unbounded per-subscriber buffer.
func NewMulticast[T any](name string, source core.Pipe[T], n, perSubscriberBuffer int) *Multicast[T] {
	m := &Multicast[T]{
		name:      name,
		n:         n,
		source:    source,
		writeEnds: make([]chan<- core.Item[T], n),
		readEnds:  make([]<-chan core.Item[T], n),
		metrics:   BranchMetrics{PerSubscriberPending: make([]int64, n)},
	}
	for i := 0; i < n; i++ {
		if perSubscriberBuffer > 0 {
			ch := make(chan core.Item[T], perSubscriberBuffer)
			m.writeEnds[i] = ch
			m.readEnds[i] = ch
		} else {
			in, out := newUnboundedItemChan[T]()
			m.writeEnds[i] = in
			m.readEnds[i] = out
		}
	}
	return m
}

func (m *Multicast[T]) Metrics() *BranchMetrics { return &m.metrics }

// Subscribe hands out the next of the n pre-allocated subscriber pipes.
// Requesting more than n returns an error.
func (m *Multicast[T]) Subscribe() (core.Pipe[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issued >= m.n {
		return nil, fmt.Errorf("multicast %q: requested more than %d subscribers", m.name, m.n)
	}
	idx := m.issued
	m.issued++
	return &multicastSubscriber[T]{parent: m, index: idx}, nil
}

func (m *Multicast[T]) ensureStarted(ctx context.Context) {
	m.once.Do(func() {
		go m.pump(ctx)
	})
}

func (m *Multicast[T]) pump(ctx context.Context) {
	defer func() {
		for _, ch := range m.writeEnds {
			close(ch)
		}
	}()

	src, err := m.source.Open(ctx)
	if err != nil {
		for i, ch := range m.writeEnds {
			select {
			case ch <- core.Item[T]{Err: err}:
				atomic.AddInt64(&m.metrics.PerSubscriberPending[i], 1)
				atomic.AddInt64(&m.metrics.AggregatePending, 1)
			case <-ctx.Done():
			}
		}
		return
	}

	for it := range src {
		grp, gctx := errgroup.WithContext(ctx)
		for i := range m.writeEnds {
			i := i
			grp.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case m.writeEnds[i] <- it:
					atomic.AddInt64(&m.metrics.PerSubscriberPending[i], 1)
					atomic.AddInt64(&m.metrics.AggregatePending, 1)
					return nil
				}
			})
		}
		if err := grp.Wait(); err != nil {
			return
		}
		if it.Err != nil {
			return
		}
	}
}

type multicastSubscriber[T any] struct {
	parent *Multicast[T]
	index  int
}

func (s *multicastSubscriber[T]) Name() string {
	return fmt.Sprintf("%s.subscriber[%d]", s.parent.name, s.index)
}

func (s *multicastSubscriber[T]) Open(ctx context.Context) (<-chan core.Item[T], error) {
	s.parent.ensureStarted(ctx)
	out := make(chan core.Item[T])
	go func() {
		defer close(out)
		for it := range s.parent.readEnds[s.index] {
			atomic.AddInt64(&s.parent.metrics.PerSubscriberPending[s.index], -1)
			atomic.AddInt64(&s.parent.metrics.AggregatePending, -1)
			select {
			case <-ctx.Done():
				return
			case out <- it:
			}
		}
	}()
	return out, nil
}
