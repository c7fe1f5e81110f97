// Package nodeexec implements the strategies the coordinator drives a
// node's ExecuteItem calls with (Sequential, ParallelPerItem), the
// Resilient and WithErrorHandler decorators composed around a node, and
// the stream-reshaping node kinds (Batch, Unbatch, Join) that have no
// user-supplied ExecuteItem at all.
package nodeexec

import (
	"context"
	"errors"

	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/stream"
)

// ErrSkipItem is returned by a wrapped TransformNode (typically
// WithErrorHandler) to tell a Strategy to drop the current item instead
// of failing the whole run.
var ErrSkipItem = errors.New("nodeexec: item skipped by error handler")

// Strategy drives a TransformNode's ExecuteItem over every item of in,
// producing the output pipe.
type Strategy[In, Out any] interface {
	Run(ctx context.Context, pc core.PipelineProperties, node core.TransformNode[In, Out], in core.Pipe[In]) (core.Pipe[Out], error)
}

// Sequential calls ExecuteItem once per item, in input order, never more
// than one in flight.
type Sequential[In, Out any] struct{}

func (Sequential[In, Out]) Run(ctx context.Context, pc core.PipelineProperties, node core.TransformNode[In, Out], in core.Pipe[In]) (core.Pipe[Out], error) {
	name := in.Name() + ".sequential"
	return stream.NewStreaming[Out](name, func(genCtx context.Context, emit func(Out) bool) error {
		src, err := in.Open(genCtx)
		if err != nil {
			return err
		}
		for it := range src {
			if it.Err != nil {
				return it.Err
			}
			out, err := node.ExecuteItem(genCtx, it.Value, pc)
			if err != nil {
				if errors.Is(err, ErrSkipItem) {
					continue
				}
				return err
			}
			if !emit(out) {
				return genCtx.Err()
			}
		}
		return nil
	}), nil
}
