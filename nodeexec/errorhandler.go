package nodeexec

import (
	"context"

	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/errhandler"
	"github.com/npipeline/NPipeline-sub013/resilience"
)

// WithErrorHandler wraps a TransformNode with the per-item error-handler
// decision loop. A Skip or DeadLetter decision surfaces as ErrSkipItem so
// the enclosing Strategy drops the item instead of failing the run; any
// other decision surfaces as a NodeExecutionError.
type WithErrorHandler[In, Out any] struct {
	NodeID     string
	Inner      core.TransformNode[In, Out]
	Handler    *errhandler.Handler
	Retry      *resilience.RetryPolicy // used only for inter-retry delay, independent of Resilient's own retry budget
	DeadLetter errhandler.DeadLetterSink
}

func (w *WithErrorHandler[In, Out]) ExecuteItem(ctx context.Context, item In, pc core.PipelineProperties) (Out, error) {
	var zero Out
	var result Out
	decision, err := errhandler.Outcome(ctx, w.NodeID, item, w.Handler, w.Retry, w.DeadLetter, func(attempt int) error {
		out, execErr := w.Inner.ExecuteItem(ctx, item, pc)
		if execErr == nil {
			result = out
		}
		return execErr
	})
	if err == nil {
		return result, nil
	}
	switch decision {
	case errhandler.DecisionSkip, errhandler.DecisionDeadLetter:
		return zero, ErrSkipItem
	default:
		return zero, &core.NodeExecutionError{NodeID: w.NodeID, Cause: err}
	}
}

var _ core.TransformNode[any, any] = (*WithErrorHandler[any, any])(nil)
