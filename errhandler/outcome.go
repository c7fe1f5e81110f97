package errhandler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/npipeline/NPipeline-sub013/resilience"
)

// Outcome drives execute against handler's rules for a single item. On
// success it returns ("", nil). On a terminal decision (Fail, Skip,
// DeadLetter) it returns that decision and the last error seen; a Retry
// whose rule-specific budget is spent returns DecisionDeadLetter and the
// last error. retryPolicy supplies the delay
// between Retry attempts (nil means no delay); deadLetter is notified
// whenever the loop lands on DeadLetter, including a Retry that ran out
// of budget.
func Outcome(ctx context.Context, nodeID string, itemForRecord any, handler *Handler, retryPolicy *resilience.RetryPolicy, deadLetter DeadLetterSink, execute func(attempt int) error) (Decision, error) {
	if handler == nil {
		handler, _ = NewHandler().OnAny().Fail().Build()
	}
	attempt := 1
	for {
		err := execute(attempt)
		if err == nil {
			return "", nil
		}

		decision, maxRetries := handler.Handle(err, attempt)
		switch decision {
		case DecisionFail:
			return DecisionFail, err
		case DecisionSkip:
			return DecisionSkip, err
		case DecisionDeadLetter:
			notifyDeadLetter(ctx, deadLetter, nodeID, itemForRecord, err, attempt)
			return DecisionDeadLetter, err
		case DecisionRetry:
			if maxRetries > 0 && attempt >= maxRetries {
				notifyDeadLetter(ctx, deadLetter, nodeID, itemForRecord, err, attempt)
				return DecisionDeadLetter, err
			}
			var delay time.Duration
			if retryPolicy != nil {
				delay = retryPolicy.Delay(attempt)
			}
			attempt++
			select {
			case <-ctx.Done():
				return DecisionFail, ctx.Err()
			case <-time.After(delay):
			}
		default:
			return DecisionFail, err
		}
	}
}

func notifyDeadLetter(ctx context.Context, sink DeadLetterSink, nodeID string, item any, err error, attempt int) {
	if sink == nil {
		return
	}
	_ = sink.Handle(ctx, DeadLetterRecord{ID: uuid.New(), NodeID: nodeID, Item: item, Err: err, Attempt: attempt})
}
