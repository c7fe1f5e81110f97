package nodeexec

import (
	"context"
	"time"

	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/resilience"
)

// Resilient wraps a TransformNode with circuit-breaker gating and retry,
// the per-attempt composition from the resilience layer design: check the
// breaker, call the inner node, record the outcome, and either return the
// result or retry until the policy gives up. It has no notion of
// per-item error-handler rules; a RetryExhaustedError or
// CircuitBreakerOpenError it returns is meant to be interpreted by
// whatever wraps it (typically WithErrorHandler, or the node executor
// directly when no handler is configured).
type Resilient[In, Out any] struct {
	NodeID  string
	Inner   core.TransformNode[In, Out]
	Retry   *resilience.RetryPolicy
	Breaker *resilience.CircuitBreaker
}

func (r *Resilient[In, Out]) ExecuteItem(ctx context.Context, item In, pc core.PipelineProperties) (Out, error) {
	var zero Out
	attempt := 1
	for {
		if r.Breaker != nil && !r.Breaker.CanExecute() {
			return zero, &core.CircuitBreakerOpenError{NodeID: r.NodeID, Threshold: r.Breaker.FailureThreshold()}
		}

		out, err := r.Inner.ExecuteItem(ctx, item, pc)
		if err == nil {
			if r.Breaker != nil {
				r.Breaker.RecordSuccess()
			}
			return out, nil
		}
		if r.Breaker != nil {
			r.Breaker.RecordFailure()
		}
		if r.Retry == nil || !r.Retry.ShouldRetry(err, attempt) {
			return zero, &core.RetryExhaustedError{NodeID: r.NodeID, Attempts: attempt, Cause: err}
		}

		delay := r.Retry.Delay(attempt)
		attempt++
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
}

var _ core.TransformNode[any, any] = (*Resilient[any, any])(nil)
