package resilience

import (
	"sync"
	"time"

	"github.com/npipeline/NPipeline-sub013/core"
)

// State is one of the three circuit-breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ThresholdType selects which signal trips a Closed breaker to Open.
type ThresholdType string

const (
	ThresholdConsecutiveFailures ThresholdType = "consecutive-failures"
	ThresholdRollingCount        ThresholdType = "rolling-count"
	ThresholdRollingRate         ThresholdType = "rolling-rate"
	ThresholdHybrid              ThresholdType = "hybrid"
)

// Options parameterizes a CircuitBreaker.
type Options struct {
	ThresholdType ThresholdType

	// FailureThreshold is the consecutive-failure count for
	// ThresholdConsecutiveFailures/ThresholdHybrid, the in-window failure
	// count for ThresholdRollingCount, and the minimum in-window sample
	// count for ThresholdRollingRate (and the rate half of ThresholdHybrid).
	FailureThreshold int
	// FailureRateThreshold is the fraction (0..1) tripping
	// ThresholdRollingRate/ThresholdHybrid once FailureThreshold samples
	// have been seen.
	FailureRateThreshold float64
	SamplingWindow       time.Duration

	OpenDuration             time.Duration
	HalfOpenMaxAttempts      int
	HalfOpenSuccessThreshold int
}

func (o Options) validate(component string) error {
	switch {
	case o.FailureThreshold < 0:
		return &core.ConfigurationError{Component: component, Reason: "FailureThreshold must be >= 0"}
	case o.HalfOpenMaxAttempts < 0:
		return &core.ConfigurationError{Component: component, Reason: "HalfOpenMaxAttempts must be >= 0"}
	case o.SamplingWindow < 0:
		return &core.ConfigurationError{Component: component, Reason: "SamplingWindow must be >= 0"}
	case o.FailureRateThreshold < 0 || o.FailureRateThreshold > 1:
		return &core.ConfigurationError{Component: component, Reason: "FailureRateThreshold must be in [0,1]"}
	}
	return nil
}

// CircuitBreaker is a single node's Closed/Open/HalfOpen state machine.
type CircuitBreaker struct {
	nodeID string
	opts   Options

	mu                sync.Mutex
	state             State
	window            *RollingWindow
	consecutiveFail   int
	openedAt          time.Time
	halfOpenAttempts  int
	halfOpenSuccesses int
	timer             *time.Timer
	onTransition      func(from, to State)
}

func NewCircuitBreaker(nodeID string, opts Options) (*CircuitBreaker, error) {
	if err := opts.validate("CircuitBreaker " + nodeID); err != nil {
		return nil, err
	}
	if opts.ThresholdType == "" {
		opts.ThresholdType = ThresholdConsecutiveFailures
	}
	return &CircuitBreaker{
		nodeID: nodeID,
		opts:   opts,
		state:  StateClosed,
		window: NewRollingWindow(opts.SamplingWindow),
	}, nil
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) FailureThreshold() int { return cb.opts.FailureThreshold }

// OnTransition registers a callback invoked (synchronously, under the
// breaker's lock) on every state change. Intended for logging/metrics.
func (cb *CircuitBreaker) OnTransition(f func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onTransition = f
}

// CanExecute reports whether a call may proceed, consuming one HalfOpen
// probe slot if it grants one.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.halfOpenAttempts < cb.opts.HalfOpenMaxAttempts {
			cb.halfOpenAttempts++
			return true
		}
		return false
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.opts.OpenDuration {
			cb.transitionLocked(StateHalfOpen)
			if cb.halfOpenAttempts < cb.opts.HalfOpenMaxAttempts {
				cb.halfOpenAttempts++
				return true
			}
		}
		return false
	}
	return false
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.window.Record(true)
	switch cb.state {
	case StateClosed:
		cb.consecutiveFail = 0
	case StateHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.opts.HalfOpenSuccessThreshold {
			cb.transitionLocked(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.window.Record(false)
	cb.consecutiveFail++
	switch cb.state {
	case StateClosed:
		if cb.tripLocked() {
			cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		cb.transitionLocked(StateOpen)
	}
}

func (cb *CircuitBreaker) tripLocked() bool {
	switch cb.opts.ThresholdType {
	case ThresholdRollingCount:
		total, failures := cb.window.Counts()
		return total >= cb.opts.FailureThreshold && failures >= cb.opts.FailureThreshold
	case ThresholdRollingRate:
		total, _ := cb.window.Counts()
		return total >= cb.opts.FailureThreshold && cb.window.FailureRate() >= cb.opts.FailureRateThreshold
	case ThresholdHybrid:
		consecutive := cb.consecutiveFail >= cb.opts.FailureThreshold
		total, _ := cb.window.Counts()
		rate := total >= cb.opts.FailureThreshold && cb.window.FailureRate() >= cb.opts.FailureRateThreshold
		return consecutive || rate
	default: // ThresholdConsecutiveFailures
		return cb.consecutiveFail >= cb.opts.FailureThreshold
	}
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	switch to {
	case StateOpen:
		cb.openedAt = time.Now()
		if cb.timer != nil {
			cb.timer.Stop()
		}
		cb.timer = time.AfterFunc(cb.opts.OpenDuration, func() {
			cb.mu.Lock()
			if cb.state == StateOpen {
				cb.transitionLocked(StateHalfOpen)
			}
			cb.mu.Unlock()
		})
	case StateHalfOpen:
		cb.halfOpenAttempts = 0
		cb.halfOpenSuccesses = 0
	case StateClosed:
		cb.consecutiveFail = 0
		cb.window.Clear()
		if cb.timer != nil {
			cb.timer.Stop()
			cb.timer = nil
		}
	}
	if cb.onTransition != nil {
		cb.onTransition(from, to)
	}
}
