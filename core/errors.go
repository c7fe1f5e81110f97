package core

import "fmt"

// ValidationError reports a graph that failed build-time validation.
// Grounded on creastat-pipeline's validation.go ValidationError shape.
type ValidationError struct {
	Message string
	Details string
}

func (e ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// ConfigurationError reports an invalid option value supplied to a
// resilience or executor component (negative threshold, non-positive
// window, and so on).
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Component, e.Reason)
}

// RetryExhaustedError is raised by the resilient strategy once a retry
// policy's maxAttempts has been spent without success.
type RetryExhaustedError struct {
	NodeID   string
	Attempts int
	Cause    error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("node %q: retries exhausted after %d attempts: %v", e.NodeID, e.Attempts, e.Cause)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Cause }

// CircuitBreakerOpenError is raised when a call is rejected because the
// node's circuit breaker is Open (or HalfOpen with no probes left).
type CircuitBreakerOpenError struct {
	NodeID    string
	Threshold int
}

func (e *CircuitBreakerOpenError) Error() string {
	return fmt.Sprintf("node %q: circuit breaker open (threshold %d)", e.NodeID, e.Threshold)
}

// NodeExecutionError wraps any error surfaced from inside a node's
// execution (pipe open/close, join setup, item processing that exhausted
// its error-handler rules as Fail) with the owning node id attached.
type NodeExecutionError struct {
	NodeID string
	Cause  error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.NodeID, e.Cause)
}

func (e *NodeExecutionError) Unwrap() error { return e.Cause }

// PipelineExecutionError wraps any error that reaches the runner without
// already being a NodeExecutionError or a cancellation.
type PipelineExecutionError struct {
	NodeID string
	Cause  error
}

func (e *PipelineExecutionError) Error() string {
	return fmt.Sprintf("pipeline execution failed at node %q: %v", e.NodeID, e.Cause)
}

func (e *PipelineExecutionError) Unwrap() error { return e.Cause }

// BufferCapExceededError is raised by a CappedReplayable pipe when
// buffering for replay would exceed its configured cap.
type BufferCapExceededError struct {
	StreamName string
	Cap        int
}

func (e *BufferCapExceededError) Error() string {
	return fmt.Sprintf("stream %q: replay buffer exceeded cap of %d items", e.StreamName, e.Cap)
}
