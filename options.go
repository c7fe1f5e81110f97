package npipeline

import (
	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/errhandler"
	"github.com/npipeline/NPipeline-sub013/resilience"
)

// nodeConfig is the per-transform tuning a NodeOption mutates. The base
// strategy is Sequential unless WithParallelism raises it; retry/breaker/
// handler are all optional decorators layered on by wrapNode.
type nodeConfig struct {
	baseStrategy core.ExecutionStrategyKind
	options      core.ExecutionOptions
	retry        *resilience.RetryConfig
	breaker      *resilience.Options
	handler      *errhandler.Handler
	deadLetter   errhandler.DeadLetterSink
}

// NodeOption configures a transform registered with AddTransform.
type NodeOption func(*nodeConfig)

// WithParallelism runs ExecuteItem concurrently for up to degree items at
// once, restoring input order on the output side.
func WithParallelism(degree int) NodeOption {
	return func(c *nodeConfig) {
		c.baseStrategy = core.StrategyParallelPerItem
		c.options.Degree = degree
	}
}

// WithRetry wraps the node with the resilient retry loop from
// package resilience.
func WithRetry(cfg resilience.RetryConfig) NodeOption {
	return func(c *nodeConfig) {
		cfgCopy := cfg
		c.retry = &cfgCopy
	}
}

// WithCircuitBreaker wraps the node with a per-node circuit breaker,
// tracked by the run's shared resilience.Manager.
func WithCircuitBreaker(opts resilience.Options) NodeOption {
	return func(c *nodeConfig) {
		optsCopy := opts
		c.breaker = &optsCopy
	}
}

// WithErrorHandler attaches the per-item error-handler decision loop.
func WithErrorHandler(h *errhandler.Handler) NodeOption {
	return func(c *nodeConfig) { c.handler = h }
}

// WithDeadLetterSink routes DeadLetter decisions (and Retry decisions
// whose budget ran out) to sink.
func WithDeadLetterSink(sink errhandler.DeadLetterSink) NodeOption {
	return func(c *nodeConfig) { c.deadLetter = sink }
}
