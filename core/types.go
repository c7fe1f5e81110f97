// Package core holds the vocabulary shared by every other package in the
// module: node kinds, execution strategy tags, node-level options, and the
// generic node interfaces that user code implements.
package core

// NodeKind discriminates the role a node plays in a PipelineGraph.
type NodeKind string

const (
	KindSource    NodeKind = "source"
	KindTransform NodeKind = "transform"
	KindSink      NodeKind = "sink"
	KindTap       NodeKind = "tap"
	KindBranch    NodeKind = "branch"
	KindJoin      NodeKind = "join"
	KindBatch     NodeKind = "batch"
	KindUnbatch   NodeKind = "unbatch"
)

// ExecutionStrategyKind selects how the node executor drives a node.
type ExecutionStrategyKind string

const (
	StrategySequential      ExecutionStrategyKind = "sequential"
	StrategyParallelPerItem ExecutionStrategyKind = "parallel-per-item"
	StrategyBatching        ExecutionStrategyKind = "batching"
	StrategyResilient       ExecutionStrategyKind = "resilient"
)

// JoinStrategyKind selects how a join node merges its inbound edges.
type JoinStrategyKind string

const (
	JoinInterleave JoinStrategyKind = "interleave"
)

// LastRetryExhaustedPropertyKey is the PipelineProperties.Property key a
// Counting pipe sets when it observes a RetryExhaustedError flow past it,
// so a downstream sink can check pc.Property(LastRetryExhaustedPropertyKey)
// instead of parsing the terminal error itself.
const LastRetryExhaustedPropertyKey = "LastRetryExhaustedException"

// ExecutionOptions carries per-node tuning. Only Degree is read at run
// time (set by WithParallelism); no NodeOption sets the other fields and
// the runtime does not read them.
type ExecutionOptions struct {
	// Degree is the parallelism degree for StrategyParallelPerItem.
	Degree int

	// BatchSize and BatchTimeout describe StrategyBatching. AddBatch takes
	// its size and timeout as arguments and does not read these.
	BatchSize    int
	BatchTimeout int64 // nanoseconds, to keep the struct comparable without importing time here

	// MergeCapacity is the per-input buffer capacity for a join node. Joins
	// use the run-wide WithMergeCapacity value; neither this field nor a
	// "merge.capacity" annotation is consulted.
	MergeCapacity int

	// BranchCapacity is the per-subscriber buffer for a multicast/branch
	// node. Multicasts use the run-wide WithBranchCapacity value (<= 0 for
	// unbounded); neither this field nor a "branch.capacity" annotation is
	// consulted.
	BranchCapacity int
}
