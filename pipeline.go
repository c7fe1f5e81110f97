package npipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/internal/telemetry"
	"github.com/npipeline/NPipeline-sub013/pipelinectx"
	"github.com/npipeline/NPipeline-sub013/resilience"
	"github.com/npipeline/NPipeline-sub013/stream"
)

// runConfig is what a RunOption mutates before Run starts.
type runConfig struct {
	parameters     map[string]any
	logger         telemetry.Logger
	mergeCapacity  int
	branchCapacity int
	managerOptions resilience.ManagerOptions
	nullObserver   stream.NullCoercionObserver
}

func defaultRunConfig() *runConfig {
	return &runConfig{
		logger:         telemetry.Nop(),
		mergeCapacity:  16,
		branchCapacity: 16,
		managerOptions: resilience.ManagerOptions{
			MaxTrackedCircuitBreakers: 256,
			EnableAutomaticCleanup:    true,
			CleanupInterval:           time.Minute,
			InactivityThreshold:       10 * time.Minute,
		},
	}
}

// RunOption configures a single Run call.
type RunOption func(*runConfig)

func WithParameters(params map[string]any) RunOption {
	return func(c *runConfig) { c.parameters = params }
}

func WithRunLogger(l telemetry.Logger) RunOption {
	return func(c *runConfig) { c.logger = l }
}

// WithMergeCapacity sets the per-input buffer capacity nodeexec.Join uses
// when a node has two or more inbound edges.
func WithMergeCapacity(n int) RunOption {
	return func(c *runConfig) { c.mergeCapacity = n }
}

// WithBranchCapacity sets the per-subscriber buffer capacity
// stream.Multicast uses when a node has two or more outbound edges.
// <= 0 requests an unbounded per-subscriber buffer.
func WithBranchCapacity(n int) RunOption {
	return func(c *runConfig) { c.branchCapacity = n }
}

func WithManagerOptions(o resilience.ManagerOptions) RunOption {
	return func(c *runConfig) { c.managerOptions = o }
}

// WithNullCoercionObserver is notified whenever a join or edge coerces an
// erased nil value into a typed zero value.
func WithNullCoercionObserver(f stream.NullCoercionObserver) RunOption {
	return func(c *runConfig) { c.nullObserver = f }
}

// RunResult reports what happened during one Run: the per-edge item
// counts (keyed "sourceNodeID->targetNodeID") and the wall-clock
// duration of the whole run.
type RunResult struct {
	RunID      string
	EdgeCounts map[string]uint64
	Duration   time.Duration
}

// Run instantiates every node of g in topological order, wires branch
// (multicast) and join (merge) behavior wherever edge cardinality calls
// for it, then drives every sink concurrently until the graph is
// exhausted or ctx is cancelled. g should come from
// PipelineBuilder.Build/TryBuild, which already validated it; Run itself
// only re-derives a topological order, since nothing prevents a caller
// from handing it a hand-assembled PipelineGraph.
func Run(ctx context.Context, g *PipelineGraph, opts ...RunOption) (RunResult, error) {
	start := time.Now()
	cfg := defaultRunConfig()
	for _, o := range opts {
		o(cfg)
	}

	pc := pipelinectx.New(
		pipelinectx.WithParameters(cfg.parameters),
		pipelinectx.WithLogger(cfg.logger),
	)
	defer pc.Dispose()

	for _, d := range g.disposables {
		pc.AddDisposable(d)
	}
	for k, v := range g.Annotations {
		pc.SetProperty("global."+k, v)
	}

	manager := resilience.NewManager(cfg.managerOptions, func(nodeID string) resilience.Options {
		if nc, ok := g.nodeConfigs[nodeID]; ok && nc.breaker != nil {
			return *nc.breaker
		}
		return resilience.Options{}
	})
	defer manager.Close()

	deps := runtimeDeps{
		mergeCapacity:  cfg.mergeCapacity,
		branchCapacity: cfg.branchCapacity,
		breakers:       manager,
		nullObserver:   cfg.nullObserver,
	}

	order, err := topoSort(g)
	if err != nil {
		return RunResult{}, err
	}

	edgePipes := make([]core.Pipe[any], len(g.Edges))
	edgeCounters := make([]*uint64, len(g.Edges))
	rawOutputs := make(map[string]core.Pipe[any], len(order))

	var sinkIDs []string
	for _, id := range order {
		rt := g.runtimes[id]
		switch {
		case rt.initSource != nil:
			out, err := rt.initSource(ctx, pc)
			if err != nil {
				return RunResult{}, wrapNodeError(id, err)
			}
			rawOutputs[id] = out

		case rt.runTransform != nil:
			ins, err := gatherInputs(g, id, edgePipes)
			if err != nil {
				return RunResult{}, err
			}
			out, err := rt.runTransform(ctx, pc, deps, ins)
			if err != nil {
				return RunResult{}, wrapNodeError(id, err)
			}
			rawOutputs[id] = out

		case rt.runSink != nil:
			sinkIDs = append(sinkIDs, id)
			continue // sinks are driven after every pipe is wired, not during instantiation

		default:
			return RunResult{}, fmt.Errorf("node %q: no runtime registered", id)
		}

		if err := fanOut(g, id, rawOutputs[id], deps, pc, edgePipes, edgeCounters); err != nil {
			return RunResult{}, err
		}
	}

	grp, gctx := errgroup.WithContext(ctx)
	for _, id := range sinkIDs {
		id := id
		grp.Go(func() error {
			ins, err := gatherInputs(g, id, edgePipes)
			if err != nil {
				return err
			}
			if err := g.runtimes[id].runSink(gctx, pc, deps, ins); err != nil {
				return wrapNodeError(id, err)
			}
			return nil
		})
	}
	runErr := grp.Wait()
	if runErr == nil && ctx.Err() != nil {
		// Pipes close without an error item once ctx is done, so a sink can
		// return nil after a cancellation; report the cancellation itself.
		runErr = ctx.Err()
	}

	result := RunResult{
		RunID:      pc.RunID.String(),
		EdgeCounts: collectEdgeCounts(g, edgeCounters),
		Duration:   time.Since(start),
	}
	if runErr != nil {
		if isCancellation(runErr) {
			return result, runErr
		}
		var nodeErr *core.NodeExecutionError
		if errors.As(runErr, &nodeErr) {
			return result, nodeErr
		}
		return result, &core.PipelineExecutionError{Cause: runErr}
	}
	return result, nil
}

// wrapNodeError attaches id to err as a NodeExecutionError, unless err is a
// cancellation, which is never wrapped or treated as a node failure.
func wrapNodeError(id string, err error) error {
	if isCancellation(err) {
		return err
	}
	return &core.NodeExecutionError{NodeID: id, Cause: err}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// topoSort runs Kahn's algorithm over g, breaking ties by the order
// nodes became ready (which, for the first wave, is g.Nodes' own
// insertion order), so two builds of the same graph always instantiate
// nodes in the same order.
func topoSort(g *PipelineGraph) ([]string, error) {
	inDeg := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		inDeg[n.ID] = 0
	}
	for _, e := range g.Edges {
		inDeg[e.TargetNodeID]++
	}

	queue := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if inDeg[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, e := range g.outboundEdges(id) {
			inDeg[e.TargetNodeID]--
			if inDeg[e.TargetNodeID] == 0 {
				queue = append(queue, e.TargetNodeID)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, core.ValidationError{Message: "graph contains a cycle", Details: "topological sort could not order every node"}
	}
	return order, nil
}

func outboundEdgeIndices(g *PipelineGraph, id string) []int {
	var out []int
	for i, e := range g.Edges {
		if e.SourceNodeID == id {
			out = append(out, i)
		}
	}
	return out
}

func inboundEdgeIndices(g *PipelineGraph, id string) []int {
	var out []int
	for i, e := range g.Edges {
		if e.TargetNodeID == id {
			out = append(out, i)
		}
	}
	return out
}

// gatherInputs collects the already-wired pipe for every inbound edge of
// id, in edge order, for its runtime closure to merge with
// mergeAndUnbox.
func gatherInputs(g *PipelineGraph, id string, edgePipes []core.Pipe[any]) ([]core.Pipe[any], error) {
	indices := inboundEdgeIndices(g, id)
	ins := make([]core.Pipe[any], 0, len(indices))
	for _, idx := range indices {
		p := edgePipes[idx]
		if p == nil {
			return nil, fmt.Errorf("node %q: upstream edge %d was never wired (topological order bug)", id, idx)
		}
		ins = append(ins, p)
	}
	return ins, nil
}

// fanOut distributes a node's raw output pipe across its outbound edges:
// a single edge gets it directly (wrapped for counting); two or more get
// independent stream.Multicast subscriptions, since a Pipe generally
// cannot be Open'd more than once.
func fanOut(g *PipelineGraph, id string, rawOut core.Pipe[any], deps runtimeDeps, pc core.PipelineProperties, edgePipes []core.Pipe[any], edgeCounters []*uint64) error {
	indices := outboundEdgeIndices(g, id)
	if len(indices) == 0 {
		return nil
	}
	if len(indices) == 1 {
		counter := new(uint64)
		edgeCounters[indices[0]] = counter
		edgePipes[indices[0]] = stream.NewCounting[any](rawOut, counter, pc)
		return nil
	}

	mc := stream.NewMulticast[any](id+".branch", rawOut, len(indices), deps.branchCapacity)
	for _, idx := range indices {
		sub, err := mc.Subscribe()
		if err != nil {
			return err
		}
		counter := new(uint64)
		edgeCounters[idx] = counter
		edgePipes[idx] = stream.NewCounting[any](sub, counter, pc)
	}
	return nil
}

func collectEdgeCounts(g *PipelineGraph, edgeCounters []*uint64) map[string]uint64 {
	counts := make(map[string]uint64, len(g.Edges))
	for i, e := range g.Edges {
		key := fmt.Sprintf("%s->%s", e.SourceNodeID, e.TargetNodeID)
		if edgeCounters[i] != nil {
			counts[key] += *edgeCounters[i]
		}
	}
	return counts
}
