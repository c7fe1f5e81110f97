package npipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/nodeexec"
	"github.com/npipeline/NPipeline-sub013/pipelinectx"
	"github.com/npipeline/NPipeline-sub013/resilience"
	"github.com/npipeline/NPipeline-sub013/stream"
)

// runtimeDeps is the set of run-scoped collaborators a node's runtime
// closure needs that it cannot capture at registration time, because
// they are only known once a Run begins: the breaker manager, the
// null-coercion observer, and the per-join/per-branch buffer sizes a
// run may override via annotations.
type runtimeDeps struct {
	mergeCapacity  int
	branchCapacity int
	breakers       *resilience.Manager
	nullObserver   stream.NullCoercionObserver
}

// nodeRuntime is the type-erased closure set a generic Add* call leaves
// behind for the coordinator to drive; it is the one place reflection
// would otherwise be needed, and it is avoided entirely because each
// closure closes over its own concrete type parameters at registration
// time.
type nodeRuntime struct {
	initSource   func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[any], error)
	runTransform func(ctx context.Context, pc core.PipelineProperties, deps runtimeDeps, ins []core.Pipe[any]) (core.Pipe[any], error)
	runSink      func(ctx context.Context, pc core.PipelineProperties, deps runtimeDeps, ins []core.Pipe[any]) error
}

// PipelineBuilder assembles a PipelineGraph with a fluent, type-safe API.
// Free generic functions (AddSource, AddTransform, AddSink, ...) do the
// registering, since Go does not allow generic methods; each returns a
// typed handle whose Out()/In() ports Connect wires together.
type PipelineBuilder struct {
	mu sync.Mutex

	earlyNameValidation bool
	byCanonical         map[string]string
	pendingErrors       []error

	nodes       []NodeDefinition
	edges       []Edge
	runtimes    map[string]nodeRuntime
	nodeConfigs map[string]*nodeConfig
	annotations map[string]string
	disposables []pipelinectx.Disposable
}

func NewBuilder() *PipelineBuilder {
	return &PipelineBuilder{
		byCanonical: make(map[string]string),
		runtimes:    make(map[string]nodeRuntime),
		nodeConfigs: make(map[string]*nodeConfig),
		annotations: make(map[string]string),
	}
}

// WithEarlyNameValidation makes a duplicate node name panic immediately
// at the offending Add* call instead of surfacing at Build(). Off by
// default so generated code assembling many nodes in a loop can let
// duplicates surface as an ordinary TryBuild error instead of a panic.
func (b *PipelineBuilder) WithEarlyNameValidation() *PipelineBuilder {
	b.earlyNameValidation = true
	return b
}

// SetAnnotation attaches a global key/value pair nodes can read back via
// PipelineProperties.Property under the "global." prefix once a run
// starts.
func (b *PipelineBuilder) SetAnnotation(key, value string) *PipelineBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.annotations[key] = value
	return b
}

// registerNode allocates a node id for name, detecting collisions. The
// returned id is always safe to use as a map key and NodeDefinition.ID,
// even when name collided and had to be disambiguated.
func (b *PipelineBuilder) registerNode(name string, kind core.NodeKind, def NodeDefinition) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	canonical := strings.ToLower(strings.TrimSpace(name))
	if canonical == "" {
		name = fmt.Sprintf("%s-%d", kind, len(b.nodes))
		canonical = strings.ToLower(name)
	}
	if existing, ok := b.byCanonical[canonical]; ok {
		err := core.ValidationError{
			Message: "Node names must be unique",
			Details: fmt.Sprintf("%q collides with already-registered node %q", name, existing),
		}
		if b.earlyNameValidation {
			panic(err)
		}
		b.pendingErrors = append(b.pendingErrors, err)
		name = fmt.Sprintf("%s#%d", name, len(b.nodes))
		canonical = strings.ToLower(name)
	}
	b.byCanonical[canonical] = name

	def.ID = name
	if def.DisplayName == "" {
		def.DisplayName = name
	}
	def.Kind = kind
	b.nodes = append(b.nodes, def)
	return name
}

func (b *PipelineBuilder) setRuntime(id string, rt nodeRuntime) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runtimes[id] = rt
}

func (b *PipelineBuilder) setConfig(id string, cfg *nodeConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodeConfigs[id] = cfg
}

func (b *PipelineBuilder) setKind(id string, kind core.NodeKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.nodes {
		if b.nodes[i].ID == id {
			b.nodes[i].Kind = kind
			return
		}
	}
}

// maybeRegisterDisposable captures v as a run-scoped Disposable when it
// implements the interface, so a source/transform/sink holding a real
// resource (a file, a connection) does not need the caller to track it
// separately.
func (b *PipelineBuilder) maybeRegisterDisposable(v any) {
	d, ok := v.(pipelinectx.Disposable)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disposables = append(b.disposables, d)
}

func applyOptions(opts []NodeOption) *nodeConfig {
	cfg := &nodeConfig{baseStrategy: core.StrategySequential}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// mergeAndUnbox turns a node's inbound erased pipes into one typed
// Pipe[T]: a single inbound edge passes through Unbox directly; two or
// more are merged by arrival order via nodeexec.Join first. This is the
// one place the "join is a structural consequence of edge cardinality"
// design decision is actually implemented.
func mergeAndUnbox[T any](name string, ins []core.Pipe[any], deps runtimeDeps) (core.Pipe[T], error) {
	switch len(ins) {
	case 0:
		return nil, fmt.Errorf("node %q: no inbound pipes to read from", name)
	case 1:
		return stream.Unbox[T](ins[0], deps.nullObserver), nil
	default:
		cap := deps.mergeCapacity
		joined, err := nodeexec.Join(context.Background(), name+".join", ins, cap)
		if err != nil {
			return nil, err
		}
		return stream.Unbox[T](joined, deps.nullObserver), nil
	}
}

// wrapNode layers the Resilient and WithErrorHandler decorators around
// node according to cfg, in that order: error-handler rules see
// RetryExhaustedError/CircuitBreakerOpenError the same as any other
// error, exactly as spec'd for the two loops composing.
func wrapNode[In, Out any](nodeID string, node core.TransformNode[In, Out], cfg *nodeConfig, deps runtimeDeps) (core.TransformNode[In, Out], error) {
	wrapped := node

	if cfg.retry != nil || cfg.breaker != nil {
		var policy *resilience.RetryPolicy
		if cfg.retry != nil {
			policy = resilience.NewRetryPolicy(*cfg.retry)
		}
		var breaker *resilience.CircuitBreaker
		if cfg.breaker != nil {
			if deps.breakers == nil {
				return nil, fmt.Errorf("node %q: circuit breaker configured but no manager available for this run", nodeID)
			}
			cb, err := deps.breakers.Get(nodeID)
			if err != nil {
				return nil, err
			}
			breaker = cb
		}
		wrapped = &nodeexec.Resilient[In, Out]{NodeID: nodeID, Inner: wrapped, Retry: policy, Breaker: breaker}
	}

	if cfg.handler != nil {
		var policy *resilience.RetryPolicy
		if cfg.retry != nil {
			policy = resilience.NewRetryPolicy(*cfg.retry)
		}
		wrapped = &nodeexec.WithErrorHandler[In, Out]{
			NodeID:     nodeID,
			Inner:      wrapped,
			Handler:    cfg.handler,
			Retry:      policy,
			DeadLetter: cfg.deadLetter,
		}
	}

	return wrapped, nil
}

// runStrategy dispatches to the base execution strategy a NodeOption
// selected. Resilient/error-handler are not strategies: they already
// wrapped node before this call, via wrapNode.
func runStrategy[In, Out any](ctx context.Context, pc core.PipelineProperties, cfg *nodeConfig, node core.TransformNode[In, Out], in core.Pipe[In]) (core.Pipe[Out], error) {
	switch cfg.baseStrategy {
	case core.StrategyParallelPerItem:
		degree := cfg.options.Degree
		if degree < 1 {
			degree = 1
		}
		return nodeexec.ParallelPerItem[In, Out]{Degree: degree}.Run(ctx, pc, node, in)
	default:
		return nodeexec.Sequential[In, Out]{}.Run(ctx, pc, node, in)
	}
}

// AddSource registers a source node and returns a handle whose Out()
// port Connect wires to downstream transforms/sinks.
func AddSource[Out any](b *PipelineBuilder, name string, node core.SourceNode[Out]) SourceHandle[Out] {
	id := b.registerNode(name, core.KindSource, NodeDefinition{OutputType: typeOf[Out]()})
	b.maybeRegisterDisposable(node)
	b.setRuntime(id, nodeRuntime{
		initSource: func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[any], error) {
			p, err := node.Initialize(ctx, pc)
			if err != nil {
				return nil, err
			}
			return stream.Box[Out](p), nil
		},
	})
	return SourceHandle[Out]{id: id}
}

type sourceFunc[Out any] func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[Out], error)

func (f sourceFunc[Out]) Initialize(ctx context.Context, pc core.PipelineProperties) (core.Pipe[Out], error) {
	return f(ctx, pc)
}

// AddSourceFunc is the functional-literal form of AddSource.
func AddSourceFunc[Out any](b *PipelineBuilder, name string, fn func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[Out], error)) SourceHandle[Out] {
	return AddSource[Out](b, name, sourceFunc[Out](fn))
}

// AddTransform registers a transform node. opts configures parallelism,
// retry, circuit breaking, and per-item error handling; all are optional
// decorators composed by wrapNode around node before the chosen base
// strategy drives it.
func AddTransform[In, Out any](b *PipelineBuilder, name string, node core.TransformNode[In, Out], opts ...NodeOption) TransformHandle[In, Out] {
	id := b.registerNode(name, core.KindTransform, NodeDefinition{InputType: typeOf[In](), OutputType: typeOf[Out]()})
	b.maybeRegisterDisposable(node)
	cfg := applyOptions(opts)
	b.setConfig(id, cfg)
	b.setRuntime(id, nodeRuntime{
		runTransform: func(ctx context.Context, pc core.PipelineProperties, deps runtimeDeps, ins []core.Pipe[any]) (core.Pipe[any], error) {
			merged, err := mergeAndUnbox[In](id, ins, deps)
			if err != nil {
				return nil, err
			}
			wrapped, err := wrapNode[In, Out](id, node, cfg, deps)
			if err != nil {
				return nil, err
			}
			out, err := runStrategy[In, Out](ctx, pc, cfg, wrapped, merged)
			if err != nil {
				return nil, err
			}
			return stream.Box[Out](out), nil
		},
	})
	return TransformHandle[In, Out]{id: id}
}

type transformFunc[In, Out any] func(ctx context.Context, item In, pc core.PipelineProperties) (Out, error)

func (f transformFunc[In, Out]) ExecuteItem(ctx context.Context, item In, pc core.PipelineProperties) (Out, error) {
	return f(ctx, item, pc)
}

// AddTransformFunc is the functional-literal form of AddTransform.
func AddTransformFunc[In, Out any](b *PipelineBuilder, name string, fn func(ctx context.Context, item In, pc core.PipelineProperties) (Out, error), opts ...NodeOption) TransformHandle[In, Out] {
	return AddTransform[In, Out](b, name, transformFunc[In, Out](fn), opts...)
}

// AddSink registers a sink node. Sinks do not accept NodeOptions:
// Execute drains a whole pipe in one call, so the per-item retry/
// error-handler machinery that wraps a TransformNode has no matching
// hook to attach to here.
func AddSink[In any](b *PipelineBuilder, name string, node core.SinkNode[In]) SinkHandle[In] {
	id := b.registerNode(name, core.KindSink, NodeDefinition{InputType: typeOf[In]()})
	b.maybeRegisterDisposable(node)
	b.setRuntime(id, nodeRuntime{
		runSink: func(ctx context.Context, pc core.PipelineProperties, deps runtimeDeps, ins []core.Pipe[any]) error {
			merged, err := mergeAndUnbox[In](id, ins, deps)
			if err != nil {
				return err
			}
			return node.Execute(ctx, merged, pc)
		},
	})
	return SinkHandle[In]{id: id}
}

type sinkFunc[In any] func(ctx context.Context, p core.Pipe[In], pc core.PipelineProperties) error

func (f sinkFunc[In]) Execute(ctx context.Context, p core.Pipe[In], pc core.PipelineProperties) error {
	return f(ctx, p, pc)
}

// AddSinkFunc is the functional-literal form of AddSink.
func AddSinkFunc[In any](b *PipelineBuilder, name string, fn func(ctx context.Context, p core.Pipe[In], pc core.PipelineProperties) error) SinkHandle[In] {
	return AddSink[In](b, name, sinkFunc[In](fn))
}

// AddJoin is a cosmetic alias of AddTransform: it runs exactly the same
// way (including picking up ≥2 inbound edges automatically via
// mergeAndUnbox), but is labeled KindJoin in the compiled graph so
// diagnostics and the topology visualization can tell "this transform
// exists to combine branches" apart from an ordinary single-input one.
func AddJoin[In, Out any](b *PipelineBuilder, name string, node core.TransformNode[In, Out], opts ...NodeOption) TransformHandle[In, Out] {
	h := AddTransform[In, Out](b, name, node, opts...)
	b.setKind(h.ID(), core.KindJoin)
	return h
}

// AddTap is a cosmetic alias of AddSink, labeled KindTap: a side-effect
// sink hanging off a branch (one of several consumers of a multicast
// output) rather than the pipeline's primary terminal node.
func AddTap[In any](b *PipelineBuilder, name string, node core.SinkNode[In]) SinkHandle[In] {
	h := AddSink[In](b, name, node)
	b.setKind(h.ID(), core.KindTap)
	return h
}

// AddBatch groups items by size/timeout into []T. It bypasses the
// strategy/resilience/error-handler machinery entirely: there is no
// user ExecuteItem call to wrap, just a pure stream reshape.
func AddBatch[T any](b *PipelineBuilder, name string, size int, timeout time.Duration) TransformHandle[T, []T] {
	id := b.registerNode(name, core.KindBatch, NodeDefinition{InputType: typeOf[T](), OutputType: typeOf[[]T]()})
	b.setRuntime(id, nodeRuntime{
		runTransform: func(ctx context.Context, pc core.PipelineProperties, deps runtimeDeps, ins []core.Pipe[any]) (core.Pipe[any], error) {
			merged, err := mergeAndUnbox[T](id, ins, deps)
			if err != nil {
				return nil, err
			}
			out, err := (nodeexec.Batch[T]{BatchSize: size, Timeout: timeout}).Run(ctx, merged)
			if err != nil {
				return nil, err
			}
			return stream.Box[[]T](out), nil
		},
	})
	return TransformHandle[T, []T]{id: id}
}

// AddUnbatch flattens []T back into individual T items, preserving order.
func AddUnbatch[T any](b *PipelineBuilder, name string) TransformHandle[[]T, T] {
	id := b.registerNode(name, core.KindUnbatch, NodeDefinition{InputType: typeOf[[]T](), OutputType: typeOf[T]()})
	b.setRuntime(id, nodeRuntime{
		runTransform: func(ctx context.Context, pc core.PipelineProperties, deps runtimeDeps, ins []core.Pipe[any]) (core.Pipe[any], error) {
			merged, err := mergeAndUnbox[[]T](id, ins, deps)
			if err != nil {
				return nil, err
			}
			out, err := (nodeexec.Unbatch[T]{}).Run(ctx, merged)
			if err != nil {
				return nil, err
			}
			return stream.Box[T](out), nil
		},
	})
	return TransformHandle[[]T, T]{id: id}
}

// Connect wires from's output to to's input. The shared type parameter T
// is what makes a payload-type mismatch a compile error here instead of
// a Validate() failure discovered later.
func Connect[T any](b *PipelineBuilder, from outPort[T], to inPort[T]) *PipelineBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edges = append(b.edges, Edge{SourceNodeID: from.id, TargetNodeID: to.id, PayloadType: typeOf[T]()})
	return b
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// TryBuild compiles the graph and runs Validate, returning every error
// found (pending registration errors plus validation errors) instead of
// stopping at the first one.
func (b *PipelineBuilder) TryBuild() (*PipelineGraph, []error) {
	b.mu.Lock()
	g := &PipelineGraph{
		Nodes:       append([]NodeDefinition(nil), b.nodes...),
		Edges:       append([]Edge(nil), b.edges...),
		Annotations: copyStringMap(b.annotations),
		runtimes:    make(map[string]nodeRuntime, len(b.runtimes)),
		nodeConfigs: make(map[string]*nodeConfig, len(b.nodeConfigs)),
		disposables: append([]pipelinectx.Disposable(nil), b.disposables...),
	}
	for k, v := range b.runtimes {
		g.runtimes[k] = v
	}
	for k, v := range b.nodeConfigs {
		g.nodeConfigs[k] = v
	}
	errs := append([]error(nil), b.pendingErrors...)
	b.mu.Unlock()

	errs = append(errs, Validate(g)...)
	if len(errs) > 0 {
		return nil, errs
	}
	return g, nil
}

// Build compiles the graph, returning the first error encountered (name
// collisions first, then validation) if any.
func (b *PipelineBuilder) Build() (*PipelineGraph, error) {
	g, errs := b.TryBuild()
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return g, nil
}
