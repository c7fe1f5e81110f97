// Package npipeline is a typed, directed-acyclic dataflow pipeline
// execution engine: declare sources, transforms, and sinks with a
// type-safe builder, connect them with Connect, and Run the compiled
// graph. Fan-out (multiple consumers of one producer) and fan-in (a node
// fed by more than one edge) are structural consequences of how many
// times a node's Out()/In() port is wired, not separate builder
// primitives: wiring one output to two inputs gets a multicast for free,
// wiring two outputs into one input gets a join for free.
package npipeline

import (
	"reflect"

	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/pipelinectx"
)

// NodeDefinition is one compiled node: its identity, role, and declared
// payload types (for diagnostics; the actual type safety is enforced at
// the Go compiler level through the generic Add*/Connect calls that
// produced it). Per-node execution tuning is kept apart from it, in the
// graph's unexported nodeConfigs.
type NodeDefinition struct {
	ID          string
	DisplayName string
	Kind        core.NodeKind
	InputType   reflect.Type
	OutputType  reflect.Type
}

// Edge is one compiled connection between two nodes' ports.
type Edge struct {
	SourceNodeID string
	TargetNodeID string
	PayloadType  reflect.Type
}

// PipelineGraph is the compiled, validated topology a Run executes.
// Instances are produced by PipelineBuilder.Build/TryBuild; the runtime
// fields are unexported and populated by the builder alongside Nodes/Edges.
type PipelineGraph struct {
	Nodes       []NodeDefinition
	Edges       []Edge
	Annotations map[string]string

	runtimes    map[string]nodeRuntime
	nodeConfigs map[string]*nodeConfig
	disposables []pipelinectx.Disposable
}

func (g *PipelineGraph) nodeByID(id string) *NodeDefinition {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

func (g *PipelineGraph) inboundEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.TargetNodeID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

func (g *PipelineGraph) outboundEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.SourceNodeID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
