package npipeline

import (
	"fmt"

	"github.com/npipeline/NPipeline-sub013/core"
)

// Validate checks every structural invariant a PipelineGraph must hold
// before a Run can drive it: unique node ids, edges wired between nodes
// that actually exist and whose payload types agree, at least one
// source and one sink, every node reachable from a source, and no
// cycles (this engine is strictly a DAG). It collects every violation
// found rather than stopping at the first, grounded on the teacher's
// detectCycles/checkReachability/validateTypeCompatibility passes,
// adapted from the teacher's Event/Stage type model to generic payload
// types compared by reflect.Type equality.
func Validate(g *PipelineGraph) []error {
	var errs []error

	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if ids[n.ID] {
			errs = append(errs, core.ValidationError{Message: "duplicate node id", Details: n.ID})
			continue
		}
		ids[n.ID] = true
	}

	for _, e := range g.Edges {
		if !ids[e.SourceNodeID] {
			errs = append(errs, core.ValidationError{Message: "edge references unknown source node", Details: e.SourceNodeID})
		}
		if !ids[e.TargetNodeID] {
			errs = append(errs, core.ValidationError{Message: "edge references unknown target node", Details: e.TargetNodeID})
		}
	}
	if len(errs) > 0 {
		// Edges into nonexistent nodes make every later check meaningless.
		return errs
	}

	for _, e := range g.Edges {
		src := g.nodeByID(e.SourceNodeID)
		dst := g.nodeByID(e.TargetNodeID)
		if src.OutputType != nil && e.PayloadType != nil && src.OutputType != e.PayloadType {
			errs = append(errs, core.ValidationError{
				Message: "edge payload type does not match source node's output type",
				Details: fmt.Sprintf("%s -> %s: edge carries %s, source produces %s", e.SourceNodeID, e.TargetNodeID, e.PayloadType, src.OutputType),
			})
		}
		if dst.InputType != nil && e.PayloadType != nil && dst.InputType != e.PayloadType {
			errs = append(errs, core.ValidationError{
				Message: "edge payload type does not match target node's input type",
				Details: fmt.Sprintf("%s -> %s: edge carries %s, target accepts %s", e.SourceNodeID, e.TargetNodeID, e.PayloadType, dst.InputType),
			})
		}
	}

	for _, n := range g.Nodes {
		inbound := len(g.inboundEdges(n.ID))
		outbound := len(g.outboundEdges(n.ID))
		if n.Kind == core.KindSource && inbound > 0 {
			errs = append(errs, core.ValidationError{Message: "source node has inbound edges", Details: n.ID})
		}
		if n.Kind == core.KindSink && outbound > 0 {
			errs = append(errs, core.ValidationError{Message: "sink node has outbound edges", Details: n.ID})
		}
	}

	var sources, sinks, roots []string
	for _, n := range g.Nodes {
		if len(g.inboundEdges(n.ID)) == 0 {
			sources = append(sources, n.ID)
			// Only real sources seed reachability: a transform or sink with
			// no inbound edges is itself unreachable, not a root.
			if n.Kind == core.KindSource {
				roots = append(roots, n.ID)
			}
		}
		if len(g.outboundEdges(n.ID)) == 0 {
			sinks = append(sinks, n.ID)
		}
	}
	if len(g.Nodes) > 0 && len(sources) == 0 {
		errs = append(errs, core.ValidationError{Message: "graph has no source node (a node with zero inbound edges)"})
	}
	if len(g.Nodes) > 0 && len(sinks) == 0 {
		errs = append(errs, core.ValidationError{Message: "graph has no sink node (a node with zero outbound edges)"})
	}

	if cyc := detectCycle(g); cyc != nil {
		errs = append(errs, core.ValidationError{Message: "graph contains a cycle", Details: fmt.Sprintf("%v", cyc)})
		// A cycle makes reachability/topological-sort analysis meaningless.
		return errs
	}

	if unreachable := unreachableNodes(g, roots); len(unreachable) > 0 {
		errs = append(errs, core.ValidationError{Message: "graph has nodes unreachable from any source", Details: fmt.Sprintf("%v", unreachable)})
	}

	return errs
}

// detectCycle runs DFS with a recursion stack, returning the node ids of
// a discovered cycle (in visit order) or nil if the graph is acyclic.
func detectCycle(g *PipelineGraph) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Nodes))
	var stack []string
	var cyclePath []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, e := range g.outboundEdges(id) {
			switch color[e.TargetNodeID] {
			case gray:
				cyclePath = append(append([]string(nil), stack...), e.TargetNodeID)
				return true
			case white:
				if visit(e.TargetNodeID) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, n := range g.Nodes {
		if color[n.ID] == white {
			if visit(n.ID) {
				return cyclePath
			}
		}
	}
	return nil
}

// unreachableNodes returns the id of every node not reachable from any
// of roots by following outbound edges.
func unreachableNodes(g *PipelineGraph, roots []string) []string {
	visited := make(map[string]bool, len(g.Nodes))
	var queue []string
	queue = append(queue, roots...)
	for _, r := range roots {
		visited[r] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.outboundEdges(id) {
			if !visited[e.TargetNodeID] {
				visited[e.TargetNodeID] = true
				queue = append(queue, e.TargetNodeID)
			}
		}
	}
	var missing []string
	for _, n := range g.Nodes {
		if !visited[n.ID] {
			missing = append(missing, n.ID)
		}
	}
	return missing
}
