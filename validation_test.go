package npipeline

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/npipeline/NPipeline-sub013/core"
)

func nodeDef(id string, kind core.NodeKind, in, out reflect.Type) NodeDefinition {
	return NodeDefinition{ID: id, DisplayName: id, Kind: kind, InputType: in, OutputType: out}
}

func TestValidate_DetectsCycle(t *testing.T) {
	intType := typeOf[int]()
	g := &PipelineGraph{
		Nodes: []NodeDefinition{
			nodeDef("a", core.KindTransform, intType, intType),
			nodeDef("b", core.KindTransform, intType, intType),
		},
		Edges: []Edge{
			{SourceNodeID: "a", TargetNodeID: "b", PayloadType: intType},
			{SourceNodeID: "b", TargetNodeID: "a", PayloadType: intType},
		},
	}
	errs := Validate(g)
	requireNotEmpty(t, errs)
	assertAnyContains(t, errs, "cycle")
}

func TestValidate_DetectsUnreachableNode(t *testing.T) {
	intType := typeOf[int]()
	g := &PipelineGraph{
		Nodes: []NodeDefinition{
			nodeDef("src", core.KindSource, nil, intType),
			nodeDef("sink", core.KindSink, intType, nil),
			nodeDef("orphan", core.KindTransform, intType, intType),
		},
		Edges: []Edge{
			{SourceNodeID: "src", TargetNodeID: "sink", PayloadType: intType},
		},
	}
	errs := Validate(g)
	assertAnyContains(t, errs, "unreachable")
}

func TestValidate_DetectsPayloadTypeMismatch(t *testing.T) {
	intType := typeOf[int]()
	stringType := typeOf[string]()
	g := &PipelineGraph{
		Nodes: []NodeDefinition{
			nodeDef("src", core.KindSource, nil, intType),
			nodeDef("sink", core.KindSink, stringType, nil),
		},
		Edges: []Edge{
			{SourceNodeID: "src", TargetNodeID: "sink", PayloadType: intType},
		},
	}
	errs := Validate(g)
	assertAnyContains(t, errs, "does not match")
}

func TestValidate_NoSourceOrSinkReported(t *testing.T) {
	// Every node has both an inbound and an outbound edge; a DAG always has
	// at least one node with zero in-degree, so a graph with none is
	// necessarily cyclic too, and both errors are expected together.
	intType := typeOf[int]()
	g := &PipelineGraph{
		Nodes: []NodeDefinition{
			nodeDef("a", core.KindTransform, intType, intType),
			nodeDef("b", core.KindTransform, intType, intType),
			nodeDef("c", core.KindTransform, intType, intType),
		},
		Edges: []Edge{
			{SourceNodeID: "a", TargetNodeID: "b", PayloadType: intType},
			{SourceNodeID: "b", TargetNodeID: "c", PayloadType: intType},
			{SourceNodeID: "c", TargetNodeID: "a", PayloadType: intType},
		},
	}
	errs := Validate(g)
	assertAnyContains(t, errs, "no source node")
	assertAnyContains(t, errs, "no sink node")
	assertAnyContains(t, errs, "cycle")
}

func TestValidate_ValidGraphHasNoErrors(t *testing.T) {
	intType := typeOf[int]()
	g := &PipelineGraph{
		Nodes: []NodeDefinition{
			nodeDef("src", core.KindSource, nil, intType),
			nodeDef("xform", core.KindTransform, intType, intType),
			nodeDef("sink", core.KindSink, intType, nil),
		},
		Edges: []Edge{
			{SourceNodeID: "src", TargetNodeID: "xform", PayloadType: intType},
			{SourceNodeID: "xform", TargetNodeID: "sink", PayloadType: intType},
		},
	}
	errs := Validate(g)
	assert.Empty(t, errs)
}

func requireNotEmpty(t *testing.T, errs []error) {
	t.Helper()
	if len(errs) == 0 {
		t.Fatalf("expected at least one validation error, got none")
	}
}

func assertAnyContains(t *testing.T, errs []error, substr string) {
	t.Helper()
	for _, e := range errs {
		if e != nil && strings.Contains(strings.ToLower(e.Error()), strings.ToLower(substr)) {
			return
		}
	}
	t.Fatalf("expected an error containing %q, got %v", substr, errs)
}
