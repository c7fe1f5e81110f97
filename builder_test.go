package npipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npipeline/NPipeline-sub013/core"
)

func TestBuilder_DuplicateNameWithoutEarlyValidationBecomesBuildError(t *testing.T) {
	b := NewBuilder()
	AddSourceFunc[int](b, "foo", func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[int], error) {
		return nil, nil
	})
	AddSourceFunc[int](b, "foo", func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[int], error) {
		return nil, nil
	})

	_, errs := b.TryBuild()
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if e == nil {
			continue
		}
		if strings.Contains(e.Error(), "Node names must be unique") && strings.Contains(e.Error(), "foo") {
			found = true
		}
	}
	assert.True(t, found, "expected a validation error containing %q and %q, got %v", "Node names must be unique", "foo", errs)
}

func TestBuilder_DuplicateNameWithEarlyValidationPanics(t *testing.T) {
	b := NewBuilder().WithEarlyNameValidation()
	AddSourceFunc[int](b, "dup", func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[int], error) {
		return nil, nil
	})
	assert.Panics(t, func() {
		AddSourceFunc[int](b, "dup", func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[int], error) {
			return nil, nil
		})
	})
}

func TestBuilder_AddJoinRelabelsKindButBehavesAsTransform(t *testing.T) {
	b := NewBuilder()
	srcA := AddSourceFunc[int](b, "a", func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[int], error) {
		return nil, nil
	})
	srcB := AddSourceFunc[int](b, "b", func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[int], error) {
		return nil, nil
	})
	j := AddJoin[int, int](b, "merge", transformFunc[int, int](func(ctx context.Context, item int, pc core.PipelineProperties) (int, error) {
		return item, nil
	}))
	sink := AddSinkFunc[int](b, "sink", func(ctx context.Context, p core.Pipe[int], pc core.PipelineProperties) error {
		return nil
	})
	Connect[int](b, srcA.Out(), j.In())
	Connect[int](b, srcB.Out(), j.In())
	Connect[int](b, j.Out(), sink.In())

	g, err := b.Build()
	require.NoError(t, err)
	def := g.nodeByID(j.ID())
	require.NotNil(t, def)
	assert.Equal(t, core.KindJoin, def.Kind)
}

func TestBuilder_AddTapRelabelsKindButBehavesAsSink(t *testing.T) {
	b := NewBuilder()
	src := AddSourceFunc[int](b, "a", func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[int], error) {
		return nil, nil
	})
	tap := AddTap[int](b, "side-effect", sinkFunc[int](func(ctx context.Context, p core.Pipe[int], pc core.PipelineProperties) error {
		return nil
	}))
	main := AddSinkFunc[int](b, "main", func(ctx context.Context, p core.Pipe[int], pc core.PipelineProperties) error {
		return nil
	})
	Connect[int](b, src.Out(), tap.In())
	Connect[int](b, src.Out(), main.In())

	g, err := b.Build()
	require.NoError(t, err)
	def := g.nodeByID(tap.ID())
	require.NotNil(t, def)
	assert.Equal(t, core.KindTap, def.Kind)
}

func TestBuilder_AddBatchAndUnbatchWireIntoTypedHandles(t *testing.T) {
	b := NewBuilder()
	src := AddSourceFunc[int](b, "nums", func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[int], error) {
		return nil, nil
	})
	batch := AddBatch[int](b, "batch", 10, 0)
	unbatch := AddUnbatch[int](b, "unbatch")
	sink := AddSinkFunc[int](b, "sink", func(ctx context.Context, p core.Pipe[int], pc core.PipelineProperties) error {
		return nil
	})
	Connect[int](b, src.Out(), batch.In())
	Connect[[]int](b, batch.Out(), unbatch.In())
	Connect[int](b, unbatch.Out(), sink.In())

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, core.KindBatch, g.nodeByID(batch.ID()).Kind)
	assert.Equal(t, core.KindUnbatch, g.nodeByID(unbatch.ID()).Kind)
}

func TestBuilder_BlankNameGetsGeneratedID(t *testing.T) {
	b := NewBuilder()
	h := AddSourceFunc[int](b, "", func(ctx context.Context, pc core.PipelineProperties) (core.Pipe[int], error) {
		return nil, nil
	})
	assert.NotEmpty(t, h.ID())
}
