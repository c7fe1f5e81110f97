package nodeexec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/stream"
)

type doubleNode struct{}

func (doubleNode) ExecuteItem(ctx context.Context, item int, pc core.PipelineProperties) (int, error) {
	return item * 2, nil
}

type skipOddNode struct{}

func (skipOddNode) ExecuteItem(ctx context.Context, item int, pc core.PipelineProperties) (int, error) {
	if item%2 != 0 {
		return 0, ErrSkipItem
	}
	return item, nil
}

type failingNode struct{ boom error }

func (f failingNode) ExecuteItem(ctx context.Context, item int, pc core.PipelineProperties) (int, error) {
	return 0, f.boom
}

func TestSequential_AppliesNodeInOrder(t *testing.T) {
	in := stream.NewInMemory("ints", []int{1, 2, 3})
	out, err := Sequential[int, int]{}.Run(context.Background(), nil, doubleNode{}, in)
	require.NoError(t, err)

	ch, err := out.Open(context.Background())
	require.NoError(t, err)
	var got []int
	for it := range ch {
		require.NoError(t, it.Err)
		got = append(got, it.Value)
	}
	assert.Equal(t, []int{2, 4, 6}, got)
}

func TestSequential_DropsSkippedItems(t *testing.T) {
	in := stream.NewInMemory("ints", []int{1, 2, 3, 4})
	out, err := Sequential[int, int]{}.Run(context.Background(), nil, skipOddNode{}, in)
	require.NoError(t, err)

	ch, err := out.Open(context.Background())
	require.NoError(t, err)
	var got []int
	for it := range ch {
		require.NoError(t, it.Err)
		got = append(got, it.Value)
	}
	assert.Equal(t, []int{2, 4}, got)
}

func TestSequential_StopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	in := stream.NewInMemory("ints", []int{1, 2, 3})
	out, err := Sequential[int, int]{}.Run(context.Background(), nil, failingNode{boom: boom}, in)
	require.NoError(t, err)

	ch, err := out.Open(context.Background())
	require.NoError(t, err)
	it := <-ch
	assert.ErrorIs(t, it.Err, boom)
	_, stillOpen := <-ch
	assert.False(t, stillOpen)
}
