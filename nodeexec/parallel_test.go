package nodeexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npipeline/NPipeline-sub013/core"
	"github.com/npipeline/NPipeline-sub013/stream"
)

type jitteredDouble struct{}

func (jitteredDouble) ExecuteItem(ctx context.Context, item int, pc core.PipelineProperties) (int, error) {
	// no real sleep; exercising concurrency without making the test slow
	return item * 2, nil
}

func TestParallelPerItem_PreservesInputOrder(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}
	in := stream.NewInMemory("ints", items)
	strat := ParallelPerItem[int, int]{Degree: 8}
	out, err := strat.Run(context.Background(), nil, jitteredDouble{}, in)
	require.NoError(t, err)

	ch, err := out.Open(context.Background())
	require.NoError(t, err)
	var got []int
	for it := range ch {
		require.NoError(t, it.Err)
		got = append(got, it.Value)
	}
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i*2, v)
	}
}

func TestParallelPerItem_DropsSkippedItemsPreservingRemainingOrder(t *testing.T) {
	in := stream.NewInMemory("ints", []int{1, 2, 3, 4, 5})
	strat := ParallelPerItem[int, int]{Degree: 4}
	out, err := strat.Run(context.Background(), nil, skipOddNode{}, in)
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

func TestParallelPerItem_DegreeLessThanOneDefaultsToOne(t *testing.T) {
	in := stream.NewInMemory("ints", []int{1, 2, 3})
	strat := ParallelPerItem[int, int]{Degree: 0}
	out, err := strat.Run(context.Background(), nil, doubleNode{}, in)
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
