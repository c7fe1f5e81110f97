package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npipeline/NPipeline-sub013/core"
)

func TestStreaming_EmitsGeneratorValues(t *testing.T) {
	p := NewStreaming[int]("gen", func(ctx context.Context, emit func(int) bool) error {
		for _, v := range []int{1, 2, 3} {
			if !emit(v) {
				return nil
			}
		}
		return nil
	})

	ch, err := p.Open(context.Background())
	require.NoError(t, err)

	var got []int
	for it := range ch {
		require.NoError(t, it.Err)
		got = append(got, it.Value)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestStreaming_IsOneShot(t *testing.T) {
	p := NewStreaming[int]("gen", func(ctx context.Context, emit func(int) bool) error {
		emit(1)
		return nil
	})

	_, err := p.Open(context.Background())
	require.NoError(t, err)

	_, err = p.Open(context.Background())
	assert.Error(t, err)
}

func TestStreaming_SurfacesGeneratorError(t *testing.T) {
	boom := errors.New("boom")
	p := NewStreaming[int]("gen-err", func(ctx context.Context, emit func(int) bool) error {
		emit(1)
		return boom
	})

	ch, err := p.Open(context.Background())
	require.NoError(t, err)

	var items []core.Item[int]
	for it := range ch {
		items = append(items, it)
	}
	require.Len(t, items, 2)
	assert.NoError(t, items[0].Err)
	assert.Equal(t, 1, items[0].Value)
	assert.ErrorIs(t, items[1].Err, boom)
}
