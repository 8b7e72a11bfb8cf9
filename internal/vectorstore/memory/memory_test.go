package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

func chunk(text string) domain.Chunk { return domain.Chunk{ID: text, Text: text} }

func TestStorage_InitRejectsBadDimension(t *testing.T) {
	assert.Error(t, NewStorage().Init(context.Background(), 0))
}

func TestStorage_SearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx,
		[]domain.Chunk{chunk("east"), chunk("north"), chunk("northeast")},
		[][]float64{{1, 0}, {0, 5}, {3, 3}},
	))
	assert.Equal(t, 3, s.Len())

	res, err := s.Search(ctx, []float64{0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "north", res[0].Chunk.Text)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	assert.Equal(t, "northeast", res[1].Chunk.Text)
}

func TestStorage_TopKLargerThanStore(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 1))
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{chunk("only")}, [][]float64{{1}}))

	res, err := s.Search(ctx, []float64{1}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestStorage_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 2))

	assert.Error(t, s.Upsert(ctx, []domain.Chunk{chunk("a")}, nil))
	assert.Error(t, s.Upsert(ctx, []domain.Chunk{chunk("a")}, [][]float64{{1, 2, 3}}))
	assert.Zero(t, s.Len())
}

func TestStorage_EmptySearchAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()

	res, err := s.Search(ctx, []float64{1, 0}, 2)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{chunk("a")}, [][]float64{{1, 0}}))
	require.NoError(t, s.Clear(ctx))
	assert.Zero(t, s.Len())
}
