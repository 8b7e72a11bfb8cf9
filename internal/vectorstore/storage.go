// Package vectorstore defines the similarity store used by the index.
package vectorstore

import (
	"context"

	"docchat/internal/domain"
)

// Storage persists vectors and supports similarity search. A store is
// filled once at startup and only searched afterwards.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error)
	Clear(ctx context.Context) error
}
