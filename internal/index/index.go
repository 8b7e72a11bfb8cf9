// Package index builds the searchable chunk index used by retrieval.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"docchat/internal/domain"
	"docchat/internal/embedding"
	"docchat/internal/textutil"
	"docchat/internal/vectorstore"
)

// Index pairs an embedder with a populated store. It is read-only once built.
type Index struct {
	embedder embedding.Embedder
	store    vectorstore.Storage
	chunks   []domain.Chunk
}

// Build embeds every chunk and loads the store. An empty chunk list gives a
// valid, empty index without touching the embedder or the store.
func Build(ctx context.Context, chunks []domain.Chunk, emb embedding.Embedder, store vectorstore.Storage) (*Index, error) {
	idx := &Index{embedder: emb, store: store, chunks: chunks}
	if len(chunks) == 0 {
		return idx, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	if err := emb.Prepare(texts); err != nil {
		return nil, fmt.Errorf("prepare embedder: %w", err)
	}
	vectors, err := embedAll(ctx, emb, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	// Drop whatever a previous run left in a persistent store.
	if err := store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear store: %w", err)
	}
	if err := store.Init(ctx, len(vectors[0])); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := store.Upsert(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}
	return idx, nil
}

func embedAll(ctx context.Context, emb embedding.Embedder, texts []string) ([][]float64, error) {
	if b, ok := emb.(embedding.BatchEmbedder); ok {
		return b.EmbedBatch(ctx, texts)
	}
	vectors := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := emb.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Embedder returns the name and vector dimension of the embedder in use.
// The dimension is zero until chunks have been embedded.
func (i *Index) Embedder() (name string, dimension int) {
	return i.embedder.Name(), i.embedder.Dimension()
}

// Len returns the number of indexed chunks.
func (i *Index) Len() int { return len(i.chunks) }

// Search returns up to k chunks most similar to query. When the query embeds
// to a zero vector or every match scores zero, chunks are ranked by word
// overlap instead.
func (i *Index) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if len(i.chunks) == 0 {
		return []domain.SearchResult{}, nil
	}
	if k <= 0 {
		return nil, errors.New("k must be positive")
	}
	vec, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if isZero(vec) {
		return i.lexicalSearch(query, k), nil
	}
	res, err := i.store.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	allZero := true
	for _, r := range res {
		if r.Score > 1e-9 {
			allZero = false
			break
		}
	}
	if allZero {
		return i.lexicalSearch(query, k), nil
	}
	return res, nil
}

func (i *Index) lexicalSearch(query string, k int) []domain.SearchResult {
	qset := textutil.TermSet(query)
	out := make([]domain.SearchResult, len(i.chunks))
	for n, c := range i.chunks {
		out[n] = domain.SearchResult{Chunk: c, Score: ochiai(qset, textutil.TermSet(c.Text))}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if k < len(out) {
		out = out[:k]
	}
	return out
}

// ochiai is |A∩B| / sqrt(|A||B|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
