package tfidf

import (
	"context"
	"errors"
	"math"
	"sort"

	"docchat/internal/textutil"
)

// Embedder implements a simple TF-IDF vectorizer for offline use.
// It builds a vocabulary from the chunk corpus and computes smoothed IDF
// values; text made only of unseen terms embeds to the zero vector.
type Embedder struct {
	vocabulary map[string]int
	idf        []float64
}

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder { return &Embedder{} }

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, term := range textutil.Terms(text) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}
	if len(df) == 0 {
		return errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	for i, term := range terms {
		e.vocabulary[term] = i
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	return nil
}

// Dimension returns the vocabulary size, or 0 before Prepare.
func (e *Embedder) Dimension() int { return len(e.idf) }

// Embed computes the L2-normalized TF-IDF embedding for the given text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	if e.vocabulary == nil {
		return nil, errors.New("tfidf embedder not prepared")
	}
	vec := make([]float64, len(e.idf))
	counts := make(map[int]int)
	total := 0
	for _, term := range textutil.Terms(text) {
		if idx, ok := e.vocabulary[term]; ok {
			counts[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	var norm float64
	for idx, c := range counts {
		vec[idx] = float64(c) / float64(total) * e.idf[idx]
		norm += vec[idx] * vec[idx]
	}
	norm = math.Sqrt(norm)
	for idx := range counts {
		vec[idx] /= norm
	}
	return vec, nil
}
