// Package textutil holds the word tokenizer shared by the offline embedder,
// the summarizer and lexical retrieval.
package textutil

import (
	"regexp"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// Words returns the lowercased words of s, stopwords included.
func Words(s string) []string {
	return wordRe.FindAllString(strings.ToLower(s), -1)
}

// Terms returns the lowercased words of s with stopwords removed.
func Terms(s string) []string {
	words := Words(s)
	out := words[:0]
	for _, w := range words {
		if !IsStopword(w) {
			out = append(out, w)
		}
	}
	return out
}

// TermSet returns the distinct words of s.
func TermSet(s string) map[string]struct{} {
	words := Words(s)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// IsStopword reports whether w is a common English function word.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

// Sentences splits s on terminal punctuation. Text without any yields nil.
func Sentences(s string) []string {
	return sentenceRe.FindAllString(s, -1)
}
