package summarizer

import (
	"math"
	"sort"
	"strings"

	"docchat/internal/textutil"
)

// FrequencySummarizer picks the sentences whose content words occur most
// often across the whole text.
type FrequencySummarizer struct{}

// NewFrequencySummarizer creates a frequency-based extractive summarizer.
func NewFrequencySummarizer() *FrequencySummarizer { return &FrequencySummarizer{} }

// Summarize returns up to maxSentences sentences of text in their original
// order. Text without sentence punctuation is returned trimmed.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	terms := make([][]string, len(sentences))
	freq := map[string]float64{}
	maxF := 0.0
	for i, sent := range sentences {
		terms[i] = textutil.Terms(sent)
		for _, t := range terms[i] {
			freq[t]++
			maxF = math.Max(maxF, freq[t])
		}
	}

	type ranked struct {
		idx   int
		score float64
	}
	scores := make([]ranked, len(sentences))
	for i := range sentences {
		score := 0.0
		for _, t := range terms[i] {
			score += freq[t] / maxF
		}
		// Dampen long sentences.
		if n := len(textutil.Words(sentences[i])); n > 0 {
			score /= math.Sqrt(float64(n))
		}
		scores[i] = ranked{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(maxSentences, len(scores))
	picked := make([]int, n)
	for i := range picked {
		picked[i] = scores[i].idx
	}
	sort.Ints(picked)
	out := make([]string, n)
	for i, idx := range picked {
		out[i] = strings.TrimSpace(sentences[idx])
	}
	return strings.Join(out, " "), nil
}
