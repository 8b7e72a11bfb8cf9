package chunker

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"docchat/internal/domain"
)

// MetaStartIndex is the metadata key holding a chunk's offset in its record.
const MetaStartIndex = "start_index"

// DefaultSeparators prefer paragraph breaks, then lines, then words, then
// arbitrary characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveSplitter splits text into windows of at most chunkSize runes that
// share up to overlap runes with their predecessor. It cuts at the coarsest
// separator that keeps pieces under the limit.
type RecursiveSplitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// span is a half-open rune range [lo, hi) of the text being split.
type span struct{ lo, hi int }

func (s span) len() int { return s.hi - s.lo }

// New creates a splitter. The overlap must be smaller than the chunk size.
func New(chunkSize, overlap int, separators ...string) (*RecursiveSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be in [0, %d)", overlap, chunkSize)
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	if separators[len(separators)-1] != "" {
		// Always end on a per-character split so no piece exceeds chunkSize.
		separators = append(append([]string(nil), separators...), "")
	}
	return &RecursiveSplitter{chunkSize: chunkSize, overlap: overlap, separators: separators}, nil
}

// SplitRecords splits every record and tags each chunk with the record's
// metadata plus its start offset.
func (s *RecursiveSplitter) SplitRecords(records []domain.Record) []domain.Chunk {
	var out []domain.Chunk
	for _, rec := range records {
		for i, c := range s.Split(rec.Content) {
			meta := make(map[string]string, len(rec.Metadata)+1)
			for k, v := range rec.Metadata {
				meta[k] = v
			}
			meta[MetaStartIndex] = strconv.Itoa(c.Offset)
			c.Index = i
			c.Metadata = meta
			c.ID = chunkID(rec.Metadata, c.Offset, c.Text)
			out = append(out, c)
		}
	}
	return out
}

// Split returns the chunks of text with Text and Offset set.
func (s *RecursiveSplitter) Split(text string) []domain.Chunk {
	runes := []rune(text)
	spans := s.split(runes, span{0, len(runes)}, s.separators)
	chunks := make([]domain.Chunk, 0, len(spans))
	for _, sp := range spans {
		sp = trim(runes, sp)
		if sp.len() == 0 {
			continue
		}
		chunks = append(chunks, domain.Chunk{Text: string(runes[sp.lo:sp.hi]), Offset: sp.lo})
	}
	return chunks
}

func (s *RecursiveSplitter) split(text []rune, whole span, separators []string) []span {
	sep := separators[len(separators)-1]
	var rest []string
	segment := string(text[whole.lo:whole.hi])
	for i, c := range separators {
		if c == "" {
			sep = ""
			break
		}
		if strings.Contains(segment, c) {
			sep = c
			rest = separators[i+1:]
			break
		}
	}

	var out, good []span
	for _, piece := range splitKeepSeparator(text, whole, sep) {
		if piece.len() < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, s.split(text, piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good)...)
	}
	return out
}

// merge packs contiguous pieces into windows no longer than chunkSize,
// carrying at most overlap runes of trailing context into the next window.
func (s *RecursiveSplitter) merge(pieces []span) []span {
	var out []span
	var cur []span
	total := 0
	for _, p := range pieces {
		if total+p.len() > s.chunkSize && len(cur) > 0 {
			out = append(out, span{cur[0].lo, cur[len(cur)-1].hi})
			for total > s.overlap || (total+p.len() > s.chunkSize && total > 0) {
				total -= cur[0].len()
				cur = cur[1:]
			}
		}
		cur = append(cur, p)
		total += p.len()
	}
	if len(cur) > 0 {
		out = append(out, span{cur[0].lo, cur[len(cur)-1].hi})
	}
	return out
}

// splitKeepSeparator cuts whole before every occurrence of sep, so each
// piece after the first starts with the separator. An empty sep yields one
// piece per rune. Empty pieces are dropped.
func splitKeepSeparator(text []rune, whole span, sep string) []span {
	if sep == "" {
		out := make([]span, 0, whole.len())
		for i := whole.lo; i < whole.hi; i++ {
			out = append(out, span{i, i + 1})
		}
		return out
	}
	needle := []rune(sep)
	var out []span
	start := whole.lo
	for i := whole.lo + 1; i+len(needle) <= whole.hi; i++ {
		if !hasPrefix(text[i:], needle) {
			continue
		}
		out = append(out, span{start, i})
		start = i
		i += len(needle) - 1
	}
	if start < whole.hi {
		out = append(out, span{start, whole.hi})
	}
	return out
}

func hasPrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}

func trim(text []rune, sp span) span {
	for sp.lo < sp.hi && unicode.IsSpace(text[sp.lo]) {
		sp.lo++
	}
	for sp.hi > sp.lo && unicode.IsSpace(text[sp.hi-1]) {
		sp.hi--
	}
	return sp
}

// chunkID is stable across runs for the same source, offset and text, and
// is a valid UUID so remote stores accept it as a point ID.
func chunkID(meta map[string]string, offset int, text string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(meta[k])
		b.WriteByte(';')
	}
	b.WriteString(strconv.Itoa(offset))
	b.WriteByte(';')
	b.WriteString(text)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(b.String())).String()
}
