package domain

import "context"

// Record is one text-bearing unit parsed from a local document, such as a PDF page.
type Record struct {
	Content  string
	Metadata map[string]string
}

// Chunk is a bounded window of a Record's text used for indexing.
// Offset is the rune offset of Text within the originating record.
type Chunk struct {
	ID       string
	Text     string
	Offset   int
	Index    int
	Metadata map[string]string
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Role tags the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one role-tagged message in a conversation.
type Turn struct {
	Role    Role
	Content string
}

// AgentEvent is a snapshot of the agent's message list after one step.
// Err is set on the final event when the run failed.
type AgentEvent struct {
	Messages []Turn
	Err      error
}

// Agent answers a conversation, possibly calling tools along the way.
// The returned channel is closed when the run is over.
type Agent interface {
	Stream(ctx context.Context, messages []Turn) (<-chan AgentEvent, error)
}

// Chunker splits records into chunks suitable for retrieval indexing.
type Chunker interface {
	SplitRecords(records []Record) []Chunk
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
