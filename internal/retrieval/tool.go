// Package retrieval exposes the chunk index to the agent as a search tool.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"docchat/internal/agent"
	"docchat/internal/domain"
	"docchat/internal/index"
)

// NotInitialized is returned in place of results when no index was built.
const NotInitialized = "Vector store is not initialized."

// ToolName is the name the model uses to call the tool.
const ToolName = "retrieve"

// Tool searches the index. It never returns an error to its caller.
type Tool struct {
	idx *index.Index
	k   int
	log *zap.Logger
}

// NewTool creates a retrieval tool over idx returning up to k chunks.
// A nil idx is allowed and yields the NotInitialized message.
func NewTool(idx *index.Index, k int, log *zap.Logger) *Tool {
	if k <= 0 {
		k = 2
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tool{idx: idx, k: k, log: log.Named("retrieval")}
}

// Retrieve returns the serialized top chunks for query and the raw results.
func (t *Tool) Retrieve(ctx context.Context, query string) (string, []domain.SearchResult) {
	if t.idx == nil {
		return NotInitialized, []domain.SearchResult{}
	}
	results, err := t.idx.Search(ctx, query, t.k)
	if err != nil {
		t.log.Warn("search failed", zap.String("query", query), zap.Error(err))
		return fmt.Sprintf("Retrieval failed: %v", err), []domain.SearchResult{}
	}
	t.log.Debug("search", zap.String("query", query), zap.Int("results", len(results)))
	return Serialize(results), results
}

// Serialize renders results as "Source: ...\nContent: ..." blocks separated
// by blank lines.
func Serialize(results []domain.SearchResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("Source: %s\nContent: %s", formatMetadata(r.Chunk.Metadata), r.Chunk.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// formatMetadata renders metadata as a JSON object with sorted keys.
// Integer-valued entries are emitted as numbers.
func formatMetadata(meta map[string]string) string {
	obj := make(map[string]any, len(meta))
	for k, v := range meta {
		if n, err := strconv.Atoi(v); err == nil {
			obj[k] = n
			continue
		}
		obj[k] = v
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Spec describes the tool to the model.
func (t *Tool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        ToolName,
		Description: "Retrieve information related to a query from the loaded documents.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to search the documents for.",
				},
			},
			"required": []string{"query"},
		},
	}
}

// Invoke runs Retrieve with the "query" argument.
func (t *Tool) Invoke(ctx context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	query, _ := req.Arguments["query"].(string)
	if strings.TrimSpace(query) == "" {
		return agent.ToolResponse{}, errors.New("query argument is required")
	}
	text, results := t.Retrieve(ctx, query)
	return agent.ToolResponse{
		Content:  text,
		Metadata: map[string]string{"results": strconv.Itoa(len(results))},
	}, nil
}
