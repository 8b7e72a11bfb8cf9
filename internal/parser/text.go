package parser

import (
	"os"
	"strings"

	"docchat/internal/domain"
)

// TextParser reads plain text and markdown files as a single record.
type TextParser struct{}

// NewTextParser creates a new plain text parser.
func NewTextParser() *TextParser { return &TextParser{} }

// Extensions returns the file extensions handled by this parser.
func (p *TextParser) Extensions() []string { return []string{".txt", ".md"} }

// Parse returns the file content with normalized line endings.
func (p *TextParser) Parse(path string) ([]domain.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return []domain.Record{{
		Content:  content,
		Metadata: map[string]string{MetaSource: path},
	}}, nil
}
