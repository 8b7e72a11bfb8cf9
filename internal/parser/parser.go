// Package parser turns local document files into text records.
package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"docchat/internal/domain"
)

// ErrUnsupported is returned for files no registered parser handles.
var ErrUnsupported = errors.New("unsupported document type")

// Metadata keys attached to every record.
const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
)

// Parser converts one local file into zero or more records.
type Parser interface {
	Parse(path string) ([]domain.Record, error)
	Extensions() []string
}

// Registry dispatches files to parsers by extension.
type Registry struct {
	byExt map[string]Parser
	log   *zap.Logger
}

// NewRegistry registers the given parsers. Later parsers win on conflicts.
func NewRegistry(log *zap.Logger, parsers ...Parser) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{byExt: make(map[string]Parser), log: log}
	for _, p := range parsers {
		for _, ext := range p.Extensions() {
			r.byExt[strings.ToLower(ext)] = p
		}
	}
	return r
}

// NewDefaultRegistry handles PDF and plain text files.
func NewDefaultRegistry(log *zap.Logger) *Registry {
	return NewRegistry(log, NewPDFParser(), NewTextParser())
}

// Parse parses a single file with the parser registered for its extension.
func (r *Registry) Parse(path string) ([]domain.Record, error) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	return p.Parse(path)
}

// ParseAll parses every path and concatenates the records in input order.
// A file that fails to parse is logged and skipped.
func (r *Registry) ParseAll(paths []string) []domain.Record {
	r.log.Info("loading documents", zap.Int("files", len(paths)))
	var all []domain.Record
	for _, p := range paths {
		r.log.Debug("loading", zap.String("path", p))
		records, err := r.Parse(p)
		if err != nil {
			r.log.Warn("parse failed", zap.String("path", p), zap.Error(err))
			continue
		}
		all = append(all, records...)
	}
	return all
}
