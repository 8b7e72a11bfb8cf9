// Package service wires the startup ingestion pipeline: read URLs, fetch,
// parse, split, index and summarize.
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"docchat/internal/domain"
	"docchat/internal/embedding"
	"docchat/internal/index"
	"docchat/internal/source"
	"docchat/internal/vectorstore"
)

// Fetcher downloads URLs into a directory and returns the local paths.
type Fetcher interface {
	Fetch(ctx context.Context, urls []string, dir string) []string
}

// Parser turns local files into records, skipping files it cannot read.
type Parser interface {
	ParseAll(paths []string) []domain.Record
}

// Options locates the inputs and bounds the summary.
type Options struct {
	URLsFile            string
	DocumentsDir        string
	SummaryMaxSentences int
}

// Stats counts what each ingestion stage produced.
type Stats struct {
	URLs      int
	Files     int
	Records   int
	Chunks    int
	Embedder  string
	Dimension int
	Duration  time.Duration
}

// Result is the outcome of one ingestion run. Index is nil when indexing
// failed; retrieval reports that state to the agent.
type Result struct {
	Index   *index.Index
	Summary string
	Stats   Stats
}

// Ingestor runs the pipeline once at startup.
type Ingestor struct {
	opts       Options
	fetcher    Fetcher
	parser     Parser
	chunker    domain.Chunker
	embedder   embedding.Embedder
	store      vectorstore.Storage
	summarizer domain.Summarizer
	log        *zap.Logger
}

// NewIngestor creates an ingestor. summarizer may be nil.
func NewIngestor(opts Options, fetcher Fetcher, parser Parser, chunker domain.Chunker, embedder embedding.Embedder, store vectorstore.Storage, summarizer domain.Summarizer, log *zap.Logger) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{
		opts:       opts,
		fetcher:    fetcher,
		parser:     parser,
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		summarizer: summarizer,
		log:        log.Named("ingest"),
	}
}

// Ingest runs every stage in order. Per-item failures are logged and
// skipped; only a cancelled ctx is returned as an error.
func (in *Ingestor) Ingest(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{}

	urls, err := source.ReadURLs(in.opts.URLsFile)
	if err != nil {
		in.log.Error("read url list", zap.String("path", in.opts.URLsFile), zap.Error(err))
	}
	res.Stats.URLs = len(urls)

	var paths []string
	if len(urls) > 0 {
		paths = in.fetcher.Fetch(ctx, urls, in.opts.DocumentsDir)
	}
	res.Stats.Files = len(paths)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := in.parser.ParseAll(paths)
	res.Stats.Records = len(records)

	chunks := in.chunker.SplitRecords(records)
	res.Stats.Chunks = len(chunks)

	idx, err := index.Build(ctx, chunks, in.embedder, in.store)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		in.log.Error("build index", zap.Int("chunks", len(chunks)), zap.Error(err))
	}
	res.Index = idx
	res.Stats.Embedder = in.embedder.Name()
	if idx != nil {
		_, res.Stats.Dimension = idx.Embedder()
	}

	res.Summary = in.summarize(records)
	res.Stats.Duration = time.Since(start)
	in.log.Info("ingestion complete",
		zap.Int("urls", res.Stats.URLs),
		zap.Int("files", res.Stats.Files),
		zap.Int("records", res.Stats.Records),
		zap.Int("chunks", res.Stats.Chunks),
		zap.Bool("indexed", res.Index != nil),
		zap.String("embedder", res.Stats.Embedder),
		zap.Int("dimension", res.Stats.Dimension),
		zap.Duration("took", res.Stats.Duration),
	)
	return res, nil
}

func (in *Ingestor) summarize(records []domain.Record) string {
	if in.summarizer == nil || len(records) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.Content)
		b.WriteString("\n")
	}
	summary, err := in.summarizer.Summarize(b.String(), in.opts.SummaryMaxSentences)
	if err != nil {
		in.log.Warn("summarize", zap.Error(err))
		return ""
	}
	return summary
}
