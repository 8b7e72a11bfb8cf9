package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"docchat/internal/agent"
	"docchat/internal/chat"
	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/embedding"
	"docchat/internal/embedding/openai"
	"docchat/internal/embedding/tfidf"
	"docchat/internal/logger"
	"docchat/internal/parser"
	"docchat/internal/retrieval"
	"docchat/internal/service"
	"docchat/internal/source"
	"docchat/internal/summarizer"
	"docchat/internal/tui"
	"docchat/internal/vectorstore"
	"docchat/internal/vectorstore/memory"
	"docchat/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()
	_ = godotenv.Load("prompts.env")

	var cfgPath, initPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml when present)")
	flag.StringVar(&initPath, "init-config", "", "Write the resolved configuration to this path and exit")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if initPath != "" {
		if err := config.Save(initPath, cfg); err != nil {
			log.Fatalf("failed to write config: %v", err)
		}
		fmt.Printf("Wrote %s\n", initPath)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCfg := logger.Config{File: cfg.Log.File, Level: cfg.Log.Level}
	lg := logger.New(logCfg)
	defer func() { _ = lg.Sync() }()

	// Assemble components
	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "openai":
		client, err := openai.NewClient(openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.Embedder.Model,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			BatchSize:  cfg.Embedder.BatchSize,
			MaxRetries: cfg.Embedder.MaxRetries,
		})
		if err != nil {
			log.Fatalf("openai embedder init failed: %v", err)
		}
		emb = client
	case "tfidf":
		emb = tfidf.NewEmbedder()
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var st vectorstore.Storage
	switch cfg.VectorStore.Type {
	case "memory":
		st = memory.NewStorage()
	case "qdrant":
		st = qdrant.NewStorage(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	split, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		log.Fatalf("chunker init failed: %v", err)
	}

	ingestor := service.NewIngestor(
		service.Options{
			URLsFile:            cfg.Documents.URLsFile,
			DocumentsDir:        cfg.Documents.Dir,
			SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		},
		source.NewFetcher(time.Duration(cfg.Documents.FetchTimeoutSecs)*time.Second, lg.Named("fetch")),
		parser.NewDefaultRegistry(lg.Named("parse")),
		split,
		emb,
		st,
		summarizer.NewFrequencySummarizer(),
		lg,
	)
	res, err := ingestor.Ingest(ctx)
	if err != nil {
		log.Fatalf("ingest aborted: %v", err)
	}

	// The TUI owns the terminal from here on.
	chatLog := logger.NewFileOnly(logCfg)
	defer func() { _ = chatLog.Sync() }()

	tool := retrieval.NewTool(res.Index, cfg.Chat.TopK, chatLog)
	ag := agent.New(
		agent.NewClient(agent.ClientConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		}),
		agent.Config{Model: cfg.OpenAI.Model, SystemPrompt: cfg.Chat.SystemPrompt, MaxSteps: cfg.Chat.MaxSteps},
		chatLog,
		tool,
	)
	dispatcher := chat.NewDispatcher(ag, cfg.Chat.MaxHistoryTurns, chatLog)

	m := tui.New(ctx, dispatcher, res.Summary, status(res))
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		chatLog.Error("ui stopped", zap.Error(err))
		log.Fatal(err)
	}
}

func status(res *service.Result) string {
	if res.Index == nil {
		return fmt.Sprintf("Indexing failed; answering without documents (%d files fetched).", res.Stats.Files)
	}
	return fmt.Sprintf("Indexed %d chunks from %d of %d documents in %s (%s, %d dims).",
		res.Stats.Chunks, res.Stats.Files, res.Stats.URLs, res.Stats.Duration.Round(time.Millisecond),
		res.Stats.Embedder, res.Stats.Dimension)
}
