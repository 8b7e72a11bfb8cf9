package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when the model provider credential is not set.
var ErrMissingAPIKey = errors.New("model provider API key is not set")

// OpenAIConfig holds configuration for the OpenAI-compatible chat and embedding APIs.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`

	// APIKey is resolved from APIKeyEnv and never serialized.
	APIKey string `yaml:"-"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type       string `yaml:"type"`
	Model      string `yaml:"model"`
	BatchSize  int    `yaml:"batch_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// ChunkerConfig configures how records are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key,omitempty"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// DocumentsConfig locates the URL list and the download cache.
type DocumentsConfig struct {
	Dir              string `yaml:"dir"`
	URLsFile         string `yaml:"urls_file"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs"`
}

// ChatConfig configures the conversational agent and dispatcher.
type ChatConfig struct {
	SystemPrompt    string `yaml:"system_prompt,omitempty"`
	MaxHistoryTurns int    `yaml:"max_history_turns"`
	TopK            int    `yaml:"top_k"`
	MaxSteps        int    `yaml:"max_steps"`
}

// SummarizerConfig configures the corpus summary shown in the chat header.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	File  string `yaml:"file,omitempty"`
	Level string `yaml:"level"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Documents   DocumentsConfig   `yaml:"documents"`
	Chat        ChatConfig        `yaml:"chat"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Log         LogConfig         `yaml:"log"`
}

// Load builds the configuration from defaults, the YAML file at path and the
// process environment, in that order. An empty path tries ./config.yaml; a
// missing file is not an error.
func Load(path string) (*AppConfig, error) {
	if path == "" {
		path = "config.yaml"
	}
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the process cannot start with.
func (c *AppConfig) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("%w: export %s or add it to .env", ErrMissingAPIKey, c.OpenAI.APIKeyEnv)
	}
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Chunker.ChunkSize)
	}
	if c.Chunker.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.Chunker.ChunkOverlap)
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	if c.Chat.MaxHistoryTurns < 0 {
		return fmt.Errorf("max history turns must not be negative, got %d", c.Chat.MaxHistoryTurns)
	}
	if c.Chat.TopK <= 0 {
		return fmt.Errorf("retrieval top-k must be positive, got %d", c.Chat.TopK)
	}
	switch c.Embedder.Type {
	case "openai", "tfidf":
	default:
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return errors.New("qdrant vector store requires a url")
		}
	default:
		return fmt.Errorf("unknown vector store: %s", c.VectorStore.Type)
	}
	return nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		OpenAI:      OpenAIConfig{APIKeyEnv: "OPENAI_API_KEY", Model: "gpt-5-nano", TimeoutSecs: 120},
		Embedder:    EmbedderConfig{Type: "openai", Model: "text-embedding-3-large", BatchSize: 64, MaxRetries: 5},
		Chunker:     ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Documents:   DocumentsConfig{Dir: "documents", FetchTimeoutSecs: 60},
		Chat:        ChatConfig{MaxHistoryTurns: 5, TopK: 2, MaxSteps: 8},
		Summarizer:  SummarizerConfig{MaxSentences: 3},
		Log:         LogConfig{Level: "info"},
	}
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.OpenAI.APIKeyEnv, "OPENAI_API_KEY_ENV")
	setString(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.OpenAI.Model, "OPENAI_MODEL")
	setString(&cfg.Embedder.Type, "EMBEDDING_PROVIDER")
	setString(&cfg.Embedder.Model, "EMBEDDING_MODEL")
	setString(&cfg.VectorStore.Type, "VECTOR_STORE")
	setString(&cfg.Documents.Dir, "DOCUMENTS_DIR")
	setString(&cfg.Documents.URLsFile, "URLS_FILE")
	setString(&cfg.Chat.SystemPrompt, "SYSTEM_PROMPT")
	setString(&cfg.Log.File, "LOG_FILE")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.Chunker.ChunkSize, "CHUNK_SIZE"},
		{&cfg.Chunker.ChunkOverlap, "CHUNK_OVERLAP"},
		{&cfg.Chat.MaxHistoryTurns, "MAX_HISTORY_TURNS"},
		{&cfg.Chat.TopK, "RETRIEVAL_TOP_K"},
		{&cfg.Documents.FetchTimeoutSecs, "FETCH_TIMEOUT_SECS"},
	}
	for _, e := range ints {
		if err := setInt(e.dst, e.key); err != nil {
			return err
		}
	}

	if url := os.Getenv("QDRANT_URL"); url != "" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		cfg.VectorStore.Qdrant.URL = url
	}
	if cfg.VectorStore.Qdrant != nil {
		setString(&cfg.VectorStore.Qdrant.APIKey, "QDRANT_API_KEY")
		setString(&cfg.VectorStore.Qdrant.Collection, "QDRANT_COLLECTION")
	}

	if cfg.OpenAI.APIKeyEnv == "" {
		cfg.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	cfg.OpenAI.APIKey = os.Getenv(cfg.OpenAI.APIKeyEnv)
	return nil
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Documents.Dir == "" {
		cfg.Documents.Dir = "documents"
	}
	if cfg.Documents.URLsFile == "" {
		cfg.Documents.URLsFile = filepath.Join(cfg.Documents.Dir, "urls.txt")
	}
	if cfg.Documents.FetchTimeoutSecs <= 0 {
		cfg.Documents.FetchTimeoutSecs = 60
	}
	if cfg.OpenAI.TimeoutSecs <= 0 {
		cfg.OpenAI.TimeoutSecs = 120
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.BatchSize <= 0 {
		cfg.Embedder.BatchSize = 64
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "docchat"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Chat.MaxSteps <= 0 {
		cfg.Chat.MaxSteps = 8
	}
	if cfg.Summarizer.MaxSentences <= 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}
