package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_API_KEY_ENV", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "VECTOR_STORE", "DOCUMENTS_DIR",
		"URLS_FILE", "SYSTEM_PROMPT", "LOG_FILE", "LOG_LEVEL", "CHUNK_SIZE",
		"CHUNK_OVERLAP", "MAX_HISTORY_TURNS", "RETRIEVAL_TOP_K", "FETCH_TIMEOUT_SECS",
		"QDRANT_URL", "QDRANT_API_KEY", "QDRANT_COLLECTION",
	} {
		t.Setenv(k, "")
	}
}

func missingPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(missingPath(t))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-5-nano", cfg.OpenAI.Model)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedder.Model)
	assert.Equal(t, "openai", cfg.Embedder.Type)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 5, cfg.Chat.MaxHistoryTurns)
	assert.Equal(t, 2, cfg.Chat.TopK)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, filepath.Join("documents", "urls.txt"), cfg.Documents.URLsFile)
	assert.Equal(t, 60, cfg.Documents.FetchTimeoutSecs)
}

func TestLoad_MissingAPIKeyFailsFast(t *testing.T) {
	clearEnv(t)

	_, err := Load(missingPath(t))
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("MAX_HISTORY_TURNS", "3")
	t.Setenv("RETRIEVAL_TOP_K", "4")
	t.Setenv("SYSTEM_PROMPT", "Answer from the documents.")
	t.Setenv("DOCUMENTS_DIR", "/tmp/docs")

	cfg, err := Load(missingPath(t))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 3, cfg.Chat.MaxHistoryTurns)
	assert.Equal(t, 4, cfg.Chat.TopK)
	assert.Equal(t, "Answer from the documents.", cfg.Chat.SystemPrompt)
	assert.Equal(t, filepath.Join("/tmp/docs", "urls.txt"), cfg.Documents.URLsFile)
}

func TestLoad_BadInteger(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CHUNK_SIZE", "big")

	_, err := Load(missingPath(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_SIZE")
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MY_KEY", "sk-yaml")
	t.Setenv("CHUNK_OVERLAP", "10")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
openai:
  api_key_env: MY_KEY
  model: local-model
chunker:
  chunk_size: 300
  chunk_overlap: 100
vector_store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-yaml", cfg.OpenAI.APIKey)
	assert.Equal(t, "local-model", cfg.OpenAI.Model)
	assert.Equal(t, 300, cfg.Chunker.ChunkSize)
	assert.Equal(t, 10, cfg.Chunker.ChunkOverlap)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "docchat", cfg.VectorStore.Qdrant.Collection)
	assert.Equal(t, 15, cfg.VectorStore.Qdrant.TimeoutSecs)
}

func TestValidate(t *testing.T) {
	base := func() *AppConfig {
		cfg := defaultConfig()
		cfg.OpenAI.APIKey = "sk-test"
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"overlap equals size", func(c *AppConfig) { c.Chunker.ChunkOverlap = c.Chunker.ChunkSize }},
		{"negative overlap", func(c *AppConfig) { c.Chunker.ChunkOverlap = -1 }},
		{"zero chunk size", func(c *AppConfig) { c.Chunker.ChunkSize = 0 }},
		{"negative history", func(c *AppConfig) { c.Chat.MaxHistoryTurns = -1 }},
		{"zero top-k", func(c *AppConfig) { c.Chat.TopK = 0 }},
		{"unknown embedder", func(c *AppConfig) { c.Embedder.Type = "bert" }},
		{"unknown store", func(c *AppConfig) { c.VectorStore.Type = "faiss" }},
		{"qdrant without url", func(c *AppConfig) { c.VectorStore.Type = "qdrant" }},
	}
	require.NoError(t, base().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSave_OmitsSecret(t *testing.T) {
	cfg := defaultConfig()
	cfg.OpenAI.APIKey = "sk-secret"
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-secret")
	assert.Contains(t, string(data), "api_key_env: OPENAI_API_KEY")
}
