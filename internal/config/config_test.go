package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"docuchat/backend/internal/config"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("GEMINI_API_KEY", "test-key")
	defer os.Unsetenv("DB_HOST")
	defer os.Unsetenv("GEMINI_API_KEY")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
	assert.Equal(t, "sqlite", cfg.VectorBackend)
	assert.Equal(t, "documents", cfg.CollectionName)
	assert.Equal(t, 8081, cfg.ServerPort)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	content := []byte("DB_HOST=loaded-from-file\nGEMINI_API_KEY=file-key")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(".env")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBHost)
}

func TestLoadConfig_Toggles(t *testing.T) {
	os.Setenv("GEMINI_API_KEY", "test-key")
	os.Setenv("ENABLE_API", "false")
	os.Setenv("ENABLE_REINDEX_WORKER", "false")
	os.Setenv("VECTOR_INIT_RETRIES", "5")
	defer os.Unsetenv("GEMINI_API_KEY")
	defer os.Unsetenv("ENABLE_API")
	defer os.Unsetenv("ENABLE_REINDEX_WORKER")
	defer os.Unsetenv("VECTOR_INIT_RETRIES")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.False(t, cfg.EnableAPI)
	assert.False(t, cfg.EnableReindexWorker)
	assert.Equal(t, 5, cfg.VectorInitRetries)
}

func TestLoadConfig_OpenAIProvider(t *testing.T) {
	os.Setenv("LLM_PROVIDER", "openai")
	os.Setenv("OPENAI_API_KEY", "sk-test")
	os.Setenv("OPENAI_BASE_URL", "https://openrouter.ai/api/v1")
	defer os.Unsetenv("LLM_PROVIDER")
	defer os.Unsetenv("OPENAI_API_KEY")
	defer os.Unsetenv("OPENAI_BASE_URL")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenAIBaseURL)
}
