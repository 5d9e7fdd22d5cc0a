package config_test

import (
	"errors"
	"testing"

	"docuchat/backend/internal/config"

	"github.com/stretchr/testify/assert"
)

func validConfig() config.Config {
	return config.Config{
		DBHost:        "localhost",
		DBUser:        "user",
		DBName:        "db",
		VectorBackend: "sqlite",
		VectorDBPath:  "data/vectordb",
		LLMProvider:   "gemini",
		GeminiAPIKey:  "key",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
		errIs   error
	}{
		{
			name:    "Valid Config",
			mutate:  func(c *config.Config) {},
			wantErr: false,
		},
		{
			name:    "Missing DBHost",
			mutate:  func(c *config.Config) { c.DBHost = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Missing DBUser",
			mutate:  func(c *config.Config) { c.DBUser = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Missing DBName",
			mutate:  func(c *config.Config) { c.DBName = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "SQLite Without Path",
			mutate:  func(c *config.Config) { c.VectorDBPath = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name: "Weaviate Without Host",
			mutate: func(c *config.Config) {
				c.VectorBackend = "weaviate"
				c.WeaviateHost = ""
			},
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name: "Weaviate With Host",
			mutate: func(c *config.Config) {
				c.VectorBackend = "weaviate"
				c.WeaviateHost = "localhost:8080"
			},
			wantErr: false,
		},
		{
			name:    "Unknown Backend",
			mutate:  func(c *config.Config) { c.VectorBackend = "chroma" },
			wantErr: true,
		},
		{
			name:    "Gemini Without Key",
			mutate:  func(c *config.Config) { c.GeminiAPIKey = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name: "OpenAI Without Key",
			mutate: func(c *config.Config) {
				c.LLMProvider = "openai"
				c.OpenAIAPIKey = ""
			},
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Unknown Provider",
			mutate:  func(c *config.Config) { c.LLMProvider = "ollama" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errIs != nil {
					assert.True(t, errors.Is(err, tt.errIs))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
