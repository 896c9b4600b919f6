package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:8000/tools", cfg.Client.ToolServerURL)
	assert.Equal(t, 30*time.Second, cfg.Server.ToolTimeout)
	assert.Equal(t, "github.com", cfg.Client.RepoHost)
	assert.Equal(t, ProviderOffline, cfg.Model.Provider)
	assert.InDelta(t, 0.6, cfg.Model.Temperature, 1e-6)
	assert.False(t, cfg.Server.TrustProxy)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(cfg, mapLookup(map[string]string{
		"GITHUB_TOKEN":      "ghp_x",
		"TOOL_SERVER_ADDR":  ":9000",
		"TOOL_TIMEOUT":      "5s",
		"FETCH_TIMEOUT":     "3",
		"OLLAMA_MODEL":      "qwen2.5",
		"MODEL_TEMPERATURE": "0.2",
		"MODEL_ENDPOINT":    "http://localhost:11434/v1",
		"MCP_RATE_LIMIT":    "0",
		"LOG_LEVEL":         "  ",

		"TOOL_SERVER_TRUST_PROXY": "true",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ghp_x", cfg.GitHub.Token)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ToolTimeout)
	assert.Equal(t, 3*time.Second, cfg.Client.FetchTimeout)
	assert.Equal(t, "qwen2.5", cfg.Model.Name)
	assert.InDelta(t, 0.2, cfg.Model.Temperature, 1e-6)
	assert.Equal(t, 0, cfg.Server.RateLimit)
	assert.True(t, cfg.Server.TrustProxy)
	// Blank values do not override
	assert.Equal(t, "info", cfg.Log.Level)
	// An endpoint without an explicit provider means an OpenAI-compatible server
	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
}

func TestApplyEnv_ModelNameWins(t *testing.T) {
	cfg := Default()
	require.NoError(t, applyEnv(cfg, mapLookup(map[string]string{
		"OLLAMA_MODEL": "llama3",
		"MODEL_NAME":   "gpt-4o",
	})))
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
}

func TestApplyEnv_ParseErrors(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"TOOL_TIMEOUT", "soon"},
		{"MCP_RATE_LIMIT", "ten"},
		{"MODEL_TEMPERATURE", "warm"},
		{"TOOL_SERVER_TRUST_PROXY", "sometimes"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := applyEnv(Default(), mapLookup(map[string]string{tt.key: tt.value}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Model.Provider = "bard" }},
		{"azure without endpoint", func(c *Config) { c.Model.Provider = ProviderAzure }},
		{"temperature too high", func(c *Config) { c.Model.Temperature = 3 }},
		{"zero rounds", func(c *Config) { c.Model.MaxRounds = 0 }},
		{"zero tool timeout", func(c *Config) { c.Server.ToolTimeout = 0 }},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }},
		{"empty repo host", func(c *Config) { c.Client.RepoHost = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issuebridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7000"
  tool_timeout: 12s
model:
  provider: Azure
  endpoint: https://example.openai.azure.com
  name: gpt-4o-mini
log:
  format: json
`), 0o600))

	t.Setenv("TOOL_SERVER_ADDR", ":7100")

	cfg, err := Load(path)
	require.NoError(t, err)

	// env wins over file
	assert.Equal(t, ":7100", cfg.Server.Addr)
	assert.Equal(t, 12*time.Second, cfg.Server.ToolTimeout)
	assert.Equal(t, ProviderAzure, cfg.Model.Provider)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
