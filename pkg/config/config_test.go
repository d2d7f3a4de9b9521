package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := writeConfig(t, `
retrieval:
  backend: bleve
  default_k: 6
providers:
  openrouter:
    api_key: sk-or
    model: mistral
    enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bleve", cfg.Retrieval.Backend)
	assert.Equal(t, 6, cfg.Retrieval.DefaultK)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1000, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 200, cfg.Retrieval.ChunkOverlap)
	assert.InDelta(t, 0.3, cfg.Retrieval.ScoreThreshold, 1e-9)
	assert.InDelta(t, 0.3, cfg.Planner.Temperature, 1e-9)
	assert.Equal(t, 1500, cfg.Planner.MaxTokens)
	assert.Equal(t, "mistral", cfg.Providers["openrouter"].Model)
	assert.Equal(t, "gpt-4", cfg.Providers["openai"].Model)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("WORKDESK_RETRIEVAL_DEFAULT_K", "9")
	t.Setenv("WORKDESK_LOGGER_LEVEL", "debug")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(writeConfig(t, "app:\n  name: desk\n"))
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Retrieval.DefaultK)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "desk", cfg.App.Name)
	assert.Equal(t, "sk-env", cfg.Providers["openai"].APIKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Retrieval.Backend = "faiss" }, wantErr: true},
		{name: "overlap too large", mutate: func(c *Config) { c.Retrieval.ChunkOverlap = 1000 }, wantErr: true},
		{name: "zero k", mutate: func(c *Config) { c.Retrieval.DefaultK = 0 }, wantErr: true},
		{name: "threshold above one", mutate: func(c *Config) { c.Retrieval.ScoreThreshold = 1.5 }, wantErr: true},
		{name: "no planner budget", mutate: func(c *Config) { c.Planner.MaxTokens = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetDefaultProvider_IsDeterministic(t *testing.T) {
	cfg := &Config{Providers: map[string]ProviderConfig{
		"zeta":  {Model: "z", Enabled: true},
		"alpha": {Model: "a", Enabled: true},
		"beta":  {Model: "b"},
	}}
	for i := 0; i < 10; i++ {
		name, p := cfg.GetDefaultProvider()
		assert.Equal(t, "alpha", name)
		assert.Equal(t, "a", p.Model)
	}

	name, _ := (&Config{}).GetDefaultProvider()
	assert.Empty(t, name)
}

func TestGetTelegramConfig(t *testing.T) {
	cfg := Defaults()
	_, ok := cfg.GetTelegramConfig()
	assert.False(t, ok)

	cfg.Gateways["telegram"] = GatewayConfig{Token: "123:abc", Enabled: true}
	tg, ok := cfg.GetTelegramConfig()
	assert.True(t, ok)
	assert.Equal(t, "123:abc", tg.Token)
}

func TestWriteDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "workdesk.yaml")
	require.NoError(t, WriteDefaults(path))
	require.Error(t, WriteDefaults(path), "second write must not overwrite")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults().Retrieval, cfg.Retrieval)
}
