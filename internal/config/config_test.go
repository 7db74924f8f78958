package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFile_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: sqlite
  dsn: /tmp/marks.db
classifier:
  enabled: true
  provider: openai
  model: gpt-4o-mini
scan:
  item_delay: 250ms
organize:
  auto_remove_broken: true
language: fr-CA
`)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MARKSWEEP_RETRY_MAX_ATTEMPTS", "5")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/marks.db", cfg.Store.DSN)
	assert.Equal(t, 250*time.Millisecond, cfg.Scan.ItemDelay)
	assert.Equal(t, 30*time.Second, cfg.Scan.ProbeCeiling)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, "sk-test", cfg.Classifier.APIKey)
	assert.Equal(t, "fr", cfg.Language)
	require.NoError(t, cfg.Validate())

	s := cfg.Settings()
	assert.True(t, s.EnableExternalClassification)
	assert.True(t, s.AutoRemoveBroken)
	assert.True(t, s.CreateFolders)
	assert.Equal(t, "sk-test", s.APIKey)
	assert.Equal(t, "Organized Bookmarks", cfg.OrganizeOptions().FolderTitle)
	assert.Equal(t, "127.0.0.1:8080", cfg.ServerAddress())
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		cfg, err := LoadConfigFile(writeConfig(t, "store:\n  dsn: ':memory:'\n"))
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"empty dsn", func(c *Config) { c.Store.DSN = "" }, "store.dsn"},
		{"classifier without key", func(c *Config) { c.Classifier.Enabled = true; c.Classifier.APIKey = "" }, "api_key"},
		{"unknown provider", func(c *Config) { c.Classifier.Enabled = true; c.Classifier.Provider = "llama" }, "classifier.provider"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max_attempts"},
		{"shrinking backoff", func(c *Config) { c.Retry.BackoffFactor = 0.5 }, "backoff_factor"},
		{"max below base", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, "max_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateWorker(t *testing.T) {
	cfg, err := LoadConfigFile(writeConfig(t, "worker:\n  concurrency: 2\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateWorker())

	cfg.Worker.Queues = map[string]int{"default": 0}
	assert.Error(t, cfg.ValidateWorker())
}

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{
		"":          "en",
		"en-US":     "en",
		"ja-JP":     "ja",
		"zh-TW":     "zh-TW",
		"zh-CN":     "zh-CN",
		"de":        "de",
		"not a tag": "en",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeLanguage(in), "input %q", in)
	}
}

func TestLoadPromptContent(t *testing.T) {
	content, err := LoadPromptContent("")
	require.NoError(t, err)
	assert.Empty(t, content)

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("Categorize {{URL}}"), 0o600))
	content, err = LoadPromptContent(path)
	require.NoError(t, err)
	assert.Equal(t, "Categorize {{URL}}", content)

	_, err = LoadPromptContent(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
