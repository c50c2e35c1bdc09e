package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./timeline.db"
cluster:
  min_cluster_size: 3
scoring:
  half_life: 48h
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "timeline.db"), cfg.Storage.DatabasePath)
	assert.Equal(t, 3, cfg.Cluster.MinClusterSize)
	assert.Equal(t, 1, cfg.Cluster.MinEdgeWeight)
	assert.Equal(t, 48*time.Hour, cfg.Scoring.HalfLife)
	assert.Equal(t, 14*24*time.Hour, cfg.Scoring.CrossRefWindow)
	assert.False(t, cfg.Debug)
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.Fetch.RetryAttempts)
	assert.Equal(t, 2, cfg.Cluster.MinClusterSize)
	assert.Equal(t, "keyword", cfg.Concepts.Classifier)
	assert.Equal(t, "http://localhost:1234/v1", cfg.LLM.BaseURL)
	assert.True(t, cfg.Sources.Screenshot.Enabled)
	assert.True(t, cfg.Sources.Notes.Enabled)

	w := cfg.Scoring.SourceWeights
	assert.Greater(t, w["meeting"], w["email"])
	assert.Greater(t, w["email"], w["note"])
	assert.Greater(t, w["note"], w["screenshot"])
}

func TestApplyDefaults_imapPreset(t *testing.T) {
	cfg := &Config{Sources: SourcesConfig{Email: EmailSourceConfig{Enabled: true, Provider: "icloud"}}}
	ApplyDefaults(cfg)
	assert.Equal(t, "imap.mail.me.com", cfg.Sources.Email.Host)
	assert.Equal(t, 993, cfg.Sources.Email.Port)
	assert.Equal(t, []string{"INBOX"}, cfg.Sources.Email.Folders)
	assert.False(t, cfg.Sources.Notes.Enabled, "explicitly enabled sources suppress the local defaults")
}

func TestApplyDefaults_keepsExplicitSourceWeight(t *testing.T) {
	cfg := &Config{Scoring: ScoringConfig{SourceWeights: map[string]float64{"screenshot": 2}}}
	ApplyDefaults(cfg)
	assert.Equal(t, 2.0, cfg.Scoring.SourceWeights["screenshot"])
	assert.Equal(t, 1.0, cfg.Scoring.SourceWeights["meeting"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad classifier", func(c *Config) { c.Concepts.Classifier = "magic" }},
		{"unknown source weight", func(c *Config) { c.Scoring.SourceWeights["fax"] = 1 }},
		{"negative source weight", func(c *Config) { c.Scoring.SourceWeights["note"] = -1 }},
		{"meeting without key", func(c *Config) { c.Sources.Meeting.Enabled = true }},
		{"email without host", func(c *Config) {
			c.Sources.Email.Enabled = true
			c.Sources.Email.Password = "x"
			c.Sources.Email.Username = "me"
		}},
		{"no sources", func(c *Config) {
			c.Sources.Screenshot.Enabled = false
			c.Sources.Notes.Enabled = false
		}},
		{"zero weights", func(c *Config) { c.Scoring.Weights = SignalWeights{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestLoad_envOverrides(t *testing.T) {
	path := writeConfig(t, `
sources:
  meeting:
    enabled: true
`)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte(EnvFirefliesAPIKey+"=from-dotenv\n"), 0600))
	t.Cleanup(func() { os.Unsetenv(EnvFirefliesAPIKey) })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Sources.Meeting.APIKey)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	cfg := Default()
	cfg.Storage.DatabasePath = filepath.Join(dir, "t.db")
	cfg.Scoring.HalfLife = 72 * time.Hour

	require.NoError(t, Save(path, cfg))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Storage.DatabasePath, loaded.Storage.DatabasePath)
	assert.Equal(t, 72*time.Hour, loaded.Scoring.HalfLife)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "/abs/x", expandPath("/abs/x", "/cfg"))
	assert.Equal(t, "/cfg/x", expandPath("./x", "/cfg"))
	assert.Equal(t, filepath.Join(home, "x"), expandPath("~/x", "/cfg"))
	assert.Equal(t, filepath.Join(home, ".mindline/x"), expandPath(".mindline/x", "/cfg"))
}
