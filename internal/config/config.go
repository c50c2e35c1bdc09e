// Package config provides the configuration object for mindline and its
// load, validate, and save lifecycle.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Sources  SourcesConfig  `yaml:"sources"`
	Concepts ConceptsConfig `yaml:"concepts"`
	LLM      LLMConfig      `yaml:"llm"`
	Cluster  ClusterConfig  `yaml:"cluster"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Watch    WatchConfig    `yaml:"watch"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// LogConfig holds log output settings. An empty File logs to stderr only.
type LogConfig struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"min=0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

// StorageConfig holds paths for the timeline database and full-text index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path" validate:"required"`
	BleveIndexPath string `yaml:"bleve_index_path" validate:"required"`
	ExportDir      string `yaml:"export_dir"`
}

// FetchConfig controls the concurrent fetch phase.
type FetchConfig struct {
	Workers              int           `yaml:"workers" validate:"min=1"`
	SourceTimeout        time.Duration `yaml:"source_timeout" validate:"min=0"`
	RetryAttempts        int           `yaml:"retry_attempts" validate:"min=1,max=10"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval" validate:"min=0"`
	RetryMaxInterval     time.Duration `yaml:"retry_max_interval" validate:"min=0"`
	ItemWorkers          int           `yaml:"item_workers" validate:"min=1"`
}

// SourcesConfig holds per-source connector settings.
type SourcesConfig struct {
	Screenshot ScreenshotSourceConfig `yaml:"screenshot"`
	Notes      NotesSourceConfig      `yaml:"notes"`
	Email      EmailSourceConfig      `yaml:"email"`
	Meeting    MeetingSourceConfig    `yaml:"meeting"`
}

// ScreenshotSourceConfig points at a directory of OCR reports.
type ScreenshotSourceConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Dir        string   `yaml:"dir" validate:"required_if=Enabled true"`
	Extensions []string `yaml:"extensions"`
}

// NotesSourceConfig points at a directory of exported notes.
type NotesSourceConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Dir        string   `yaml:"dir" validate:"required_if=Enabled true"`
	Account    string   `yaml:"account,omitempty"`
	Extensions []string `yaml:"extensions"`
}

// EmailSourceConfig holds IMAP settings. Provider presets fill Host and Port.
type EmailSourceConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Provider    string   `yaml:"provider" validate:"omitempty,oneof=gmail outlook yahoo icloud custom"`
	Host        string   `yaml:"host,omitempty" validate:"required_if=Enabled true"`
	Port        int      `yaml:"port,omitempty" validate:"min=0,max=65535"`
	Username    string   `yaml:"username,omitempty" validate:"required_if=Enabled true"`
	Password    string   `yaml:"password,omitempty"`
	Folders     []string `yaml:"folders"`
	MaxMessages int      `yaml:"max_messages" validate:"min=0"`
}

// MeetingSourceConfig holds transcript API settings.
type MeetingSourceConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Endpoint          string  `yaml:"endpoint" validate:"required_if=Enabled true"`
	APIKey            string  `yaml:"api_key,omitempty"`
	PageSize          int     `yaml:"page_size" validate:"min=1,max=50"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
}

// ConceptsConfig controls concept extraction and classification.
type ConceptsConfig struct {
	MinTokenLength int      `yaml:"min_token_length" validate:"min=1"`
	MaxConcepts    int      `yaml:"max_concepts" validate:"min=1"`
	Classifier     string   `yaml:"classifier" validate:"oneof=keyword llm"`
	ExtraStopwords []string `yaml:"extra_stopwords,omitempty"`
}

// LLMConfig selects the language model backend used by the llm classifier and summaries.
type LLMConfig struct {
	Provider  string        `yaml:"provider" validate:"oneof=openai ollama"`
	BaseURL   string        `yaml:"base_url" validate:"required,url"`
	Model     string        `yaml:"model" validate:"required"`
	APIKey    string        `yaml:"api_key,omitempty"`
	Summaries bool          `yaml:"summaries"`
	Timeout   time.Duration `yaml:"timeout" validate:"min=0"`
}

// ClusterConfig holds clustering thresholds.
type ClusterConfig struct {
	MinEdgeWeight  int `yaml:"min_edge_weight" validate:"min=1"`
	MinClusterSize int `yaml:"min_cluster_size" validate:"min=1"`
}

// ScoringConfig holds importance scoring parameters.
type ScoringConfig struct {
	HalfLife       time.Duration      `yaml:"half_life" validate:"gt=0"`
	LengthCap      int                `yaml:"length_cap" validate:"min=1"`
	CrossRefWindow time.Duration      `yaml:"crossref_window" validate:"gt=0"`
	Weights        SignalWeights      `yaml:"weights"`
	SourceWeights  map[string]float64 `yaml:"source_weights"`
}

// SignalWeights weighs the four importance signals against each other.
type SignalWeights struct {
	Recency  float64 `yaml:"recency" validate:"min=0"`
	Source   float64 `yaml:"source" validate:"min=0"`
	Length   float64 `yaml:"length" validate:"min=0"`
	CrossRef float64 `yaml:"crossref" validate:"min=0"`
}

// Sum returns the total of all weights.
func (w SignalWeights) Sum() float64 {
	return w.Recency + w.Source + w.Length + w.CrossRef
}

// WatchConfig controls re-analysis when local source directories change.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce" validate:"min=0"`
	Window   time.Duration `yaml:"window" validate:"min=0"`
}

// ScheduleConfig controls periodic analysis. An empty Spec disables it.
type ScheduleConfig struct {
	Spec   string        `yaml:"spec,omitempty"`
	Window time.Duration `yaml:"window" validate:"min=0"`
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, expands paths, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	if err := ApplyEnv(&cfg, configDir); err != nil {
		return nil, err
	}
	cfg.expandPaths(configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Save writes the config to path, creating its directory when needed.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	c.Storage.BleveIndexPath = expandPath(c.Storage.BleveIndexPath, configDir)
	if c.Storage.ExportDir != "" {
		c.Storage.ExportDir = expandPath(c.Storage.ExportDir, configDir)
	}
	if c.Log.File != "" {
		c.Log.File = expandPath(c.Log.File, configDir)
	}
	if c.Sources.Screenshot.Dir != "" {
		c.Sources.Screenshot.Dir = expandPath(c.Sources.Screenshot.Dir, configDir)
	}
	if c.Sources.Notes.Dir != "" {
		c.Sources.Notes.Dir = expandPath(c.Sources.Notes.Dir, configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
