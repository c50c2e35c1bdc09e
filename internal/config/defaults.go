package config

import "time"

// IMAPPreset is a well-known provider's IMAP endpoint.
type IMAPPreset struct {
	Host string
	Port int
}

// IMAPPresets maps email provider names to their IMAP endpoints.
var IMAPPresets = map[string]IMAPPreset{
	"gmail":   {Host: "imap.gmail.com", Port: 993},
	"outlook": {Host: "outlook.office365.com", Port: 993},
	"yahoo":   {Host: "imap.mail.yahoo.com", Port: 993},
	"icloud":  {Host: "imap.mail.me.com", Port: 993},
}

// DefaultSourceWeights orders sources meeting > email > note > screenshot.
var DefaultSourceWeights = map[string]float64{
	"meeting":    1.0,
	"email":      0.8,
	"note":       0.6,
	"screenshot": 0.4,
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8421
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".mindline/data/timeline.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = ".mindline/data/index"
	}
	if cfg.Storage.ExportDir == "" {
		cfg.Storage.ExportDir = ".mindline/exports"
	}

	if cfg.Fetch.Workers == 0 {
		cfg.Fetch.Workers = 4
	}
	if cfg.Fetch.SourceTimeout == 0 {
		cfg.Fetch.SourceTimeout = 2 * time.Minute
	}
	if cfg.Fetch.RetryAttempts == 0 {
		cfg.Fetch.RetryAttempts = 3
	}
	if cfg.Fetch.RetryInitialInterval == 0 {
		cfg.Fetch.RetryInitialInterval = 500 * time.Millisecond
	}
	if cfg.Fetch.RetryMaxInterval == 0 {
		cfg.Fetch.RetryMaxInterval = 10 * time.Second
	}
	if cfg.Fetch.ItemWorkers == 0 {
		cfg.Fetch.ItemWorkers = 8
	}

	applySourceDefaults(&cfg.Sources)

	if cfg.Concepts.MinTokenLength == 0 {
		cfg.Concepts.MinTokenLength = 3
	}
	if cfg.Concepts.MaxConcepts == 0 {
		cfg.Concepts.MaxConcepts = 15
	}
	if cfg.Concepts.Classifier == "" {
		cfg.Concepts.Classifier = "keyword"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.BaseURL == "" {
		if cfg.LLM.Provider == "ollama" {
			cfg.LLM.BaseURL = "http://localhost:11434"
		} else {
			cfg.LLM.BaseURL = "http://localhost:1234/v1"
		}
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "google/gemma-3-12b"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}

	if cfg.Cluster.MinEdgeWeight == 0 {
		cfg.Cluster.MinEdgeWeight = 1
	}
	if cfg.Cluster.MinClusterSize == 0 {
		cfg.Cluster.MinClusterSize = 2
	}

	if cfg.Scoring.HalfLife == 0 {
		cfg.Scoring.HalfLife = 7 * 24 * time.Hour
	}
	if cfg.Scoring.LengthCap == 0 {
		cfg.Scoring.LengthCap = 5000
	}
	if cfg.Scoring.CrossRefWindow == 0 {
		cfg.Scoring.CrossRefWindow = 14 * 24 * time.Hour
	}
	if cfg.Scoring.Weights.Sum() == 0 {
		cfg.Scoring.Weights = SignalWeights{Recency: 0.35, Source: 0.25, Length: 0.15, CrossRef: 0.25}
	}
	if cfg.Scoring.SourceWeights == nil {
		cfg.Scoring.SourceWeights = make(map[string]float64, len(DefaultSourceWeights))
	}
	for source, w := range DefaultSourceWeights {
		if _, ok := cfg.Scoring.SourceWeights[source]; !ok {
			cfg.Scoring.SourceWeights[source] = w
		}
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
	if cfg.Watch.Window == 0 {
		cfg.Watch.Window = 7 * 24 * time.Hour
	}
	if cfg.Schedule.Window == 0 {
		cfg.Schedule.Window = 7 * 24 * time.Hour
	}
}

func applySourceDefaults(s *SourcesConfig) {
	if s.Screenshot.Dir == "" {
		s.Screenshot.Dir = ".mindline/screenshots"
	}
	if s.Screenshot.Extensions == nil {
		s.Screenshot.Extensions = []string{".md", ".txt"}
	}
	if s.Notes.Dir == "" {
		s.Notes.Dir = ".mindline/notes"
	}
	if s.Notes.Extensions == nil {
		s.Notes.Extensions = []string{".md", ".txt", ".html", ".htm", ".pdf", ".docx", ".odt", ".rtf"}
	}
	if !s.Screenshot.Enabled && !s.Notes.Enabled && !s.Email.Enabled && !s.Meeting.Enabled {
		s.Screenshot.Enabled = true
		s.Notes.Enabled = true
	}

	if p, ok := IMAPPresets[s.Email.Provider]; ok {
		if s.Email.Host == "" {
			s.Email.Host = p.Host
		}
		if s.Email.Port == 0 {
			s.Email.Port = p.Port
		}
	}
	if s.Email.Port == 0 {
		s.Email.Port = 993
	}
	if s.Email.Folders == nil {
		s.Email.Folders = []string{"INBOX"}
	}
	if s.Email.MaxMessages == 0 {
		s.Email.MaxMessages = 500
	}

	if s.Meeting.Endpoint == "" {
		s.Meeting.Endpoint = "https://api.fireflies.ai/graphql"
	}
	if s.Meeting.PageSize == 0 {
		s.Meeting.PageSize = 50
	}
	if s.Meeting.RequestsPerSecond == 0 {
		s.Meeting.RequestsPerSecond = 2
	}
}
