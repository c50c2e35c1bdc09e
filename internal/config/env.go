package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables that override secrets in the config file.
const (
	EnvFirefliesAPIKey = "MINDLINE_FIREFLIES_API_KEY"
	EnvIMAPPassword    = "MINDLINE_IMAP_PASSWORD"
	EnvLLMAPIKey       = "MINDLINE_LLM_API_KEY"
)

// ApplyEnv loads configDir/.env when present and applies secret overrides from the
// environment. Variables already set in the process environment win over .env.
func ApplyEnv(cfg *Config, configDir string) error {
	envFile := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	if v := os.Getenv(EnvFirefliesAPIKey); v != "" {
		cfg.Sources.Meeting.APIKey = v
	}
	if v := os.Getenv(EnvIMAPPassword); v != "" {
		cfg.Sources.Email.Password = v
	}
	if v := os.Getenv(EnvLLMAPIKey); v != "" {
		cfg.LLM.APIKey = v
	}
	return nil
}
