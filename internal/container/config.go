// Package container provides dependency injection and lifecycle management
// for the travel expense service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Lark API configuration
	Lark LarkConfig

	// OpenAI configuration
	OpenAI OpenAIConfig

	// Storage configuration
	Storage StorageConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file, or a complete "file:" DSN
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// LarkConfig holds Lark API settings.
// Notifications are disabled when AppID is empty.
type LarkConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string
}

// OpenAIConfig holds OpenAI API settings.
// Receipt extraction is disabled when APIKey is empty.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string

	// Model is the vision model to use (e.g., "gpt-4o")
	Model string

	// Currency is assumed when a receipt shows none
	Currency string

	// PromptsPath overrides the embedded prompts
	PromptsPath string

	// Timeout for API calls
	Timeout time.Duration
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// ProofDir is the base directory for supporting documents
	ProofDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/travel_expense.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		OpenAI: OpenAIConfig{
			Model:   "gpt-4o",
			Timeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			ProofDir: "data/proofs",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}
	if c.OpenAI.APIKey != "" && c.OpenAI.Model == "" {
		return fmt.Errorf("openai.model is required")
	}
	if c.Storage.ProofDir == "" {
		return fmt.Errorf("storage.proof_dir is required")
	}
	return nil
}
