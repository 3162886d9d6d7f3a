package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Lark     LarkConfig     `mapstructure:"lark"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxUploadSize limits proof uploads, in bytes
	MaxUploadSize int64 `mapstructure:"max_upload_size"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// LarkConfig holds Lark API configuration. Notifications are off without an app ID.
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// OpenAIConfig holds OpenAI API configuration. Receipt extraction is off without an API key.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Currency    string        `mapstructure:"currency"`
	PromptsPath string        `mapstructure:"prompts_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds proof storage configuration
type StorageConfig struct {
	ProofDir string `mapstructure:"proof_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional .env file, the config file and environment
// variables. An empty configPath reads defaults and environment only.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_upload_size", 10<<20)

	// Database defaults
	v.SetDefault("database.path", "data/travel_expense.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// Auth defaults
	v.SetDefault("auth.issuer", "travel-expense")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.timeout", 60*time.Second)

	// Storage defaults
	v.SetDefault("storage.proof_dir", "data/proofs")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	// Sensitive credentials from environment
	bindings := map[string]string{
		"auth.jwt_secret":   "JWT_SECRET",
		"lark.app_id":       "LARK_APP_ID",
		"lark.app_secret":   "LARK_APP_SECRET",
		"openai.api_key":    "OPENAI_API_KEY",
		"openai.base_url":   "OPENAI_BASE_URL",
		"database.path":     "DATABASE_PATH",
		"server.port":       "PORT",
		"storage.proof_dir": "PROOF_DIR",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate token signing
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	// Lark credentials come in pairs
	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}

	if c.Storage.ProofDir == "" {
		return fmt.Errorf("storage.proof_dir is required")
	}

	return nil
}

// NotificationsEnabled reports whether Lark credentials are configured
func (c *Config) NotificationsEnabled() bool {
	return c.Lark.AppID != ""
}

// ExtractionEnabled reports whether an OpenAI API key is configured
func (c *Config) ExtractionEnabled() bool {
	return c.OpenAI.APIKey != ""
}
