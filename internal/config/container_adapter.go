package config

import (
	"github.com/garyjia/travel-expense/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// Server and auth settings stay with the HTTP layer.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
		OpenAI: container.OpenAIConfig{
			APIKey:      c.OpenAI.APIKey,
			BaseURL:     c.OpenAI.BaseURL,
			Model:       c.OpenAI.Model,
			Currency:    c.OpenAI.Currency,
			PromptsPath: c.OpenAI.PromptsPath,
			Timeout:     c.OpenAI.Timeout,
		},
		Storage: container.StorageConfig{
			ProofDir: c.Storage.ProofDir,
		},
	}
}
