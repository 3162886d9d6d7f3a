package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	// BaseURL switches between Feishu and Lark; empty means the SDK default
	BaseURL string
}

// NewSDKClient creates a Lark SDK client with a cached tenant token
func NewSDKClient(cfg Config) *lark.Client {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}
	return lark.NewClient(cfg.AppID, cfg.AppSecret, opts...)
}
