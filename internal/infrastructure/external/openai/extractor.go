package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/application/port"
)

// chatCompleter is the part of the OpenAI client the extractor needs
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds the OpenAI connection settings
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Currency string
	Timeout  time.Duration
}

// ReceiptExtractor implements port.ReceiptExtractor with a vision model
type ReceiptExtractor struct {
	client   chatCompleter
	prompts  *PromptConfig
	model    string
	currency string
	logger   *zap.Logger
}

// NewReceiptExtractor creates a new OpenAI receipt extractor
func NewReceiptExtractor(cfg Config, prompts *PromptConfig, logger *zap.Logger) *ReceiptExtractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return newReceiptExtractor(openai.NewClientWithConfig(clientCfg), cfg, prompts, logger)
}

func newReceiptExtractor(client chatCompleter, cfg Config, prompts *PromptConfig, logger *zap.Logger) *ReceiptExtractor {
	return &ReceiptExtractor{
		client:   client,
		prompts:  prompts,
		model:    cfg.Model,
		currency: cfg.Currency,
		logger:   logger,
	}
}

// receiptResponse is the JSON object the model is asked for
type receiptResponse struct {
	Amount     interface{} `json:"amount"`
	Currency   string      `json:"currency"`
	Vendor     string      `json:"vendor"`
	Date       string      `json:"date"`
	Confidence float64     `json:"confidence"`
}

// Extract reads the total, currency, vendor and date printed on a receipt image
func (e *ReceiptExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*port.ReceiptSuggestion, error) {
	p := e.prompts.ReceiptExtraction
	prompt, err := renderTemplate(p.UserTemplate, map[string]string{"Currency": e.currency})
	if err != nil {
		return nil, err
	}

	detail := openai.ImageURLDetail(p.Detail)
	if detail == "" {
		detail = openai.ImageURLDetailAuto
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: p.System,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image)),
							Detail: detail,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	var result receiptResponse
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		// models sometimes wrap the object in a markdown block
		jsonStr := extractJSON(content)
		if jsonStr == "" || json.Unmarshal([]byte(jsonStr), &result) != nil {
			e.logger.Error("Failed to parse OpenAI response", zap.Error(err), zap.String("content", content))
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	suggestion := toSuggestion(&result)
	e.logger.Info("Receipt extracted",
		zap.String("amount", suggestion.Amount.String()),
		zap.String("vendor", suggestion.Vendor),
		zap.Float64("confidence", suggestion.Confidence))
	return suggestion, nil
}

// toSuggestion drops values the model got structurally wrong
func toSuggestion(r *receiptResponse) *port.ReceiptSuggestion {
	s := &port.ReceiptSuggestion{
		Amount:     parseAmount(r.Amount).Round(2),
		Currency:   strings.ToUpper(strings.TrimSpace(r.Currency)),
		Vendor:     strings.TrimSpace(r.Vendor),
		Confidence: r.Confidence,
	}
	if s.Amount.IsNegative() {
		s.Amount = decimal.Zero
	}
	if len(s.Currency) != 3 {
		s.Currency = ""
	}
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(r.Date)); err == nil {
		s.Date = strings.TrimSpace(r.Date)
	}
	switch {
	case s.Confidence < 0:
		s.Confidence = 0
	case s.Confidence > 1:
		s.Confidence = 1
	}
	return s
}

// parseAmount accepts the amount as a JSON number or a numeric string
func parseAmount(v interface{}) decimal.Decimal {
	switch a := v.(type) {
	case float64:
		return decimal.NewFromFloat(a)
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(a), ",", ""))
		if err == nil {
			return d
		}
	}
	return decimal.Zero
}

// extractJSON returns the first balanced JSON object found in content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
