package openai

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompleter struct {
	content string
	err     error
	req     openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.content}},
		},
	}, nil
}

func newTestExtractor(t *testing.T, client chatCompleter) *ReceiptExtractor {
	t.Helper()
	prompts, err := LoadPrompts("")
	require.NoError(t, err)
	return newReceiptExtractor(client, Config{Model: "gpt-4o-mini", Currency: "PEN"}, prompts, zap.NewNop())
}

func TestReceiptExtractor_Extract(t *testing.T) {
	client := &fakeCompleter{content: `{"amount": 59.5, "currency": "pen", "vendor": " Taxi Lima ", "date": "2024-05-10", "confidence": 0.92}`}
	extractor := newTestExtractor(t, client)

	suggestion, err := extractor.Extract(context.Background(), []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "59.50", suggestion.Amount.StringFixed(2))
	assert.Equal(t, "PEN", suggestion.Currency)
	assert.Equal(t, "Taxi Lima", suggestion.Vendor)
	assert.Equal(t, "2024-05-10", suggestion.Date)
	assert.InDelta(t, 0.92, suggestion.Confidence, 1e-9)

	assert.Equal(t, "gpt-4o-mini", client.req.Model)
	require.Len(t, client.req.Messages, 2)
	parts := client.req.Messages[1].MultiContent
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "usually in PEN")
	assert.Equal(t, "data:image/jpeg;base64,anBlZw==", parts[1].ImageURL.URL)
	assert.Equal(t, openai.ImageURLDetailHigh, parts[1].ImageURL.Detail)
}

func TestReceiptExtractor_MarkdownResponse(t *testing.T) {
	client := &fakeCompleter{content: "Here you go:\n```json\n{\"amount\": \"120.00\", \"vendor\": \"Hotel {Cusco}\", \"date\": \"10/05/2024\", \"confidence\": 3}\n```"}
	extractor := newTestExtractor(t, client)

	suggestion, err := extractor.Extract(context.Background(), []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "120.00", suggestion.Amount.StringFixed(2))
	assert.Equal(t, "Hotel {Cusco}", suggestion.Vendor)
	assert.Empty(t, suggestion.Date)
	assert.Equal(t, 1.0, suggestion.Confidence)
}

func TestReceiptExtractor_Errors(t *testing.T) {
	_, err := newTestExtractor(t, &fakeCompleter{err: errors.New("rate limited")}).
		Extract(context.Background(), []byte("x"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	_, err = newTestExtractor(t, &fakeCompleter{content: "I cannot read this receipt."}).
		Extract(context.Background(), []byte("x"), "image/png")
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a": {"b": "}"}}`, extractJSON(`text {"a": {"b": "}"}} more`))
	assert.Empty(t, extractJSON("no json"))
	assert.Empty(t, extractJSON(`{"unterminated": 1`))
	assert.True(t, strings.HasPrefix(extractJSON("```json\n{\"x\":1}\n```"), "{"))
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, "1234.50", parseAmount("1,234.50").StringFixed(2))
	assert.Equal(t, "18.00", parseAmount(18.0).StringFixed(2))
	assert.True(t, parseAmount("").IsZero())
	assert.True(t, parseAmount(nil).IsZero())
}
