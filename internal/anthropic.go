package internal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 2048

// AnthropicSummarizer uses the Claude messages API
type AnthropicSummarizer struct {
	apiKey string
	model  string

	once   sync.Once
	client *anthropic.Client
}

func NewAnthropicSummarizer(apiKey, model string) *AnthropicSummarizer {
	return &AnthropicSummarizer{apiKey: apiKey, model: model}
}

func (a *AnthropicSummarizer) Name() string { return "anthropic" }

func (a *AnthropicSummarizer) Summarize(ctx context.Context, system, prompt string) (string, error) {
	if a.apiKey == "" {
		return "", missingKey("anthropic")
	}
	a.once.Do(func() {
		a.client = anthropic.NewClient(option.WithAPIKey(a.apiKey))
	})

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(a.model)),
		MaxTokens: anthropic.Int(anthropicMaxTokens),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(system),
		})
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("creating message: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		sb.WriteString(block.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrNoSummary
	}
	return text, nil
}
