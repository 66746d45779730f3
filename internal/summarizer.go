package internal

import (
	"context"
	"fmt"
	"slices"
)

// Summarizer turns a system instruction and a prompt into a summary
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, system, prompt string) (string, error)
}

// Providers lists the supported summarization providers
var Providers = []string{"gemini", "openai", "anthropic", "ollama"}

// ValidateProvider checks that a provider name is supported
func ValidateProvider(provider string) error {
	if slices.Contains(Providers, provider) {
		return nil
	}
	return fmt.Errorf("%w: %s (supported: %v)", ErrUnknownProvider, provider, Providers)
}

// NewSummarizer builds the summarizer selected in config. Clients connect lazily.
func NewSummarizer(config *Config) (Summarizer, error) {
	model := config.Model
	if model == "" {
		model = DefaultModel(config.Provider)
	}

	switch config.Provider {
	case "gemini":
		return NewGeminiSummarizer(config.GoogleAPIKey, model), nil
	case "openai":
		return NewOpenAISummarizer(nil, config.OpenAIAPIKey, config.OpenAIBaseURL, model), nil
	case "anthropic":
		return NewAnthropicSummarizer(config.AnthropicAPIKey, model), nil
	case "ollama":
		return NewOllamaSummarizer(config.OllamaURL, model), nil
	}
	return nil, ValidateProvider(config.Provider)
}

// unavailableSummarizer reports a configuration error when asked to summarize
type unavailableSummarizer struct {
	name string
	err  error
}

func (u unavailableSummarizer) Name() string { return u.name }

func (u unavailableSummarizer) Summarize(context.Context, string, string) (string, error) {
	return "", u.err
}

func missingKey(provider string) error {
	return fmt.Errorf("%w: set the %s environment variable for %s", ErrMissingAPIKey, APIKeyEnv(provider), provider)
}
