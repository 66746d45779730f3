package internal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaSummarizer runs a local model through an Ollama server
type OllamaSummarizer struct {
	serverURL string
	model     string

	mu  sync.Mutex
	llm llms.Model
}

func NewOllamaSummarizer(serverURL, model string) *OllamaSummarizer {
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}
	return &OllamaSummarizer{serverURL: serverURL, model: model}
}

func (o *OllamaSummarizer) Name() string { return "ollama" }

func (o *OllamaSummarizer) ensureLLM() (llms.Model, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.llm != nil {
		return o.llm, nil
	}
	llm, err := ollama.New(ollama.WithModel(o.model), ollama.WithServerURL(o.serverURL))
	if err != nil {
		return nil, fmt.Errorf("initializing ollama: %w", err)
	}
	o.llm = llm
	return llm, nil
}

func (o *OllamaSummarizer) Summarize(ctx context.Context, system, prompt string) (string, error) {
	llm, err := o.ensureLLM()
	if err != nil {
		return "", err
	}

	var content []llms.MessageContent
	if system != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := llm.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoSummary
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", ErrNoSummary
	}
	return text, nil
}
