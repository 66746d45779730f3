package internal

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIClientInterface defines the interface for OpenAI client operations
type OpenAIClientInterface interface {
	CreateTranscription(ctx context.Context, file *os.File) (string, error)
	CreateChatCompletion(ctx context.Context, model, system, prompt string) (string, error)
}

// OpenAIClient wraps the official OpenAI Go SDK
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client; baseURL selects a compatible endpoint
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{client: &client}
}

// CreateTranscription implements the transcription method
func (c *OpenAIClient) CreateTranscription(ctx context.Context, file *os.File) (string, error) {
	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  file,
		Model: openai.AudioModelWhisper1,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// CreateChatCompletion implements the chat completion method
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, model, system, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoSummary
	}
	return resp.Choices[0].Message.Content, nil
}

// lazyOpenAI creates the client on first use so commands without a key still run
type lazyOpenAI struct {
	apiKey  string
	baseURL string

	once   sync.Once
	client OpenAIClientInterface
}

func newLazyOpenAI(apiKey, baseURL string, client OpenAIClientInterface) *lazyOpenAI {
	return &lazyOpenAI{apiKey: apiKey, baseURL: baseURL, client: client}
}

func (l *lazyOpenAI) get() (OpenAIClientInterface, error) {
	l.once.Do(func() {
		if l.client == nil && l.apiKey != "" {
			l.client = NewOpenAIClient(l.apiKey, l.baseURL)
		}
	})
	if l.client == nil {
		return nil, fmt.Errorf("%w: set it in config.toml or the OPENAI_API_KEY environment variable", ErrMissingAPIKey)
	}
	return l.client, nil
}

// Whisper transcribes audio with OpenAI's Whisper API, chunking large files
type Whisper struct {
	openai       *lazyOpenAI
	audio        *Audio
	whisperLimit int64
	timeout      time.Duration
	verbose      bool
}

// NewWhisper creates a transcriber; client may be nil to build one from apiKey on first use
func NewWhisper(client OpenAIClientInterface, apiKey, baseURL string, audio *Audio, whisperLimit int64, timeout time.Duration, verbose bool) *Whisper {
	return &Whisper{
		openai:       newLazyOpenAI(apiKey, baseURL, client),
		audio:        audio,
		whisperLimit: whisperLimit,
		timeout:      timeout,
		verbose:      verbose,
	}
}

// Ready fails when no API key is configured
func (w *Whisper) Ready() error {
	_, err := w.openai.get()
	return err
}

// Transcribe transcribes an audio file. The file, its chunks and its work dir are
// removed on every return.
func (w *Whisper) Transcribe(ctx context.Context, audioFile string, bar ProgressBar) (string, error) {
	var chunks []string
	defer cleanupFiles(audioFile)
	defer func() { cleanupFiles(chunks...) }()

	client, err := w.openai.get()
	if err != nil {
		return "", err
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	if w.verbose {
		fmt.Printf("Transcribing audio file: %s\n", audioFile)
	}

	info, err := os.Stat(audioFile)
	if err != nil {
		return "", fmt.Errorf("getting audio file info: %w", err)
	}

	numChunks := int(math.Ceil(float64(info.Size()) / float64(w.whisperLimit)))
	if numChunks > 1 {
		chunks, err = w.audio.Split(ctx, audioFile, numChunks)
		if err != nil {
			return "", fmt.Errorf("splitting audio: %w", err)
		}
	}

	parts := chunks
	if len(parts) == 0 {
		parts = []string{audioFile}
	}
	transcript, err := w.processAudioChunks(ctx, client, parts, bar)
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}
	return transcript, nil
}

// processAudioChunks transcribes audio chunks sequentially
// NOTE: concurrent chunk uploads once returned a broken transcript for one chunk
func (w *Whisper) processAudioChunks(ctx context.Context, client OpenAIClientInterface, chunks []string, bar ProgressBar) (string, error) {
	numChunks := len(chunks)

	if w.verbose {
		fmt.Printf("Transcribing chunks (%d)\n", numChunks)
	}

	var sb strings.Builder
	for i, chunkPath := range chunks {
		file, err := os.Open(chunkPath)
		if err != nil {
			return "", fmt.Errorf("opening chunk %s: %w", chunkPath, err)
		}

		text, err := client.CreateTranscription(ctx, file)
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close file %s: %v\n", chunkPath, closeErr)
		}
		if err != nil {
			return "", fmt.Errorf("transcribing chunk %d: %w", i+1, err)
		}

		sb.WriteString(text)
		if i < numChunks-1 {
			sb.WriteString("\n")
		}

		if bar != nil {
			bar.Set((i + 1) * 100 / numChunks)
		}
		if w.verbose {
			fmt.Printf("Transcribed chunk %d/%d\n", i+1, numChunks)
		}
	}

	return sb.String(), nil
}

// OpenAISummarizer sends prompts to the chat completions API
type OpenAISummarizer struct {
	openai *lazyOpenAI
	model  string
}

// NewOpenAISummarizer creates a summarizer; client may be nil to build one from apiKey on first use
func NewOpenAISummarizer(client OpenAIClientInterface, apiKey, baseURL, model string) *OpenAISummarizer {
	return &OpenAISummarizer{openai: newLazyOpenAI(apiKey, baseURL, client), model: model}
}

func (s *OpenAISummarizer) Name() string { return "openai" }

func (s *OpenAISummarizer) Summarize(ctx context.Context, system, prompt string) (string, error) {
	client, err := s.openai.get()
	if err != nil {
		return "", err
	}
	content, err := client.CreateChatCompletion(ctx, s.model, system, prompt)
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrNoSummary
	}
	return content, nil
}
