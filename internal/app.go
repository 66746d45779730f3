package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// App holds the application state and dependencies.
// It is safe for concurrent use once constructed.
type App struct {
	config          *Config
	providers       []TranscriptProvider
	metadataSources []MetadataSource
	audioSource     AudioSource
	speech          SpeechToText
	summarizer      Summarizer
	store           Store
	promptManager   *PromptManager
	ui              UIManager
	logger          zerolog.Logger
	retryDelay      time.Duration
}

// NewApp initializes the application
func NewApp(config *Config, options ...AppOption) *App {
	cmdRunner := &DefaultCommandRunner{}
	audio := NewAudio(cmdRunner, config.Verbose)

	// stream downloads are bounded by the context, page fetches by the client
	captions := NewCaptions(&http.Client{}, audio, config.Language, config.TempDir, config.Verbose)
	ytdlp := NewYtDlp(config.TempDir, config.Language, config.Verbose)
	watchPage := NewWatchPage(&http.Client{Timeout: config.FetchTimeout}, "")

	ui := NewUIManager(config.Verbose, config.Quiet)

	app := &App{
		config:        config,
		speech:        NewWhisper(nil, config.OpenAIAPIKey, "", audio, WhisperLimit, config.WhisperTimeout, config.Verbose),
		store:         defaultStore(config),
		promptManager: NewPromptManager(config.ConfigDir, config.Prompt, config.SystemPrompt),
		ui:            ui,
		logger:        zerolog.Nop(),
		retryDelay:    time.Second,
	}

	backends := map[string]any{
		captions.Name():  captions,
		ytdlp.Name():     ytdlp,
		watchPage.Name(): watchPage,
	}
	for _, name := range config.TranscriptProviders {
		if p, ok := backends[name].(TranscriptProvider); ok {
			app.providers = append(app.providers, p)
		} else {
			ui.Warn("unknown transcript provider %q", name)
		}
	}
	for _, name := range config.MetadataSources {
		if s, ok := backends[name].(MetadataSource); ok {
			app.metadataSources = append(app.metadataSources, s)
		} else {
			ui.Warn("unknown metadata source %q", name)
		}
	}

	if config.AudioBackend == "native" {
		app.audioSource = captions
	} else {
		app.audioSource = ytdlp
	}

	summarizer, err := NewSummarizer(config)
	if err != nil {
		summarizer = unavailableSummarizer{name: config.Provider, err: err}
	}
	app.summarizer = summarizer

	for _, option := range options {
		option(app)
	}

	return app
}

func defaultStore(config *Config) Store {
	if config.CacheBackend == "none" {
		return NopStore{}
	}
	return NewFileStore(config.TranscriptsDir)
}

// AppOption customizes App creation
type AppOption func(*App)

// WithTranscriptProviders replaces the provider chain, tried in order
func WithTranscriptProviders(providers ...TranscriptProvider) AppOption {
	return func(a *App) {
		a.providers = providers
	}
}

// WithMetadataSources replaces the metadata sources, tried in order
func WithMetadataSources(sources ...MetadataSource) AppOption {
	return func(a *App) {
		a.metadataSources = sources
	}
}

// WithAudioSource sets the audio downloader used for Whisper fallback
func WithAudioSource(source AudioSource) AppOption {
	return func(a *App) {
		a.audioSource = source
	}
}

// WithSpeech sets the speech recognizer used for Whisper fallback
func WithSpeech(speech SpeechToText) AppOption {
	return func(a *App) {
		a.speech = speech
	}
}

// WithSummarizer sets a custom summarizer
func WithSummarizer(summarizer Summarizer) AppOption {
	return func(a *App) {
		a.summarizer = summarizer
	}
}

// WithStore sets the cache
func WithStore(store Store) AppOption {
	return func(a *App) {
		a.store = store
	}
}

// WithUI sets the user interface
func WithUI(ui UIManager) AppOption {
	return func(a *App) {
		a.ui = ui
	}
}

// WithLogger sets the structured logger used by servers
func WithLogger(logger zerolog.Logger) AppOption {
	return func(a *App) {
		a.logger = logger
	}
}

// WithRetryDelay sets the pause before retrying a failed download
func WithRetryDelay(d time.Duration) AppOption {
	return func(a *App) {
		a.retryDelay = d
	}
}

// SetPromptManager sets a new prompt manager
func (app *App) SetPromptManager(pm *PromptManager) {
	app.promptManager = pm
}

// Config returns the configuration the app was built with
func (app *App) Config() *Config {
	return app.config
}

// Close releases the cache and any provider clients
func (app *App) Close() error {
	var errs []error
	if app.store != nil {
		errs = append(errs, app.store.Close())
	}
	if closer, ok := app.summarizer.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// Resolve turns user input into a video reference
func (app *App) Resolve(input string) (VideoRef, error) {
	parsed := ParseArg(input)
	if parsed.IsValid() {
		return parsed.Ref, nil
	}
	if parsed.ContentType == ContentTypePlaylist {
		return VideoRef{}, stageError(StageParse, parsed.Error)
	}
	return VideoRef{}, stageError(StageParse, fmt.Errorf("%w: %q", ErrInvalidURL, strings.TrimSpace(input)))
}

// GetTranscript returns the cached transcript or asks each provider in turn
func (app *App) GetTranscript(ctx context.Context, ref VideoRef) (*Transcript, error) {
	metrics.TranscriptRequests.Add(1)

	spinner := app.ui.NewSpinner("Fetching transcript...")
	defer spinner.Finish()

	if t, ok := app.cachedTranscript(ctx, ref.ID); ok {
		spinner.Describe("Found cached transcript")
		app.ui.Verbose("Found existing transcript for %s\n", ref.ID)
		return t, nil
	}

	if len(app.providers) == 0 {
		metrics.TranscriptErrors.Add(1)
		return nil, stageError(StageTranscript, fmt.Errorf("%w: no transcript providers configured", ErrTranscriptUnavailable))
	}

	var lastErr, disabledErr error
	for _, p := range app.providers {
		spinner.Describe(fmt.Sprintf("Fetching transcript (%s)...", p.Name()))
		app.ui.Verbose("Fetching transcript for %s with %s\n", ref.ID, p.Name())

		segments, err := app.fetchSegments(ctx, p, ref.ID)
		if err == nil && JoinSegments(segments) == "" {
			err = fmt.Errorf("%s: %w", p.Name(), ErrEmptyTranscript)
		}
		if err != nil {
			app.logger.Debug().Str("video_id", ref.ID).Str("provider", p.Name()).Err(err).Msg("transcript provider failed")
			app.ui.Verbose("%v\n", err)
			lastErr = err
			if errors.Is(err, ErrTranscriptDisabled) {
				disabledErr = err
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		t := &Transcript{VideoID: ref.ID, Source: p.Name(), Text: JoinSegments(segments), Segments: segments}
		app.saveTranscript(ctx, t)
		spinner.Describe("Transcript fetched.")
		return t, nil
	}

	metrics.TranscriptErrors.Add(1)
	if disabledErr != nil {
		lastErr = disabledErr
	}
	return nil, stageError(StageTranscript, transcriptUnavailable(lastErr))
}

func transcriptUnavailable(cause error) error {
	if cause == nil || errors.Is(cause, ErrTranscriptUnavailable) {
		if cause == nil {
			return ErrTranscriptUnavailable
		}
		return cause
	}
	return fmt.Errorf("%w: %w", ErrTranscriptUnavailable, cause)
}

// fetchSegments calls a provider, retrying once after a download failure
func (app *App) fetchSegments(ctx context.Context, p TranscriptProvider, videoID string) ([]Segment, error) {
	segments, err := app.callProvider(ctx, p, videoID)
	if errors.Is(err, ErrDownloadFailed) {
		app.ui.Verbose("Download failed, retrying in %s...\n", app.retryDelay)
		select {
		case <-time.After(app.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		segments, err = app.callProvider(ctx, p, videoID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}
	return segments, nil
}

func (app *App) callProvider(ctx context.Context, p TranscriptProvider, videoID string) ([]Segment, error) {
	if app.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.FetchTimeout)
		defer cancel()
	}
	return p.Transcript(ctx, videoID)
}

func (app *App) cachedTranscript(ctx context.Context, videoID string) (*Transcript, bool) {
	data, ok, err := app.store.Get(ctx, KindTranscript, videoID)
	if err != nil {
		app.ui.Warn("%v", err)
	}
	text := strings.TrimSpace(string(data))
	if !ok || text == "" {
		metrics.CacheMisses.Add(1)
		return nil, false
	}
	metrics.CacheHits.Add(1)
	return &Transcript{VideoID: videoID, Source: "cache", Text: text}, true
}

func (app *App) saveTranscript(ctx context.Context, t *Transcript) {
	if err := app.store.Put(ctx, KindTranscript, t.VideoID, []byte(t.Text)); err != nil {
		app.ui.Warn("%v", err)
	}
}

// TranscribeAudio downloads the audio track and runs speech recognition on it (costs money)
func (app *App) TranscribeAudio(ctx context.Context, ref VideoRef) (*Transcript, error) {
	if app.audioSource == nil || app.speech == nil {
		return nil, stageError(StageTranscript, errors.New("audio transcription is not configured"))
	}
	if err := app.speech.Ready(); err != nil {
		return nil, stageError(StageTranscript, err)
	}

	bar := app.ui.NewProgressBar(100, "Downloading audio")
	audioFile, err := app.audioSource.Audio(ctx, ref, bar)
	bar.Finish()
	if err != nil {
		return nil, stageError(StageTranscript, fmt.Errorf("downloading audio: %w", err))
	}

	bar = app.ui.NewProgressBar(100, "Transcribing with OpenAI Whisper")
	text, err := app.speech.Transcribe(ctx, audioFile, bar)
	bar.Finish()
	if err != nil {
		return nil, stageError(StageTranscript, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, stageError(StageTranscript, ErrEmptyTranscript)
	}

	metrics.WhisperTranscriptions.Add(1)
	t := &Transcript{VideoID: ref.ID, Source: "whisper", Text: text}
	app.saveTranscript(ctx, t)
	return t, nil
}

// TranscriptOptions controls the Whisper fallback
type TranscriptOptions struct {
	// FallbackWhisper transcribes audio without asking when captions fail
	FallbackWhisper bool
	// Confirm asks the user before the paid fallback; nil means never
	Confirm func(message string) bool
}

// TranscriptWithFallback gets captions and, when allowed, falls back to Whisper
func (app *App) TranscriptWithFallback(ctx context.Context, ref VideoRef, opts TranscriptOptions) (*Transcript, error) {
	t, err := app.GetTranscript(ctx, ref)
	if err == nil || ctx.Err() != nil {
		return t, err
	}

	if !opts.FallbackWhisper {
		if opts.Confirm == nil || !opts.Confirm("No captions available. Do you want to transcribe it using OpenAI's whisper ($$$)?") {
			return nil, err
		}
	}

	app.ui.Verbose("Falling back to Whisper: %v\n", err)
	return app.TranscribeAudio(ctx, ref)
}

// Metadata returns cached metadata or asks each source in turn
func (app *App) Metadata(ctx context.Context, ref VideoRef) (*VideoMetadata, error) {
	metrics.MetadataRequests.Add(1)

	if data, ok, err := app.store.Get(ctx, KindMetadata, ref.ID); err == nil && ok {
		if metadata, err := decodeMetadata(data); err == nil {
			metrics.CacheHits.Add(1)
			app.ui.Verbose("Using cached metadata for %s\n", ref.ID)
			return metadata, nil
		}
	}
	metrics.CacheMisses.Add(1)

	if len(app.metadataSources) == 0 {
		return nil, stageError(StageMetadata, errors.New("no metadata sources configured"))
	}

	var errs []error
	for _, src := range app.metadataSources {
		metadata, err := src.Metadata(ctx, ref)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if metadata.ThumbnailURL == "" {
			metadata.ThumbnailURL = ref.ThumbnailURL()
		}

		if data, err := encodeMetadata(metadata, time.Now()); err == nil {
			if err := app.store.Put(ctx, KindMetadata, ref.ID, data); err != nil {
				app.ui.Verbose("Warning: Failed to cache metadata: %v\n", err)
			}
		}
		return metadata, nil
	}

	return nil, stageError(StageMetadata, fmt.Errorf("fetching metadata: %w", errors.Join(errs...)))
}

// GenerateSummary asks the summarizer for a summary of a non-empty transcript
func (app *App) GenerateSummary(ctx context.Context, ref VideoRef, transcript string, metadata *VideoMetadata) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", stageError(StageSummary, ErrEmptyTranscript)
	}
	if app.summarizer == nil {
		return "", stageError(StageSummary, errors.New("no summarizer configured"))
	}

	prompt, err := app.promptManager.CreatePrompt(transcript, metadata)
	if err != nil {
		return "", stageError(StageSummary, fmt.Errorf("creating prompt: %w", err))
	}
	system := app.promptManager.SystemPrompt()

	key := CacheKey(ref.ID, app.summarizer.Name(), app.config.Model, system, prompt)
	if data, ok, err := app.store.Get(ctx, KindSummary, key); err == nil && ok && len(data) > 0 {
		metrics.CacheHits.Add(1)
		app.ui.Verbose("Using cached summary for %s\n", ref.ID)
		return string(data), nil
	}
	metrics.CacheMisses.Add(1)

	if app.config.SummaryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.SummaryTimeout)
		defer cancel()
	}

	metrics.LLMCalls.Add(1)
	summary, err := app.summarizer.Summarize(ctx, system, prompt)
	if err == nil && strings.TrimSpace(summary) == "" {
		err = ErrNoSummary
	}
	if err != nil {
		metrics.LLMErrors.Add(1)
		app.logger.Warn().Str("video_id", ref.ID).Str("provider", app.summarizer.Name()).Err(err).Msg("summary failed")
		return "", stageError(StageSummary, err)
	}
	summary = strings.TrimSpace(summary)

	if err := app.store.Put(ctx, KindSummary, key, []byte(summary)); err != nil {
		app.ui.Warn("%v", err)
	}
	return summary, nil
}

// Summarize runs the whole pipeline: parse, transcript, metadata, summary.
// On a summary failure the partial result still carries the transcript.
func (app *App) Summarize(ctx context.Context, input string, opts TranscriptOptions) (*Result, error) {
	metrics.SummarizeRequests.Add(1)

	ref, err := app.Resolve(input)
	if err != nil {
		return nil, err
	}

	result := &Result{
		VideoID:      ref.ID,
		URL:          ref.URL,
		ThumbnailURL: ref.ThumbnailURL(),
	}

	transcript, err := app.TranscriptWithFallback(ctx, ref, opts)
	if err != nil {
		return result, err
	}
	result.Transcript = transcript.Text
	result.TranscriptSource = transcript.Source

	metadata, err := app.Metadata(ctx, ref)
	if err != nil {
		app.ui.Verbose("Failed to extract video metadata: %v\n", err)
	}
	result.Metadata = metadata

	spinner := app.ui.NewSpinner("Transcript fetched. Generating summary...")
	summary, err := app.GenerateSummary(ctx, ref, transcript.Text, metadata)
	spinner.Finish()
	if err != nil {
		return result, err
	}
	result.Summary = summary

	app.logger.Info().
		Str("video_id", ref.ID).
		Str("transcript_source", transcript.Source).
		Str("provider", app.summarizer.Name()).
		Int("transcript_chars", len(transcript.Text)).
		Msg("summarized")

	return result, nil
}
