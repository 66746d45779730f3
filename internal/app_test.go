package internal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVideoID = "dQw4w9WgXcQ"

type fakeProvider struct {
	name     string
	segments []Segment
	// errs are returned in order, one per call; calls past the end succeed
	errs []error

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Transcript(_ context.Context, _ string) ([]Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= len(f.errs) && f.errs[f.calls-1] != nil {
		return nil, f.errs[f.calls-1]
	}
	return f.segments, nil
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSummarizer struct {
	summary string
	err     error

	mu         sync.Mutex
	calls      int
	lastSystem string
	lastPrompt string
}

func (f *fakeSummarizer) Name() string { return "fake" }

func (f *fakeSummarizer) Summarize(_ context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSystem = system
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	if f.summary != "" {
		return f.summary, nil
	}
	return "summary of: " + prompt, nil
}

func (f *fakeSummarizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMetadata struct {
	metadata *VideoMetadata
	err      error
}

func (f *fakeMetadata) Name() string { return "fake-metadata" }

func (f *fakeMetadata) Metadata(context.Context, VideoRef) (*VideoMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	m := *f.metadata
	return &m, nil
}

type fakeAudio struct {
	path  string
	err   error
	calls int
}

func (f *fakeAudio) Audio(context.Context, VideoRef, ProgressBar) (string, error) {
	f.calls++
	return f.path, f.err
}

type fakeSpeech struct {
	text     string
	err      error
	readyErr error
	calls    int
}

func (f *fakeSpeech) Ready() error { return f.readyErr }

func (f *fakeSpeech) Transcribe(context.Context, string, ProgressBar) (string, error) {
	f.calls++
	return f.text, f.err
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Provider:       "fake",
		Model:          "test-model",
		SystemPrompt:   DefaultSystemPrompt,
		Language:       "en",
		CacheBackend:   "none",
		FetchTimeout:   5 * time.Second,
		SummaryTimeout: 5 * time.Second,
		RateLimit:      100,
		RateBurst:      100,
		ConfigDir:      t.TempDir(),
		TempDir:        t.TempDir(),
	}
}

func newTestApp(t *testing.T, options ...AppOption) *App {
	t.Helper()
	defaults := []AppOption{
		WithStore(NopStore{}),
		WithUI(NewUIManager(false, true)),
		WithTranscriptProviders(),
		WithMetadataSources(),
		WithSummarizer(&fakeSummarizer{}),
		WithRetryDelay(time.Millisecond),
	}
	app := NewApp(testConfig(t), append(defaults, options...)...)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestSummarizeEndToEnd(t *testing.T) {
	provider := &fakeProvider{name: "captions", segments: []Segment{{Text: " hello "}, {Text: "  "}, {Text: "world"}}}
	summarizer := &fakeSummarizer{}
	app := newTestApp(t, WithTranscriptProviders(provider), WithSummarizer(summarizer))

	result, err := app.Summarize(context.Background(), "https://www.youtube.com/watch?v="+testVideoID, TranscriptOptions{})
	require.NoError(t, err)

	assert.Equal(t, testVideoID, result.VideoID)
	assert.Equal(t, "hello world", result.Transcript)
	assert.Equal(t, "captions", result.TranscriptSource)
	assert.Equal(t, "summary of: hello world", result.Summary)
	assert.Equal(t, "https://img.youtube.com/vi/"+testVideoID+"/0.jpg", result.ThumbnailURL)
	assert.Nil(t, result.Metadata)

	assert.Equal(t, "Summarize the following text:", summarizer.lastSystem)
	assert.Equal(t, "hello world\n", summarizer.lastPrompt)
}

func TestSummarizeIncludesMetadataInPrompt(t *testing.T) {
	provider := &fakeProvider{name: "captions", segments: []Segment{{Text: "hello world"}}}
	summarizer := &fakeSummarizer{summary: "ok"}
	source := &fakeMetadata{metadata: &VideoMetadata{Title: "A Talk", Channel: "Some Channel"}}
	app := newTestApp(t, WithTranscriptProviders(provider), WithSummarizer(summarizer), WithMetadataSources(source))

	result, err := app.Summarize(context.Background(), testVideoID, TranscriptOptions{})
	require.NoError(t, err)

	require.NotNil(t, result.Metadata)
	assert.Equal(t, "A Talk", result.Metadata.Title)
	assert.Equal(t, ThumbnailURL(testVideoID), result.Metadata.ThumbnailURL)
	assert.Equal(t, "Title: A Talk\nChannel: Some Channel\n\nhello world\n", summarizer.lastPrompt)
}

func TestSummarizeMetadataFailureIsNotFatal(t *testing.T) {
	provider := &fakeProvider{name: "captions", segments: []Segment{{Text: "hello"}}}
	source := &fakeMetadata{err: errors.New("boom")}
	app := newTestApp(t, WithTranscriptProviders(provider), WithMetadataSources(source))

	result, err := app.Summarize(context.Background(), testVideoID, TranscriptOptions{})
	require.NoError(t, err)
	assert.Nil(t, result.Metadata)
	assert.NotEmpty(t, result.Summary)
}

func TestSummarizeInvalidURL(t *testing.T) {
	summarizer := &fakeSummarizer{}
	app := newTestApp(t, WithSummarizer(summarizer))

	result, err := app.Summarize(context.Background(), "https://example.com/nothing", TranscriptOptions{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, StageParse, StageOf(err))
	assert.Equal(t, "Invalid YouTube URL.", UserMessage(err))
	assert.Zero(t, summarizer.Calls())
}

func TestSummarizerNotCalledWhenTranscriptFails(t *testing.T) {
	provider := &fakeProvider{name: "captions", errs: []error{ErrTranscriptDisabled}}
	summarizer := &fakeSummarizer{}
	app := newTestApp(t, WithTranscriptProviders(provider), WithSummarizer(summarizer))

	_, err := app.Summarize(context.Background(), testVideoID, TranscriptOptions{})
	require.Error(t, err)
	assert.Equal(t, StageTranscript, StageOf(err))
	assert.ErrorIs(t, err, ErrTranscriptUnavailable)
	assert.ErrorIs(t, err, ErrTranscriptDisabled)
	assert.Equal(t, "Transcripts are disabled for this video.", UserMessage(err))
	assert.Zero(t, summarizer.Calls())
}

func TestEmptyTranscriptIsNeverSummarized(t *testing.T) {
	provider := &fakeProvider{name: "captions", segments: []Segment{{Text: "  "}, {Text: ""}}}
	summarizer := &fakeSummarizer{}
	app := newTestApp(t, WithTranscriptProviders(provider), WithSummarizer(summarizer))

	_, err := app.Summarize(context.Background(), testVideoID, TranscriptOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyTranscript)
	assert.Zero(t, summarizer.Calls())

	_, err = app.GenerateSummary(context.Background(), VideoRef{ID: testVideoID}, " \n\t", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyTranscript)
	assert.Equal(t, StageSummary, StageOf(err))
	assert.Zero(t, summarizer.Calls())
}

func TestSummaryFailureKeepsTranscript(t *testing.T) {
	provider := &fakeProvider{name: "captions", segments: []Segment{{Text: "hello"}}}
	summarizer := &fakeSummarizer{err: errors.New("quota exceeded")}
	app := newTestApp(t, WithTranscriptProviders(provider), WithSummarizer(summarizer))

	result, err := app.Summarize(context.Background(), testVideoID, TranscriptOptions{})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "hello", result.Transcript)
	assert.Empty(t, result.Summary)
	assert.Equal(t, StageSummary, StageOf(err))
	assert.Equal(t, "Error generating summary: quota exceeded", UserMessage(err))
}

func TestBlankSummaryIsAnError(t *testing.T) {
	provider := &fakeProvider{name: "captions", segments: []Segment{{Text: "hello"}}}
	summarizer := &fakeSummarizer{summary: "   "}
	app := newTestApp(t, WithTranscriptProviders(provider), WithSummarizer(summarizer))

	_, err := app.Summarize(context.Background(), testVideoID, TranscriptOptions{})
	assert.ErrorIs(t, err, ErrNoSummary)
}

func TestGetTranscriptRetriesDownloadFailureOnce(t *testing.T) {
	provider := &fakeProvider{
		name:     "captions",
		segments: []Segment{{Text: "second try"}},
		errs:     []error{ErrDownloadFailed},
	}
	app := newTestApp(t, WithTranscriptProviders(provider))

	transcript, err := app.GetTranscript(context.Background(), VideoRef{ID: testVideoID})
	require.NoError(t, err)
	assert.Equal(t, "second try", transcript.Text)
	assert.Equal(t, 2, provider.Calls())
}

func TestGetTranscriptGivesUpAfterSecondDownloadFailure(t *testing.T) {
	provider := &fakeProvider{name: "captions", errs: []error{ErrDownloadFailed, ErrDownloadFailed, nil}}
	app := newTestApp(t, WithTranscriptProviders(provider))

	_, err := app.GetTranscript(context.Background(), VideoRef{ID: testVideoID})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.Equal(t, 2, provider.Calls())
}

func TestGetTranscriptDoesNotRetryOtherErrors(t *testing.T) {
	provider := &fakeProvider{name: "captions", errs: []error{errors.New("not found"), nil}}
	app := newTestApp(t, WithTranscriptProviders(provider))

	_, err := app.GetTranscript(context.Background(), VideoRef{ID: testVideoID})
	require.Error(t, err)
	assert.Equal(t, 1, provider.Calls())
}

func TestGetTranscriptFallsThroughProviders(t *testing.T) {
	first := &fakeProvider{name: "captions", errs: []error{ErrTranscriptUnavailable}}
	second := &fakeProvider{name: "ytdlp", segments: []Segment{{Text: "from ytdlp"}}}
	app := newTestApp(t, WithTranscriptProviders(first, second))

	transcript, err := app.GetTranscript(context.Background(), VideoRef{ID: testVideoID})
	require.NoError(t, err)
	assert.Equal(t, "ytdlp", transcript.Source)
	assert.Equal(t, "from ytdlp", transcript.Text)
}

func TestGetTranscriptWithoutProviders(t *testing.T) {
	app := newTestApp(t)

	_, err := app.GetTranscript(context.Background(), VideoRef{ID: testVideoID})
	assert.ErrorIs(t, err, ErrTranscriptUnavailable)
	assert.Equal(t, StageTranscript, StageOf(err))
}

func TestTranscriptIsCached(t *testing.T) {
	provider := &fakeProvider{name: "captions", segments: []Segment{{Text: "cached text"}}}
	store := NewFileStore(t.TempDir())
	app := newTestApp(t, WithTranscriptProviders(provider), WithStore(store))
	ref := VideoRef{ID: testVideoID}

	first, err := app.GetTranscript(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "captions", first.Source)

	second, err := app.GetTranscript(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "cache", second.Source)
	assert.Equal(t, "cached text", second.Text)
	assert.Equal(t, 1, provider.Calls())
}

func TestSummaryIsCached(t *testing.T) {
	provider := &fakeProvider{name: "captions", segments: []Segment{{Text: "hello"}}}
	summarizer := &fakeSummarizer{summary: "short"}
	app := newTestApp(t, WithTranscriptProviders(provider), WithSummarizer(summarizer), WithStore(NewFileStore(t.TempDir())))

	for range 2 {
		result, err := app.Summarize(context.Background(), testVideoID, TranscriptOptions{})
		require.NoError(t, err)
		assert.Equal(t, "short", result.Summary)
	}
	assert.Equal(t, 1, summarizer.Calls())
}

func TestWhisperFallback(t *testing.T) {
	failing := &fakeProvider{name: "captions", errs: []error{ErrTranscriptUnavailable}}
	speech := &fakeSpeech{text: " spoken words "}
	app := newTestApp(t,
		WithTranscriptProviders(failing),
		WithAudioSource(&fakeAudio{path: "/tmp/audio.mp3"}),
		WithSpeech(speech),
	)
	ref := VideoRef{ID: testVideoID}

	t.Run("disabled", func(t *testing.T) {
		_, err := app.TranscriptWithFallback(context.Background(), ref, TranscriptOptions{})
		assert.ErrorIs(t, err, ErrTranscriptUnavailable)
		assert.Zero(t, speech.calls)
	})

	t.Run("declined", func(t *testing.T) {
		_, err := app.TranscriptWithFallback(context.Background(), ref, TranscriptOptions{
			Confirm: func(string) bool { return false },
		})
		assert.ErrorIs(t, err, ErrTranscriptUnavailable)
		assert.Zero(t, speech.calls)
	})

	t.Run("confirmed", func(t *testing.T) {
		transcript, err := app.TranscriptWithFallback(context.Background(), ref, TranscriptOptions{
			Confirm: func(string) bool { return true },
		})
		require.NoError(t, err)
		assert.Equal(t, "whisper", transcript.Source)
		assert.Equal(t, "spoken words", transcript.Text)
		assert.Equal(t, 1, speech.calls)
	})

	t.Run("forced", func(t *testing.T) {
		transcript, err := app.TranscriptWithFallback(context.Background(), ref, TranscriptOptions{FallbackWhisper: true})
		require.NoError(t, err)
		assert.Equal(t, "spoken words", transcript.Text)
		assert.Equal(t, 2, speech.calls)
	})
}

func TestTranscribeAudioErrors(t *testing.T) {
	ref := VideoRef{ID: testVideoID}

	app := newTestApp(t, WithAudioSource(&fakeAudio{err: ErrDownloadFailed}), WithSpeech(&fakeSpeech{text: "x"}))
	_, err := app.TranscribeAudio(context.Background(), ref)
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.Equal(t, StageTranscript, StageOf(err))

	app = newTestApp(t, WithAudioSource(&fakeAudio{path: "a.mp3"}), WithSpeech(&fakeSpeech{text: "   "}))
	_, err = app.TranscribeAudio(context.Background(), ref)
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestTranscribeAudioChecksSpeechBeforeDownload(t *testing.T) {
	audio := &fakeAudio{path: "/tmp/audio.mp3"}
	speech := &fakeSpeech{text: "x", readyErr: missingKey("openai")}
	app := newTestApp(t, WithAudioSource(audio), WithSpeech(speech))

	_, err := app.TranscribeAudio(context.Background(), VideoRef{ID: testVideoID})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, StageTranscript, StageOf(err))
	assert.Zero(t, audio.calls)
	assert.Zero(t, speech.calls)
}

func TestMetadataFallsThroughSources(t *testing.T) {
	first := &fakeMetadata{err: errors.New("blocked")}
	second := &fakeMetadata{metadata: &VideoMetadata{Title: "Second", ThumbnailURL: "https://example.com/t.jpg"}}
	app := newTestApp(t, WithMetadataSources(first, second), WithStore(NewFileStore(t.TempDir())))
	ref := VideoRef{ID: testVideoID}

	metadata, err := app.Metadata(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "Second", metadata.Title)
	assert.Equal(t, "https://example.com/t.jpg", metadata.ThumbnailURL)

	// served from cache even when every source fails now
	second.err = errors.New("gone")
	metadata, err = app.Metadata(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "Second", metadata.Title)
}

func TestMetadataAllSourcesFail(t *testing.T) {
	app := newTestApp(t, WithMetadataSources(&fakeMetadata{err: errors.New("alpha down")}, &fakeMetadata{err: errors.New("beta down")}))

	_, err := app.Metadata(context.Background(), VideoRef{ID: testVideoID})
	require.Error(t, err)
	assert.Equal(t, StageMetadata, StageOf(err))
	assert.Contains(t, err.Error(), "alpha down")
	assert.Contains(t, err.Error(), "beta down")
}

func TestCustomPromptManager(t *testing.T) {
	provider := &fakeProvider{name: "captions", segments: []Segment{{Text: "words"}}}
	summarizer := &fakeSummarizer{summary: "ok"}
	app := newTestApp(t, WithTranscriptProviders(provider), WithSummarizer(summarizer))
	app.SetPromptManager(NewPromptManager("", "tldr: {{.Transcript}}", "Be brief."))

	_, err := app.Summarize(context.Background(), testVideoID, TranscriptOptions{})
	require.NoError(t, err)
	assert.Equal(t, "tldr: words", summarizer.lastPrompt)
	assert.Equal(t, "Be brief.", summarizer.lastSystem)
}

func TestCancelledContextStopsTranscript(t *testing.T) {
	provider := &fakeProvider{name: "captions", errs: []error{context.Canceled}}
	next := &fakeProvider{name: "ytdlp", segments: []Segment{{Text: "never"}}}
	app := newTestApp(t, WithTranscriptProviders(provider, next))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := app.GetTranscript(ctx, VideoRef{ID: testVideoID})
	require.Error(t, err)
	assert.Zero(t, next.Calls())
}

func TestSummarizeShortWatchID(t *testing.T) {
	provider := &fakeProvider{name: "captions", segments: []Segment{{Text: "hello"}, {Text: "world"}}}
	app := newTestApp(t, WithTranscriptProviders(provider))

	result, err := app.Summarize(context.Background(), "https://www.youtube.com/watch?v=abc123", TranscriptOptions{})
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.VideoID)
	assert.Equal(t, "hello world", result.Transcript)
	assert.Contains(t, result.Summary, "hello world")
}
