package internal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestMCPExtractVideoID(t *testing.T) {
	s := NewMCPServer(newTestApp(t), "test")

	result, err := s.handleExtractVideoID(context.Background(), toolRequest(map[string]any{"url": "https://youtu.be/" + testVideoID}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, testVideoID, toolText(t, result))

	result, err = s.handleExtractVideoID(context.Background(), toolRequest(map[string]any{"url": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Invalid YouTube URL.", toolText(t, result))

	result, err = s.handleExtractVideoID(context.Background(), toolRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPGetMetadata(t *testing.T) {
	source := &fakeMetadata{metadata: &VideoMetadata{
		Title:       "A Talk",
		Channel:     "GopherCon",
		Duration:    90,
		HasCaptions: true,
		Tags:        []string{"go", "talks"},
	}}
	s := NewMCPServer(newTestApp(t, WithMetadataSources(source)), "test")

	result, err := s.handleGetMetadata(context.Background(), toolRequest(map[string]any{"url": testVideoID}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := toolText(t, result)
	assert.Contains(t, text, "Title: A Talk\n")
	assert.Contains(t, text, "Channel: GopherCon\n")
	assert.Contains(t, text, "Duration: 90 seconds\n")
	assert.Contains(t, text, "Has Captions: true\n")
	assert.Contains(t, text, "Tags: go, talks\n")
	assert.Contains(t, text, "Thumbnail: https://img.youtube.com/vi/"+testVideoID+"/0.jpg\n")
}

func TestMCPGetTranscript(t *testing.T) {
	speech := &fakeSpeech{text: "paid words"}
	s := NewMCPServer(newTestApp(t,
		WithTranscriptProviders(&fakeProvider{name: "captions", errs: []error{nil, ErrTranscriptUnavailable}, segments: []Segment{{Text: "free words"}}}),
		WithAudioSource(&fakeAudio{path: "/tmp/audio.mp3"}),
		WithSpeech(speech),
	), "test")

	result, err := s.handleGetTranscript(context.Background(), toolRequest(map[string]any{"url": testVideoID}))
	require.NoError(t, err)
	assert.Equal(t, "free words", toolText(t, result))

	// captions only, never Whisper
	result, err = s.handleGetTranscript(context.Background(), toolRequest(map[string]any{"url": "https://youtu.be/aaaaaaaaaaa"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), "no captions available")
	assert.Zero(t, speech.calls)
}

func TestMCPWhisperRequiresKey(t *testing.T) {
	speech := &fakeSpeech{text: "paid words"}
	s := NewMCPServer(newTestApp(t, WithAudioSource(&fakeAudio{path: "/tmp/audio.mp3"}), WithSpeech(speech)), "test")

	result, err := s.handleWhisperTranscribe(context.Background(), toolRequest(map[string]any{"url": testVideoID}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Zero(t, speech.calls)
}

func TestMCPWhisperTranscribe(t *testing.T) {
	speech := &fakeSpeech{text: " paid words "}
	app := newTestApp(t, WithAudioSource(&fakeAudio{path: "/tmp/audio.mp3"}), WithSpeech(speech))
	app.config.OpenAIAPIKey = "sk-test"
	s := NewMCPServer(app, "test")

	result, err := s.handleWhisperTranscribe(context.Background(), toolRequest(map[string]any{"url": testVideoID}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "paid words", toolText(t, result))
	assert.Equal(t, 1, speech.calls)
}

func TestMCPSummarize(t *testing.T) {
	s := NewMCPServer(newTestApp(t,
		WithTranscriptProviders(&fakeProvider{name: "captions", segments: []Segment{{Text: "talk"}}}),
		WithSummarizer(&fakeSummarizer{summary: "short version"}),
	), "test")

	result, err := s.handleSummarize(context.Background(), toolRequest(map[string]any{"url": testVideoID, "fallback_whisper": false}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "short version", toolText(t, result))

	result, err = s.handleSummarize(context.Background(), toolRequest(map[string]any{"url": "https://example.com"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Invalid YouTube URL.", toolText(t, result))
}

func TestMCPRegistersTools(t *testing.T) {
	s := NewMCPServer(newTestApp(t), "test")

	resp := s.GetServer().HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range []string{
		"extract_video_id",
		"get_youtube_metadata",
		"get_youtube_transcript",
		"transcribe_youtube_whisper",
		"summarize_youtube_video",
	} {
		assert.Contains(t, string(data), `"name":"`+name+`"`)
	}
	// IDs are not guaranteed to stay 11 characters
	assert.NotContains(t, string(data), "11 character")
	assert.Contains(t, string(data), "YouTube URL or video ID")
}
