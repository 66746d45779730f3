package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// Captions talks to YouTube directly through the kkdai client.
// It serves transcripts, metadata and raw audio streams.
type Captions struct {
	client   *youtube.Client
	audio    *Audio
	language string
	tempDir  string
	verbose  bool
}

// NewCaptions creates a native YouTube client; audio may be nil when downloads aren't needed
func NewCaptions(httpClient *http.Client, audio *Audio, language, tempDir string, verbose bool) *Captions {
	if language == "" {
		language = "en"
	}
	return &Captions{
		client:   &youtube.Client{HTTPClient: httpClient},
		audio:    audio,
		language: language,
		tempDir:  tempDir,
		verbose:  verbose,
	}
}

func (c *Captions) Name() string { return "captions" }

// Transcript fetches the caption track in the configured language
func (c *Captions) Transcript(ctx context.Context, videoID string) ([]Segment, error) {
	video, err := c.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, classifyYouTubeError(err)
	}

	if c.verbose {
		fmt.Printf("Fetching %s captions for %s\n", c.language, videoID)
	}

	transcript, err := c.client.GetTranscriptCtx(ctx, video, c.language)
	if err != nil {
		return nil, classifyYouTubeError(err)
	}

	segments := make([]Segment, 0, len(transcript))
	for _, s := range transcript {
		segments = append(segments, Segment{
			Text:     s.Text,
			Start:    float64(s.StartMs) / 1000,
			Duration: float64(s.Duration) / 1000,
		})
	}
	return segments, nil
}

// Metadata reads title, author, description and duration from the player response
func (c *Captions) Metadata(ctx context.Context, ref VideoRef) (*VideoMetadata, error) {
	video, err := c.client.GetVideoContext(ctx, ref.ID)
	if err != nil {
		return nil, classifyYouTubeError(err)
	}

	return &VideoMetadata{
		Title:        video.Title,
		Description:  video.Description,
		Channel:      video.Author,
		Uploader:     video.Author,
		Duration:     video.Duration.Seconds(),
		ThumbnailURL: ref.ThumbnailURL(),
	}, nil
}

// Audio downloads the smallest audio-only stream and converts it to mp3
func (c *Captions) Audio(ctx context.Context, ref VideoRef, bar ProgressBar) (string, error) {
	if c.audio == nil {
		return "", errors.New("native audio download needs ffmpeg support")
	}

	video, err := c.client.GetVideoContext(ctx, ref.ID)
	if err != nil {
		return "", classifyYouTubeError(err)
	}

	format := smallestAudioFormat(video.Formats)
	if format == nil {
		return "", fmt.Errorf("no audio stream for %s", ref.ID)
	}

	if err := EnsureDirs(c.tempDir); err != nil {
		return "", fmt.Errorf("creating temp directory: %w", err)
	}
	dir, err := os.MkdirTemp(c.tempDir, "audio-"+ref.ID+"-")
	if err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}

	stream, size, err := c.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return discardWorkDir(dir, classifyYouTubeError(err))
	}
	defer stream.Close()

	raw := filepath.Join(dir, ref.ID+extensionFor(format.MimeType))
	if err := writeStream(raw, stream, size, bar); err != nil {
		return discardWorkDir(dir, err)
	}

	output := filepath.Join(dir, ref.ID+".mp3")
	if err := c.audio.Convert(ctx, raw, output); err != nil {
		return discardWorkDir(dir, fmt.Errorf("converting audio: %w", err))
	}
	cleanupFiles(raw)

	if c.verbose {
		fmt.Printf("Audio saved to %s\n", output)
	}
	return output, nil
}

func smallestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || (f.Bitrate > 0 && f.Bitrate < best.Bitrate) {
			best = f
		}
	}
	return best
}

func extensionFor(mimeType string) string {
	if strings.HasPrefix(mimeType, "audio/mp4") {
		return ".m4a"
	}
	return ".webm"
}

func writeStream(path string, r io.Reader, size int64, bar ProgressBar) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating audio file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	if bar != nil && size > 0 {
		w = io.MultiWriter(f, &progressWriter{bar: bar, total: size})
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return nil
}

// progressWriter reports bytes written as a percentage
type progressWriter struct {
	bar     ProgressBar
	total   int64
	written int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	p.bar.Set(int(p.written * 100 / p.total))
	return len(b), nil
}

func classifyYouTubeError(err error) error {
	switch {
	case errors.Is(err, youtube.ErrTranscriptDisabled):
		return fmt.Errorf("%w: %v", ErrTranscriptDisabled, err)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID), errors.Is(err, youtube.ErrVideoIDMinLength):
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	case isRetryable(err):
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return err
}
