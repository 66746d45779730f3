package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

const ytdlpInstallTimeout = 5 * time.Minute

// YtDlp wraps the yt-dlp binary for subtitles, metadata and audio
type YtDlp struct {
	tempDir  string
	language string
	verbose  bool

	install func(ctx context.Context) error

	installMu sync.Mutex
	installed bool
}

// NewYtDlp creates a yt-dlp backed provider writing into tempDir
func NewYtDlp(tempDir, language string, verbose bool) *YtDlp {
	if language == "" {
		language = "en"
	}
	return &YtDlp{
		tempDir:  tempDir,
		language: language,
		verbose:  verbose,
		install: func(ctx context.Context) error {
			_, err := ytdlp.Install(ctx, nil)
			return err
		},
	}
}

func (yt *YtDlp) Name() string { return "ytdlp" }

// ensureInstalled downloads yt-dlp on first use. The download is not tied to the
// caller's cancellation, and a failed attempt is retried by the next caller.
func (yt *YtDlp) ensureInstalled(ctx context.Context) error {
	yt.installMu.Lock()
	defer yt.installMu.Unlock()

	if yt.installed {
		return nil
	}
	installCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ytdlpInstallTimeout)
	defer cancel()
	if err := yt.install(installCtx); err != nil {
		return fmt.Errorf("installing yt-dlp: %w", err)
	}
	yt.installed = true
	return nil
}

func (yt *YtDlp) workDir(prefix, videoID string) (string, error) {
	if err := EnsureDirs(yt.tempDir); err != nil {
		return "", fmt.Errorf("creating temp directory: %w", err)
	}
	dir, err := os.MkdirTemp(yt.tempDir, prefix+"-"+videoID+"-")
	if err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}
	return dir, nil
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// Metadata fetches video details with --dump-single-json
func (yt *YtDlp) Metadata(ctx context.Context, ref VideoRef) (*VideoMetadata, error) {
	if err := yt.ensureInstalled(ctx); err != nil {
		return nil, err
	}
	if yt.verbose {
		fmt.Println("Extracting video metadata...")
	}

	dl := ytdlp.New().
		DumpSingleJSON(). // Get all info in JSON format
		NoPlaylist().     // Don't process playlists
		SkipDownload()    // Don't download the actual video

	result, err := dl.Run(ctx, watchURL(ref.ID))
	if err != nil {
		return nil, fmt.Errorf("extracting video metadata: %w%s", err, stderrOf(result))
	}

	metadata, err := parseYtDlpMetadata([]byte(result.Stdout))
	if err != nil {
		return nil, err
	}
	if metadata.ThumbnailURL == "" {
		metadata.ThumbnailURL = ref.ThumbnailURL()
	}

	if yt.verbose {
		fmt.Printf("Title: %s\n", metadata.Title)
		fmt.Printf("Channel: %s\n", metadata.Channel)
		fmt.Printf("Duration: %.2f seconds\n", metadata.Duration)
		fmt.Printf("Chapters: %d\n", len(metadata.Chapters))
	}

	return metadata, nil
}

func parseYtDlpMetadata(data []byte) (*VideoMetadata, error) {
	// raw map first for subtitle availability
	var rawData map[string]any
	if err := json.Unmarshal(data, &rawData); err != nil {
		return nil, fmt.Errorf("parsing video metadata: %w", err)
	}

	var metadata VideoMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("parsing video metadata: %w", err)
	}
	metadata.HasCaptions = extractSubtitleInfo(rawData)
	return &metadata, nil
}

// Audio downloads the best audio track as low quality mp3
func (yt *YtDlp) Audio(ctx context.Context, ref VideoRef, bar ProgressBar) (string, error) {
	if err := yt.ensureInstalled(ctx); err != nil {
		return "", err
	}
	if yt.verbose {
		fmt.Println("Downloading audio...")
	}

	dir, err := yt.workDir("audio", ref.ID)
	if err != nil {
		return "", err
	}

	dl := ytdlp.New().
		Format("bestaudio").
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality("10"). // 0 is best, 10 is worst
		NoPlaylist().
		Output(filepath.Join(dir, "%(id)s.%(ext)s"))

	if bar != nil {
		dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
			if update.TotalBytes > 0 {
				bar.Set(int(float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100))
			}
		})
	}

	result, err := dl.Run(ctx, watchURL(ref.ID))
	if err != nil {
		return discardWorkDir(dir, fmt.Errorf("%w: yt-dlp: %v%s", ErrDownloadFailed, err, stderrOf(result)))
	}

	output := filepath.Join(dir, ref.ID+".mp3")
	if !FileExists(output) {
		return discardWorkDir(dir, fmt.Errorf("%w: audio file not found after download", ErrDownloadFailed))
	}
	return output, nil
}

// Transcript downloads subtitles (manual or automatic) as SRT and parses them
func (yt *YtDlp) Transcript(ctx context.Context, videoID string) ([]Segment, error) {
	if err := yt.ensureInstalled(ctx); err != nil {
		return nil, err
	}
	if yt.verbose {
		fmt.Println("Downloading subtitles...")
	}

	dir, err := yt.workDir("subs", videoID)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	dl := ytdlp.New().
		WriteSubs().
		WriteAutoSubs().
		SubLangs(yt.language).
		ConvertSubs("srt").
		SkipDownload().
		NoPlaylist().
		Output(filepath.Join(dir, "%(id)s"))

	result, err := dl.Run(ctx, watchURL(videoID))
	if err != nil {
		return nil, fmt.Errorf("%w: downloading subtitles: %v%s", ErrDownloadFailed, err, stderrOf(result))
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.srt"))
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s subtitles for %s", ErrTranscriptUnavailable, yt.language, videoID)
	}
	// manual subs sort before auto variants like en-orig
	sort.Strings(files)

	if yt.verbose {
		fmt.Printf("Found %d subtitle file(s): %v\n", len(files), files)
	}

	content, err := os.ReadFile(files[0])
	if err != nil {
		return nil, fmt.Errorf("reading SRT file: %w", err)
	}

	lines := removeDuplicates(parseSRT(string(content)))
	segments := make([]Segment, 0, len(lines))
	for _, line := range lines {
		segments = append(segments, Segment{Text: line})
	}
	return segments, nil
}

func stderrOf(result *ytdlp.Result) string {
	if result == nil || strings.TrimSpace(result.Stderr) == "" {
		return ""
	}
	return "\nOutput: " + strings.TrimSpace(result.Stderr)
}

// parseSRT extracts text content from SRT format
func parseSRT(content string) []string {
	var lines []string

	content = strings.ReplaceAll(content, "\r\n", "\n")
	for block := range strings.SplitSeq(content, "\n\n") {
		blockLines := strings.Split(strings.TrimSpace(block), "\n")
		if len(blockLines) >= 3 {
			// Skip sequence number and timestamp, get text lines
			for i := 2; i < len(blockLines); i++ {
				if text := strings.TrimSpace(blockLines[i]); text != "" {
					lines = append(lines, text)
				}
			}
		}
	}

	return lines
}

// removeDuplicates drops lines repeating the line before them, which rolling auto
// captions produce when each cue carries the previous cue's text
func removeDuplicates(lines []string) []string {
	result := make([]string, 0, len(lines))
	prevLine := ""

	for _, line := range lines {
		if line != prevLine {
			result = append(result, line)
		}
		prevLine = line
	}

	return result
}

// extractSubtitleInfo extracts subtitle availability from yt-dlp JSON output
func extractSubtitleInfo(rawData map[string]any) bool {
	if subtitles, ok := rawData["subtitles"].(map[string]any); ok && len(subtitles) > 0 {
		return true
	}
	if autoCaptions, ok := rawData["automatic_captions"].(map[string]any); ok && len(autoCaptions) > 0 {
		return true
	}
	return false
}
