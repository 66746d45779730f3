package internal

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// Audio prepares downloaded audio for speech to text with ffmpeg and ffprobe
type Audio struct {
	cmdRunner CommandRunner
	verbose   bool
}

func NewAudio(cmdRunner CommandRunner, verbose bool) *Audio {
	return &Audio{
		cmdRunner: cmdRunner,
		verbose:   verbose,
	}
}

func (a *Audio) ffmpeg(ctx context.Context, args ...string) error {
	args = append([]string{"-v", "quiet"}, args...)
	output, err := a.cmdRunner.Run(ctx, "ffmpeg", append(args, "-y")...)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w%s", err, outputSuffix(output))
	}
	return nil
}

func outputSuffix(output []byte) string {
	if s := strings.TrimSpace(string(output)); s != "" {
		return "\nOutput: " + s
	}
	return ""
}

// Duration returns the length of audioFile in seconds
func (a *Audio) Duration(ctx context.Context, audioFile string) (float64, error) {
	output, err := a.cmdRunner.Run(ctx, "ffprobe",
		"-i", audioFile,
		"-show_entries", "format=duration",
		"-v", "quiet",
		"-of", "csv=p=0")
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w%s", err, outputSuffix(output))
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	return duration, nil
}

// Split cuts audioFile into numChunks pieces of equal length in the file's own
// directory, which is private to one download. Pieces already written are removed
// when a later one fails.
func (a *Audio) Split(ctx context.Context, audioFile string, numChunks int) ([]string, error) {
	if numChunks < 1 {
		numChunks = 1
	}

	duration, err := a.Duration(ctx, audioFile)
	if err != nil {
		return nil, fmt.Errorf("getting audio duration: %w", err)
	}
	if a.verbose {
		fmt.Printf("Splitting %s (%.0fs) into %d chunks\n", filepath.Base(audioFile), duration, numChunks)
	}

	length := int(math.Ceil(duration / float64(numChunks)))
	dir := filepath.Dir(audioFile)
	base := strings.TrimSuffix(filepath.Base(audioFile), filepath.Ext(audioFile))

	chunks := make([]string, 0, numChunks)
	for i := range numChunks {
		output := filepath.Join(dir, fmt.Sprintf("%s_chunk_%d.mp3", base, i))
		if err := a.Chunk(ctx, audioFile, i*length, length, output); err != nil {
			cleanupFiles(chunks...)
			return nil, fmt.Errorf("creating chunk %d: %w", i, err)
		}
		chunks = append(chunks, output)
	}
	return chunks, nil
}

// Chunk copies duration seconds starting at start into output without re-encoding
func (a *Audio) Chunk(ctx context.Context, audioFile string, start, duration int, output string) error {
	return a.ffmpeg(ctx,
		"-i", audioFile,
		"-ss", strconv.Itoa(start),
		"-t", strconv.Itoa(duration),
		"-c:a", "copy",
		output)
}

// Convert re-encodes any audio container to mono 16 kHz mp3, which Whisper accepts
func (a *Audio) Convert(ctx context.Context, input, output string) error {
	if a.verbose {
		fmt.Printf("Converting %s to %s\n", filepath.Base(input), filepath.Base(output))
	}
	return a.ffmpeg(ctx,
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-q:a", "9",
		output)
}
