package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	outputs map[string][]byte
	fail    map[string]error
	calls   [][]string
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if err := r.fail[name]; err != nil {
		return []byte("boom"), err
	}
	if name == "ffmpeg" {
		// the output file sits right before -y
		if err := os.WriteFile(args[len(args)-2], []byte("chunk"), 0644); err != nil {
			return nil, err
		}
	}
	return r.outputs[name], nil
}

func TestAudioDuration(t *testing.T) {
	runner := &recordingRunner{outputs: map[string][]byte{"ffprobe": []byte("123.45\n")}}
	audio := NewAudio(runner, false)

	d, err := audio.Duration(context.Background(), "talk.mp3")
	require.NoError(t, err)
	assert.InDelta(t, 123.45, d, 0.001)

	runner.outputs["ffprobe"] = []byte("N/A")
	_, err = audio.Duration(context.Background(), "talk.mp3")
	assert.ErrorContains(t, err, "parsing duration")
}

func TestAudioSplit(t *testing.T) {
	tempDir := t.TempDir()
	runner := &recordingRunner{outputs: map[string][]byte{"ffprobe": []byte("100")}}
	audio := NewAudio(runner, false)

	chunks, err := audio.Split(context.Background(), filepath.Join(tempDir, "talk.mp3"), 3)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, filepath.Join(tempDir, fmt.Sprintf("talk_chunk_%d.mp3", i)), chunk)
		assert.FileExists(t, chunk)
	}

	// ffprobe then one ffmpeg call per chunk of ceil(100/3) seconds
	require.Len(t, runner.calls, 4)
	last := strings.Join(runner.calls[3], " ")
	assert.Contains(t, last, "-ss 68 -t 34")
	assert.True(t, strings.HasSuffix(last, "-y"))
}

func TestAudioSplitCleansUpOnFailure(t *testing.T) {
	tempDir := t.TempDir()
	runner := &recordingRunner{
		outputs: map[string][]byte{"ffprobe": []byte("10")},
		fail:    map[string]error{"ffmpeg": errors.New("exit status 1")},
	}

	_, err := NewAudio(runner, false).Split(context.Background(), filepath.Join(tempDir, "talk.mp3"), 2)
	require.Error(t, err)
	assert.ErrorContains(t, err, "Output: boom")
}

func TestAudioConvert(t *testing.T) {
	runner := &recordingRunner{}
	output := filepath.Join(t.TempDir(), "out.mp3")

	require.NoError(t, NewAudio(runner, false).Convert(context.Background(), "in.webm", output))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"ffmpeg", "-v", "quiet", "-i", "in.webm", "-vn", "-ac", "1", "-ar", "16000", "-c:a", "libmp3lame", "-q:a", "9", output, "-y"}, runner.calls[0])
}

func TestAudioSplitKeepsConcurrentDownloadsApart(t *testing.T) {
	first := filepath.Join(t.TempDir(), testVideoID+".mp3")
	second := filepath.Join(t.TempDir(), testVideoID+".mp3")
	audio := NewAudio(&recordingRunner{outputs: map[string][]byte{"ffprobe": []byte("20")}}, false)

	a, err := audio.Split(context.Background(), first, 2)
	require.NoError(t, err)
	b, err := audio.Split(context.Background(), second, 2)
	require.NoError(t, err)

	for i := range a {
		assert.NotEqual(t, a[i], b[i])
		assert.Equal(t, filepath.Dir(first), filepath.Dir(a[i]))
		assert.Equal(t, filepath.Dir(second), filepath.Dir(b[i]))
	}
}
