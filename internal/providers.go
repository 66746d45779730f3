package internal

import "context"

// TranscriptProvider returns caption fragments for a video
type TranscriptProvider interface {
	Name() string
	Transcript(ctx context.Context, videoID string) ([]Segment, error)
}

// MetadataSource returns descriptive information about a video
type MetadataSource interface {
	Name() string
	Metadata(ctx context.Context, ref VideoRef) (*VideoMetadata, error)
}

// AudioSource downloads a video's audio track to a local mp3 file
type AudioSource interface {
	Audio(ctx context.Context, ref VideoRef, bar ProgressBar) (string, error)
}

// SpeechToText turns an audio file into text.
// Ready reports configuration problems before any audio is downloaded.
type SpeechToText interface {
	Ready() error
	Transcribe(ctx context.Context, audioFile string, bar ProgressBar) (string, error)
}
