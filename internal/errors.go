package internal

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL            = errors.New("invalid YouTube URL")
	ErrPlaylistUnsupported   = errors.New("playlists are not supported")
	ErrTranscriptUnavailable = errors.New("no transcript available")
	ErrTranscriptDisabled    = errors.New("transcripts are disabled for this video")
	ErrEmptyTranscript       = errors.New("transcript is empty")
	ErrDownloadFailed        = errors.New("download failed")
	ErrMissingAPIKey         = errors.New("API key is required")
	ErrNoSummary             = errors.New("no summary generated")
	ErrUnknownProvider       = errors.New("unknown provider")
)

// Stage names the pipeline step an error came from
type Stage string

const (
	StageParse      Stage = "parse"
	StageTranscript Stage = "transcript"
	StageMetadata   Stage = "metadata"
	StageSummary    Stage = "summary"
)

// StageError tags an error with the pipeline stage that produced it
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// stageError wraps err unless it already carries a stage
func stageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf reports the stage of err, or "" when it has none
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// UserMessage turns a pipeline error into the line shown to users in place of output
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidURL):
		return "Invalid YouTube URL."
	case errors.Is(err, ErrPlaylistUnsupported):
		return "Playlists are not supported. Enter a single video URL."
	case errors.Is(err, ErrTranscriptDisabled):
		return "Transcripts are disabled for this video."
	}

	var se *StageError
	if errors.As(err, &se) {
		switch se.Stage {
		case StageParse:
			return "Invalid YouTube URL."
		case StageTranscript:
			return "Could not retrieve transcript: " + se.Err.Error()
		case StageSummary:
			return "Error generating summary: " + se.Err.Error()
		}
	}

	return "Error: " + err.Error()
}
