package internal

import (
	"fmt"
	"strings"
)

// ContentType represents the type of YouTube content
type ContentType int

const (
	ContentTypeUnknown ContentType = iota
	ContentTypeVideo
	ContentTypePlaylist
	ContentTypeCommand
)

// String returns a human-readable representation of the content type
func (ct ContentType) String() string {
	switch ct {
	case ContentTypeVideo:
		return "video"
	case ContentTypePlaylist:
		return "playlist"
	case ContentTypeCommand:
		return "command"
	default:
		return "unknown"
	}
}

// ParsedArg represents the result of parsing a command line argument
type ParsedArg struct {
	ContentType   ContentType
	OriginalInput string
	Ref           VideoRef
	Error         error
}

// IsValid returns true if the parsed argument names a single video
func (p *ParsedArg) IsValid() bool {
	return p.Error == nil && p.ContentType == ContentTypeVideo
}

// String returns a formatted representation of the parsed argument
func (p *ParsedArg) String() string {
	if p.Error != nil {
		return fmt.Sprintf("ParsedArg{type=%s, input=%q, error=%v}", p.ContentType, p.OriginalInput, p.Error)
	}
	return fmt.Sprintf("ParsedArg{type=%s, id=%s, url=%s}", p.ContentType, p.Ref.ID, p.Ref.URL)
}

// SuggestCorrection provides helpful suggestions for inputs that look like mistyped commands
func (p *ParsedArg) SuggestCorrection(availableCommands []string) string {
	if p.ContentType != ContentTypeCommand {
		return ""
	}

	input := strings.ToLower(p.OriginalInput)
	var suggestions []string
	for _, cmd := range availableCommands {
		if strings.Contains(cmd, input) || strings.Contains(input, cmd) {
			suggestions = append(suggestions, cmd)
		}
	}

	if len(suggestions) > 0 {
		return fmt.Sprintf("did you mean: %s", strings.Join(suggestions, ", "))
	}

	return "use --help to see available commands"
}

// Segment is one caption fragment as returned by a transcript provider
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// JoinSegments concatenates fragment texts with single spaces, skipping blank fragments
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Transcript is the text of a video plus where it came from
type Transcript struct {
	VideoID  string    `json:"video_id"`
	Source   string    `json:"source"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
}

// VideoMetadata contains YouTube video information
type VideoMetadata struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Channel      string         `json:"channel"`
	Uploader     string         `json:"uploader,omitempty"`
	Duration     float64        `json:"duration"`
	ThumbnailURL string         `json:"thumbnail,omitempty"`
	Categories   []string       `json:"categories,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Chapters     []VideoChapter `json:"chapters,omitempty"`
	HasCaptions  bool           `json:"has_captions"`
}

// VideoChapter represents a video chapter marker
type VideoChapter struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Title     string  `json:"title"`
}

// Result is everything the pipeline produced for one video
type Result struct {
	VideoID          string         `json:"video_id"`
	URL              string         `json:"url"`
	ThumbnailURL     string         `json:"thumbnail_url"`
	Metadata         *VideoMetadata `json:"metadata,omitempty"`
	Transcript       string         `json:"transcript"`
	TranscriptSource string         `json:"transcript_source"`
	Summary          string         `json:"summary,omitempty"`
}
