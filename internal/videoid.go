package internal

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// VideoRef identifies a single YouTube video
type VideoRef struct {
	ID    string `json:"id"`
	Input string `json:"input"`
	URL   string `json:"url"`
}

// ThumbnailURL returns the convention-based thumbnail for the video
func (r VideoRef) ThumbnailURL() string {
	return ThumbnailURL(r.ID)
}

var (
	idPattern       = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	bareIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	fallbackPattern = regexp.MustCompile(`(?:[?&]v=|youtu\.be/|/embed/|/shorts/|/live/|/v/)([A-Za-z0-9_-]+)`)
	playlistPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

var youtubeHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
}

var pathPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/"}

// ExtractVideoID pulls a video identifier out of a URL or bare ID.
// Structured URL parsing runs first; a regex pass covers malformed URLs.
func ExtractVideoID(raw string) (VideoRef, bool) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return VideoRef{}, false
	}

	if id, ok := idFromURL(withScheme(input)); ok {
		return newVideoRef(id, raw), true
	}

	if mentionsYouTube(input) {
		if m := fallbackPattern.FindStringSubmatch(input); m != nil {
			return newVideoRef(m[1], raw), true
		}
	}

	if bareIDPattern.MatchString(input) {
		return newVideoRef(input, raw), true
	}

	return VideoRef{}, false
}

func newVideoRef(id, input string) VideoRef {
	return VideoRef{
		ID:    id,
		Input: input,
		URL:   "https://www.youtube.com/watch?v=" + id,
	}
}

// ThumbnailURL returns the thumbnail location for a video ID
func ThumbnailURL(id string) string {
	return "https://img.youtube.com/vi/" + id + "/0.jpg"
}

func withScheme(s string) string {
	if strings.Contains(s, "://") {
		return s
	}
	lower := strings.ToLower(s)
	for host := range youtubeHosts {
		if strings.HasPrefix(lower, host+"/") {
			return "https://" + s
		}
	}
	if strings.HasPrefix(lower, "youtu.be/") {
		return "https://" + s
	}
	return s
}

func mentionsYouTube(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "youtube.com") ||
		strings.Contains(lower, "youtube-nocookie.com") ||
		strings.Contains(lower, "youtu.be")
}

func idFromURL(s string) (string, bool) {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())

	if host == "youtu.be" {
		first, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		return validID(first)
	}

	if !youtubeHosts[host] {
		return "", false
	}

	if v := u.Query().Get("v"); v != "" {
		return validID(v)
	}

	for _, prefix := range pathPrefixes {
		if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
			first, _, _ := strings.Cut(rest, "/")
			return validID(first)
		}
	}

	return "", false
}

func validID(id string) (string, bool) {
	if id == "" || !idPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// ParseArg classifies a command line argument as a video, a playlist or a likely mistyped command
func ParseArg(arg string) *ParsedArg {
	parsed := &ParsedArg{OriginalInput: arg}
	input := strings.TrimSpace(arg)

	// a video ID wins over a playlist when a URL carries both
	if ref, ok := ExtractVideoID(input); ok {
		parsed.ContentType = ContentTypeVideo
		parsed.Ref = ref
		return parsed
	}

	if id, err := getPlaylistID(withScheme(input)); err == nil || IsValidPlaylistID(input) {
		if id == "" {
			id = input
		}
		parsed.ContentType = ContentTypePlaylist
		parsed.Error = fmt.Errorf("%w: %s", ErrPlaylistUnsupported, id)
		return parsed
	}

	if IsLikelyCommand(input) {
		parsed.ContentType = ContentTypeCommand
		parsed.Error = fmt.Errorf("'%s' doesn't look like a YouTube URL or video ID", input)
		return parsed
	}

	parsed.Error = fmt.Errorf("%w: %s", ErrInvalidURL, input)
	return parsed
}

// IsValidYouTubeID checks if a string looks like a bare YouTube video ID
func IsValidYouTubeID(id string) bool {
	return bareIDPattern.MatchString(id)
}

// IsLikelyCommand checks if a string looks like it might be a mistyped command
func IsLikelyCommand(arg string) bool {
	return len(arg) <= 10 && !strings.ContainsAny(arg, "/.:?=") && !IsValidPlaylistID(arg)
}

// IsValidPlaylistID checks if a string looks like a valid YouTube playlist ID
func IsValidPlaylistID(id string) bool {
	playlistPrefixes := []string{"PL", "UU", "FL", "RD", "LP", "BP", "QL", "SV", "EL", "LL", "UC"}

	for _, prefix := range playlistPrefixes {
		if strings.HasPrefix(id, prefix) {
			if len(id) == 18 || len(id) == 34 || len(id) == 36 {
				return playlistPattern.MatchString(id)
			}
		}
	}

	if strings.HasPrefix(id, "OLAK5uy_") || strings.HasPrefix(id, "RDCLAK5uy_") {
		if len(id) == 40 {
			return playlistPattern.MatchString(id)
		}
	}

	return false
}

// getPlaylistID extracts playlist ID from YouTube URLs
func getPlaylistID(youtubeURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(youtubeURL))
	if err != nil {
		return "", fmt.Errorf("parsing URL: %w", err)
	}

	if !youtubeHosts[strings.ToLower(u.Hostname())] {
		return "", fmt.Errorf("not a YouTube URL: %s", youtubeURL)
	}

	if list := u.Query().Get("list"); list != "" {
		if playlistPattern.MatchString(list) {
			return list, nil
		}
		return "", fmt.Errorf("invalid playlist ID format: %s", list)
	}

	return "", fmt.Errorf("could not extract playlist ID from URL: %s", youtubeURL)
}
