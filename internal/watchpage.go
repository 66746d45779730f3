package internal

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const youtubeBaseURL = "https://www.youtube.com"

// WatchPage scrapes Open Graph and microdata tags from the public watch page
type WatchPage struct {
	client  *http.Client
	baseURL string
	retry   RetryConfig
}

// NewWatchPage creates a scraper; an empty baseURL means youtube.com
func NewWatchPage(client *http.Client, baseURL string) *WatchPage {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = youtubeBaseURL
	}
	return &WatchPage{client: client, baseURL: strings.TrimRight(baseURL, "/"), retry: DefaultRetryConfig}
}

func (w *WatchPage) Name() string { return "watchpage" }

func (w *WatchPage) Metadata(ctx context.Context, ref VideoRef) (*VideoMetadata, error) {
	pageURL := w.baseURL + "/watch?v=" + ref.ID

	resp, err := RetryHTTP(ctx, w.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; utube)")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		return w.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching watch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching watch page: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing watch page: %w", err)
	}

	metadata := parseWatchPage(doc)
	if metadata.Title == "" {
		return nil, fmt.Errorf("no video details on watch page for %s", ref.ID)
	}
	if metadata.ThumbnailURL == "" {
		metadata.ThumbnailURL = ref.ThumbnailURL()
	}
	return metadata, nil
}

func parseWatchPage(doc *goquery.Document) *VideoMetadata {
	meta := func(selector string) string {
		return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
	}

	title := meta(`meta[property="og:title"]`)
	if title == "" {
		title = strings.TrimSuffix(strings.TrimSpace(doc.Find("title").First().Text()), " - YouTube")
	}

	channel := strings.TrimSpace(doc.Find(`[itemprop="author"] [itemprop="name"]`).First().AttrOr("content", ""))

	var tags []string
	if keywords := meta(`meta[name="keywords"]`); keywords != "" {
		tags = splitList([]string{keywords})
	}

	return &VideoMetadata{
		Title:        title,
		Description:  meta(`meta[property="og:description"]`),
		Channel:      channel,
		Uploader:     channel,
		Duration:     parseISODuration(meta(`meta[itemprop="duration"]`)),
		ThumbnailURL: meta(`meta[property="og:image"]`),
		Tags:         tags,
	}
}

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts durations like PT1H2M3S into seconds
func parseISODuration(s string) float64 {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	var total float64
	for i, unit := range []float64{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		total += float64(n) * unit
	}
	return total
}
