package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watchPageHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Fallback Title - YouTube</title>
  <meta property="og:title" content="Never Gonna Give You Up">
  <meta property="og:description" content="The official video.">
  <meta property="og:image" content="https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg">
  <meta name="keywords" content="rick astley, never gonna give you up, 80s">
</head>
<body>
  <div itemscope itemtype="http://schema.org/VideoObject">
    <meta itemprop="duration" content="PT3M33S">
    <span itemprop="author" itemscope itemtype="http://schema.org/Person">
      <link itemprop="name" content="Rick Astley">
    </span>
  </div>
</body>
</html>`

func TestWatchPageMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/watch", r.URL.Path)
		assert.Equal(t, testVideoID, r.URL.Query().Get("v"))
		_, _ = w.Write([]byte(watchPageHTML))
	}))
	defer srv.Close()

	wp := NewWatchPage(srv.Client(), srv.URL)
	metadata, err := wp.Metadata(context.Background(), VideoRef{ID: testVideoID})
	require.NoError(t, err)

	assert.Equal(t, "Never Gonna Give You Up", metadata.Title)
	assert.Equal(t, "The official video.", metadata.Description)
	assert.Equal(t, "Rick Astley", metadata.Channel)
	assert.Equal(t, "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg", metadata.ThumbnailURL)
	assert.Equal(t, []string{"rick astley", "never gonna give you up", "80s"}, metadata.Tags)
	assert.InDelta(t, 213, metadata.Duration, 0.001)
}

func TestWatchPageTitleFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Only Title - YouTube</title></head><body></body></html>`))
	}))
	defer srv.Close()

	metadata, err := NewWatchPage(srv.Client(), srv.URL).Metadata(context.Background(), VideoRef{ID: testVideoID})
	require.NoError(t, err)
	assert.Equal(t, "Only Title", metadata.Title)
	assert.Equal(t, "https://img.youtube.com/vi/"+testVideoID+"/0.jpg", metadata.ThumbnailURL)
}

func TestWatchPageErrors(t *testing.T) {
	t.Run("no title", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html><body>consent wall</body></html>`))
		}))
		defer srv.Close()

		_, err := NewWatchPage(srv.Client(), srv.URL).Metadata(context.Background(), VideoRef{ID: testVideoID})
		assert.Error(t, err)
	})

	t.Run("not found", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		_, err := NewWatchPage(srv.Client(), srv.URL).Metadata(context.Background(), VideoRef{ID: testVideoID})
		assert.ErrorContains(t, err, "404")
	})
}

func TestWatchPageRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(watchPageHTML))
	}))
	defer srv.Close()

	wp := NewWatchPage(srv.Client(), srv.URL)
	wp.retry = RetryConfig{MaxRetries: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1}

	metadata, err := wp.Metadata(context.Background(), VideoRef{ID: testVideoID})
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", metadata.Title)
	assert.Equal(t, int32(2), hits.Load())
}

func TestParseISODuration(t *testing.T) {
	tests := map[string]float64{
		"PT1H2M3S": 3723,
		"PT45S":    45,
		"PT10M":    600,
		"PT0S":     0,
		"":         0,
		"3:33":     0,
	}
	for in, want := range tests {
		assert.InDelta(t, want, parseISODuration(in), 0.001, in)
	}
}
