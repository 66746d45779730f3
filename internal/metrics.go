package internal

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// metrics tracks operational counters for the process.
var metrics struct {
	SummarizeRequests     atomic.Int64
	TranscriptRequests    atomic.Int64
	TranscriptErrors      atomic.Int64
	WhisperTranscriptions atomic.Int64
	MetadataRequests      atomic.Int64
	LLMCalls              atomic.Int64
	LLMErrors             atomic.Int64
	CacheHits             atomic.Int64
	CacheMisses           atomic.Int64
	HTTPRequests          atomic.Int64
	RateLimited           atomic.Int64
}

var metricKeys = []string{
	"summarize_requests",
	"transcript_requests", "transcript_errors",
	"whisper_transcriptions",
	"metadata_requests",
	"llm_calls", "llm_errors",
	"cache_hits", "cache_misses",
	"http_requests", "rate_limited",
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"summarize_requests":     metrics.SummarizeRequests.Load(),
		"transcript_requests":    metrics.TranscriptRequests.Load(),
		"transcript_errors":      metrics.TranscriptErrors.Load(),
		"whisper_transcriptions": metrics.WhisperTranscriptions.Load(),
		"metadata_requests":      metrics.MetadataRequests.Load(),
		"llm_calls":              metrics.LLMCalls.Load(),
		"llm_errors":             metrics.LLMErrors.Load(),
		"cache_hits":             metrics.CacheHits.Load(),
		"cache_misses":           metrics.CacheMisses.Load(),
		"http_requests":          metrics.HTTPRequests.Load(),
		"rate_limited":           metrics.RateLimited.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for the HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}
