package internal

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/time/rate"
)

//go:embed templates/index.html
var templateFS embed.FS

const emptyPageMessage = "Please enter a YouTube video URL to get started."

// maxRequestBody bounds JSON request bodies
const maxRequestBody = 64 << 10

// Server is the web form and JSON API in front of the pipeline
type Server struct {
	app      *App
	logger   zerolog.Logger
	limiter  *rate.Limiter
	renderer *HTMLRenderer
	page     *template.Template
	handler  http.Handler
}

type pageData struct {
	Input       string
	Message     string
	Result      *Result
	SummaryHTML template.HTML
}

type apiRequest struct {
	URL             string `json:"url"`
	FallbackWhisper bool   `json:"fallback_whisper,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
	Stage Stage  `json:"stage,omitempty"`
}

// NewServer wires routes and middleware around app
func NewServer(app *App, logger zerolog.Logger) (*Server, error) {
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}

	limit := rate.Limit(app.config.RateLimit)
	if app.config.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := app.config.RateBurst
	if burst < 1 {
		burst = 1
	}

	s := &Server{
		app:      app,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, burst),
		renderer: NewHTMLRenderer(),
		page:     page,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleForm)
	mux.HandleFunc("POST /api/summarize", s.handleAPISummarize)
	mux.HandleFunc("POST /api/transcript", s.handleAPITranscript)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	origins := app.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	var h http.Handler = mux
	h = s.rateLimit(h)
	h = c.Handler(h)
	h = countRequests(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.NewHandler(logger)(h)
	s.handler = h

	return s, nil
}

// Handler returns the root handler including middleware
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is done, then drains in-flight requests
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPRequests.Add(1)
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies the global token bucket to everything except health checks
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" && !s.limiter.Allow() {
			metrics.RateLimited.Add(1)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageData{Message: emptyPageMessage})
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	input := strings.TrimSpace(r.FormValue("url"))
	if input == "" {
		s.render(w, r, http.StatusOK, pageData{Message: emptyPageMessage})
		return
	}

	data := pageData{Input: input}
	result, err := s.app.Summarize(r.Context(), input, TranscriptOptions{FallbackWhisper: s.app.config.FallbackWhisper})
	data.Result = result
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("stage", string(StageOf(err))).Msg("pipeline failed")
		data.Message = UserMessage(err)
		s.render(w, r, http.StatusOK, data)
		return
	}

	html, err := s.renderer.Render(result.Summary)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("rendering summary")
		data.Message = UserMessage(stageError(StageSummary, err))
	}
	data.SummaryHTML = html

	s.render(w, r, http.StatusOK, data)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("executing page template")
	}
}

func (s *Server) handleAPISummarize(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	result, err := s.app.Summarize(r.Context(), req.URL, s.transcriptOptions(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAPITranscript(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	ref, err := s.app.Resolve(req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	transcript, err := s.app.TranscriptWithFallback(r.Context(), ref, s.transcriptOptions(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, &Result{
		VideoID:          ref.ID,
		URL:              ref.URL,
		ThumbnailURL:     ref.ThumbnailURL(),
		Transcript:       transcript.Text,
		TranscriptSource: transcript.Source,
	})
}

// transcriptOptions lets a client ask for Whisper only when the operator enabled it
func (s *Server) transcriptOptions(req apiRequest) TranscriptOptions {
	return TranscriptOptions{FallbackWhisper: req.FallbackWhisper && s.app.config.FallbackWhisper}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (apiRequest, bool) {
	var req apiRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body", Stage: StageParse})
		return req, false
	}
	if strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "url is required", Stage: StageParse})
		return req, false
	}
	return req, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stage := StageOf(err)
	status := statusFor(err)
	event := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}
	event.Err(err).Str("stage", string(stage)).Int("status", status).Msg("pipeline failed")

	writeJSON(w, status, apiError{Error: UserMessage(err), Stage: stage})
}

// statusFor maps a pipeline error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}

	switch StageOf(err) {
	case StageParse:
		return http.StatusBadRequest
	case StageTranscript:
		return http.StatusUnprocessableEntity
	case StageSummary, StageMetadata:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(FormatMetrics()))
}
