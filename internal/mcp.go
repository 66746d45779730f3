package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes the pipeline as Model Context Protocol tools
type MCPServer struct {
	app       *App
	mcpServer *server.MCPServer
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(app *App, version string) *MCPServer {
	mcpServer := server.NewMCPServer(
		"utube-server",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &MCPServer{
		app:       app,
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s
}

func urlArg() mcp.ToolOption {
	return mcp.WithString("url",
		mcp.Description("YouTube URL or video ID"),
		mcp.Required(),
	)
}

func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("extract_video_id",
		mcp.WithDescription("Extract the video ID from a YouTube URL. Accepts watch, youtu.be, shorts, embed and live links."),
		urlArg(),
	), s.handleExtractVideoID)

	s.mcpServer.AddTool(mcp.NewTool("get_youtube_metadata",
		mcp.WithDescription("Extract video metadata including caption availability. Check 'Has Captions' to pick a transcript tool: if true, use get_youtube_transcript (free); if false, consider transcribe_youtube_whisper (paid)."),
		urlArg(),
	), s.handleGetMetadata)

	s.mcpServer.AddTool(mcp.NewTool("get_youtube_transcript",
		mcp.WithDescription("Get existing YouTube captions/transcript (FREE). Fails if the video has no captions."),
		urlArg(),
	), s.handleGetTranscript)

	s.mcpServer.AddTool(mcp.NewTool("transcribe_youtube_whisper",
		mcp.WithDescription("Create a transcript using the OpenAI Whisper API (PAID). Requires OPENAI_API_KEY. Use only when the video has no captions and the user explicitly agrees to incur costs."),
		urlArg(),
	), s.handleWhisperTranscribe)

	s.mcpServer.AddTool(mcp.NewTool("summarize_youtube_video",
		mcp.WithDescription("Summarize a YouTube video from its captions with the configured language model."),
		urlArg(),
		mcp.WithBoolean("fallback_whisper",
			mcp.Description("Transcribe with Whisper (PAID) when no captions exist"),
		),
	), s.handleSummarize)
}

func (s *MCPServer) resolve(request mcp.CallToolRequest) (VideoRef, *mcp.CallToolResult) {
	input, err := request.RequireString("url")
	if err != nil {
		return VideoRef{}, mcp.NewToolResultError("url parameter is required and must be a string")
	}
	ref, err := s.app.Resolve(input)
	if err != nil {
		return VideoRef{}, mcp.NewToolResultError(UserMessage(err))
	}
	return ref, nil
}

func (s *MCPServer) handleExtractVideoID(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, errResult := s.resolve(request)
	if errResult != nil {
		return errResult, nil
	}
	return mcp.NewToolResultText(ref.ID), nil
}

func (s *MCPServer) handleGetMetadata(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, errResult := s.resolve(request)
	if errResult != nil {
		return errResult, nil
	}

	metadata, err := s.app.Metadata(ctx, ref)
	if err != nil {
		s.app.logger.Error().Str("tool", "get_youtube_metadata").Str("video_id", ref.ID).Err(err).Send()
		return mcp.NewToolResultErrorFromErr("metadata error", err), nil
	}

	return mcp.NewToolResultText(formatMetadata(metadata)), nil
}

func formatMetadata(metadata *VideoMetadata) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Title: %s\n", metadata.Title)
	fmt.Fprintf(&buf, "Channel: %s\n", metadata.Channel)
	fmt.Fprintf(&buf, "Duration: %.0f seconds\n", metadata.Duration)
	fmt.Fprintf(&buf, "Description: %s\n", metadata.Description)
	fmt.Fprintf(&buf, "Has Captions: %t\n", metadata.HasCaptions)
	if metadata.ThumbnailURL != "" {
		fmt.Fprintf(&buf, "Thumbnail: %s\n", metadata.ThumbnailURL)
	}
	if len(metadata.Tags) > 0 {
		fmt.Fprintf(&buf, "Tags: %s\n", strings.Join(metadata.Tags, ", "))
	}
	if len(metadata.Categories) > 0 {
		fmt.Fprintf(&buf, "Categories: %s\n", strings.Join(metadata.Categories, ", "))
	}
	for _, ch := range metadata.Chapters {
		fmt.Fprintf(&buf, "Chapter (%.0f-%.0f): %s\n", ch.StartTime, ch.EndTime, ch.Title)
	}
	return buf.String()
}

// handleGetTranscript returns captions only, never falling back to Whisper
func (s *MCPServer) handleGetTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, errResult := s.resolve(request)
	if errResult != nil {
		return errResult, nil
	}

	transcript, err := s.app.GetTranscript(ctx, ref)
	if err != nil {
		s.app.logger.Warn().Str("tool", "get_youtube_transcript").Str("video_id", ref.ID).Err(err).Send()
		return mcp.NewToolResultErrorFromErr("no captions available - use get_youtube_metadata to check caption availability, or consider transcribe_youtube_whisper (paid)", err), nil
	}

	return mcp.NewToolResultText(transcript.Text), nil
}

func (s *MCPServer) handleWhisperTranscribe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, errResult := s.resolve(request)
	if errResult != nil {
		return errResult, nil
	}

	if err := ValidateWhisperRequirements(s.app.config); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	transcript, err := s.app.TranscribeAudio(ctx, ref)
	if err != nil {
		s.app.logger.Error().Str("tool", "transcribe_youtube_whisper").Str("video_id", ref.ID).Err(err).Send()
		return mcp.NewToolResultErrorFromErr("failed to transcribe audio with Whisper", err), nil
	}

	return mcp.NewToolResultText(transcript.Text), nil
}

func (s *MCPServer) handleSummarize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}

	opts := TranscriptOptions{FallbackWhisper: request.GetBool("fallback_whisper", false)}
	result, err := s.app.Summarize(ctx, input, opts)
	if err != nil {
		s.app.logger.Error().Str("tool", "summarize_youtube_video").Err(err).Send()
		return mcp.NewToolResultError(UserMessage(err)), nil
	}

	return mcp.NewToolResultText(result.Summary), nil
}

// Start serves the tools over stdio or streamable HTTP until ctx is done
func (s *MCPServer) Start(ctx context.Context, transport string, port int) error {
	s.app.logger.Info().Str("transport", transport).Int("port", port).Msg("starting MCP server")

	if transport != "http" {
		return server.ServeStdio(s.mcpServer)
	}

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(fmt.Sprintf(":%d", port))
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// GetServer returns the underlying MCP server for advanced configuration
func (s *MCPServer) GetServer() *server.MCPServer {
	return s.mcpServer
}
