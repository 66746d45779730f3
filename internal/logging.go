package internal

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// NewLogger writes JSON logs to w at the given level ("debug", "info", ...)
func NewLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// NewServerLogger logs to stderr, human readable on a terminal
func NewServerLogger(level string) zerolog.Logger {
	var w io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return NewLogger(w, level)
}

// NewMCPLogger logs to <cacheDir>/mcp.log since stdout carries the protocol.
// The returned close func is never nil.
func NewMCPLogger(enabled bool, cacheDir, level string) (zerolog.Logger, func() error) {
	noop := func() error { return nil }
	if !enabled {
		return zerolog.Nop(), noop
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return zerolog.Nop(), noop
	}

	logFile, err := os.OpenFile(filepath.Join(cacheDir, "mcp.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), noop
	}

	logger := NewLogger(logFile, level).With().Str("component", "mcp").Logger()
	return logger, logFile.Close
}
