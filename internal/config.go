package internal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const appName = "utube"

// CommandRunner executes external commands
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultCommandRunner implements CommandRunner
type DefaultCommandRunner struct{}

func (r *DefaultCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Config holds application settings
type Config struct {
	// Summarization
	Provider     string
	Model        string
	SystemPrompt string
	Prompt       string

	// Transcripts and audio
	Language            string
	TranscriptProviders []string
	MetadataSources     []string
	AudioBackend        string
	FallbackWhisper     bool

	// Caching
	CacheBackend   string
	CacheTTL       time.Duration
	RedisURL       string
	SQLitePath     string
	TranscriptsDir string

	// Timeouts
	SummaryTimeout time.Duration
	WhisperTimeout time.Duration
	FetchTimeout   time.Duration

	// Web server
	Addr           string
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string

	// Output and logging
	LogLevel      string
	MCPLogEnabled bool
	Verbose       bool
	Quiet         bool

	// Provider credentials and endpoints
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GoogleAPIKey    string
	AnthropicAPIKey string
	OllamaURL       string

	// Fixed XDG paths (not configurable)
	ConfigDir string
	DataDir   string
	CacheDir  string
	TempDir   string
}

// Paths are the directories a Config is rooted in
type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
}

// DefaultPaths returns the XDG directories for the application
func DefaultPaths() Paths {
	return Paths{
		ConfigDir: filepath.Join(xdg.ConfigHome, appName),
		DataDir:   filepath.Join(xdg.DataHome, appName),
		CacheDir:  filepath.Join(xdg.CacheHome, appName),
	}
}

//go:embed config.toml prompt.txt
var defaultFS embed.FS

// WhisperLimit is the maximum file size accepted by OpenAI's Whisper API (25 MiB)
const WhisperLimit int64 = 25 << 20

// DefaultSystemPrompt is the instruction sent ahead of every transcript
const DefaultSystemPrompt = "Summarize the following text:"

var defaultModels = map[string]string{
	"gemini":    "gemini-2.5-flash",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
	"ollama":    "llama3.2",
}

// DefaultModel returns the model used for a provider when none is configured
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

// ensureDefaultFile checks if a file exists in the specified directory
// and creates it from the embedded default if it doesn't exist
func ensureDefaultFile(configDir, embedFilename, description string) error {
	filePath := filepath.Join(configDir, embedFilename)

	if FileExists(filePath) {
		return nil
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultContent, err := defaultFS.ReadFile(embedFilename)
	if err != nil {
		return fmt.Errorf("reading embedded default %s: %w", description, err)
	}

	if err := os.WriteFile(filePath, defaultContent, 0644); err != nil {
		return fmt.Errorf("writing default %s: %w", description, err)
	}

	fmt.Fprintf(os.Stderr, "Created default %s at %s\n", description, filePath)
	return nil
}

// EnsureDefaultConfig checks if a config file exists in the XDG config directory
// and creates it from the embedded default if it doesn't exist
func EnsureDefaultConfig(configDir string) error {
	return ensureDefaultFile(configDir, "config.toml", "configuration")
}

// EnsureDefaultPrompt checks if a prompt.txt file exists in the XDG config directory
// and creates it from the embedded default if it doesn't exist
func EnsureDefaultPrompt(configDir string) error {
	return ensureDefaultFile(configDir, "prompt.txt", "prompt template")
}

// InitConfig loads .env files, then the TOML config and environment, into a Config.
// configFile overrides the config search path when set.
func InitConfig(configFile string) (*Config, error) {
	paths := DefaultPaths()
	loadDotEnv(".env", filepath.Join(paths.ConfigDir, ".env"))
	return loadConfig(configFile, paths)
}

// loadDotEnv loads the files that exist; variables already set win
func loadDotEnv(files ...string) {
	for _, f := range files {
		if !FileExists(f) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error reading %s: %v\n", f, err)
		}
	}
}

func newViper(paths Paths) *viper.Viper {
	v := viper.New()

	v.SetDefault("provider", "gemini")
	v.SetDefault("model", "")
	v.SetDefault("system_prompt", DefaultSystemPrompt)
	v.SetDefault("prompt", "") // if empty will use default prompt template
	v.SetDefault("language", "en")
	v.SetDefault("transcript_providers", []string{"captions", "ytdlp"})
	v.SetDefault("metadata_sources", []string{"captions", "ytdlp", "watchpage"})
	v.SetDefault("audio_backend", "ytdlp")
	v.SetDefault("fallback_whisper", false)
	v.SetDefault("cache_backend", "file")
	v.SetDefault("cache_ttl", time.Duration(0))
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("sqlite_path", filepath.Join(paths.DataDir, "cache.db"))
	v.SetDefault("transcripts_dir", filepath.Join(paths.DataDir, "transcripts"))
	v.SetDefault("summary_timeout", 2*time.Minute)
	v.SetDefault("whisper_timeout", 10*time.Minute)
	v.SetDefault("fetch_timeout", 30*time.Second)
	v.SetDefault("addr", ":8501")
	v.SetDefault("rate_limit", 1.0)
	v.SetDefault("rate_burst", 5)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("log_level", "info")
	v.SetDefault("mcp_log", false)
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("openai_base_url", "")
	v.SetDefault("ollama_url", "http://localhost:11434")

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(paths.ConfigDir)
	v.AddConfigPath(".")

	v.SetEnvPrefix(strings.ToUpper(appName))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// provider credentials use their conventional variable names
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("google_api_key", "GOOGLE_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("anthropic_api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("ollama_url", "UTUBE_OLLAMA_URL", "OLLAMA_BASE_URL")

	return v
}

func loadConfig(configFile string, paths Paths) (*Config, error) {
	v := newViper(paths)
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	config := &Config{
		Provider:     strings.ToLower(v.GetString("provider")),
		Model:        v.GetString("model"),
		SystemPrompt: v.GetString("system_prompt"),
		Prompt:       v.GetString("prompt"),

		Language:            v.GetString("language"),
		TranscriptProviders: splitList(v.GetStringSlice("transcript_providers")),
		MetadataSources:     splitList(v.GetStringSlice("metadata_sources")),
		AudioBackend:        v.GetString("audio_backend"),
		FallbackWhisper:     v.GetBool("fallback_whisper"),

		CacheBackend:   strings.ToLower(v.GetString("cache_backend")),
		CacheTTL:       v.GetDuration("cache_ttl"),
		RedisURL:       v.GetString("redis_url"),
		SQLitePath:     v.GetString("sqlite_path"),
		TranscriptsDir: v.GetString("transcripts_dir"),

		SummaryTimeout: v.GetDuration("summary_timeout"),
		WhisperTimeout: v.GetDuration("whisper_timeout"),
		FetchTimeout:   v.GetDuration("fetch_timeout"),

		Addr:           v.GetString("addr"),
		RateLimit:      v.GetFloat64("rate_limit"),
		RateBurst:      v.GetInt("rate_burst"),
		AllowedOrigins: splitList(v.GetStringSlice("allowed_origins")),

		LogLevel:      v.GetString("log_level"),
		MCPLogEnabled: v.GetBool("mcp_log"),
		Verbose:       v.GetBool("verbose"),
		Quiet:         v.GetBool("quiet"),

		OpenAIAPIKey:    v.GetString("openai_api_key"),
		OpenAIBaseURL:   v.GetString("openai_base_url"),
		GoogleAPIKey:    v.GetString("google_api_key"),
		AnthropicAPIKey: v.GetString("anthropic_api_key"),
		OllamaURL:       v.GetString("ollama_url"),

		ConfigDir: paths.ConfigDir,
		DataDir:   paths.DataDir,
		CacheDir:  paths.CacheDir,
		TempDir:   filepath.Join(paths.CacheDir, "temp"),
	}

	if config.Model == "" {
		config.Model = DefaultModel(config.Provider)
	}

	if config.Verbose {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	return config, nil
}

// splitList flattens comma separated entries, as env vars arrive as one string
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// APIKeyEnv names the environment variable that holds a provider's key
func APIKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GOOGLE_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	}
	return ""
}

// APIKey returns the configured key for a provider
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "gemini":
		return c.GoogleAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	}
	return ""
}
