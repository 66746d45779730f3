package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/rtzll/utube/internal"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run MCP server for utube",
	Long: `Run a Model Context Protocol (MCP) server that exposes utube as tools.

Tools:
- extract_video_id: Parse a YouTube URL into its video ID
- get_youtube_metadata: Video metadata including caption availability
- get_youtube_transcript: Existing captions (free)
- transcribe_youtube_whisper: Whisper transcription (paid)
- summarize_youtube_video: Summary with the configured provider

Transport options:
- stdio (default): Standard MCP transport via stdin/stdout
- http: HTTP transport on specified port (use --port to configure)

Logs go to $XDG_CACHE_HOME/utube/mcp.log when mcp_log is enabled.`,
	Example: `  # Run MCP server with stdio transport (e.g. for Claude Desktop)
  utube mcp

  # Run MCP server with HTTP transport on port 8080
  utube mcp --transport=http --port=8080

  # Set up Claude Desktop integration
  utube mcp setup-claude`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol
		config.Verbose = false
		config.Quiet = true
		draining.Store(true)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		logger, closeLog := internal.NewMCPLogger(config.MCPLogEnabled, config.CacheDir, config.LogLevel)
		defer closeLog()

		app, err := buildApp(cmd, internal.WithLogger(logger))
		if err != nil {
			return err
		}
		defer app.Close()
		defer internal.CleanupTempDir(config.TempDir)

		mcpServer := internal.NewMCPServer(app, version)
		return mcpServer.Start(cmd.Context(), transport, port)
	},
}

// setupClaudeCmd represents the setup-claude subcommand
var setupClaudeCmd = &cobra.Command{
	Use:   "setup-claude",
	Short: "Configure Claude Desktop to use the utube MCP server",
	Long: `Automatically configure Claude Desktop to use utube as an MCP server.

This command will:
- Detect Claude Desktop installation and config location
- Add the utube MCP server configuration to claude_desktop_config.json
- Preserve existing MCP server configurations
- Set appropriate XDG environment variables for the current platform`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setupClaudeDesktop()
	},
}

// MCPServerConfig is one entry under "mcpServers" in claude_desktop_config.json
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

func setupClaudeDesktop() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("getting executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	configPath, err := claudeDesktopConfigPath(runtime.GOOS)
	if err != nil {
		return fmt.Errorf("getting Claude Desktop config path: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("config for Claude Desktop not found at %s", configPath)
	}
	if err != nil {
		return fmt.Errorf("reading existing config: %w", err)
	}

	// the server must see the same XDG dirs as this shell
	entry := MCPServerConfig{
		Command: execPath,
		Args:    []string{"mcp"},
		Env: map[string]string{
			"XDG_DATA_HOME":   xdg.DataHome,
			"XDG_CONFIG_HOME": xdg.ConfigHome,
			"XDG_CACHE_HOME":  xdg.CacheHome,
		},
	}

	data, err = addMCPServer(data, "utube", entry)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("Added utube to %s\n", configPath)
	fmt.Printf("Restart Claude Desktop to use the utube MCP server\n")
	return nil
}

// addMCPServer sets mcpServers[name] and keeps every other key of the document
func addMCPServer(data []byte, name string, entry MCPServerConfig) ([]byte, error) {
	doc := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing existing config: %w", err)
		}
	}

	servers := map[string]json.RawMessage{}
	if raw, ok := doc["mcpServers"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &servers); err != nil {
			return nil, fmt.Errorf("parsing mcpServers: %w", err)
		}
	}

	encoded, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshaling server entry: %w", err)
	}
	servers[name] = encoded

	if doc["mcpServers"], err = json.Marshal(servers); err != nil {
		return nil, fmt.Errorf("marshaling mcpServers: %w", err)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return out, nil
}

// claudeDesktopConfigPath returns where Claude Desktop keeps its config on goos
func claudeDesktopConfigPath(goos string) (string, error) {
	const file = "claude_desktop_config.json"

	switch goos {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(homeDir, "Library", "Application Support", "Claude", file), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude", file), nil
	case "linux":
		return filepath.Join(xdg.ConfigHome, "Claude", file), nil
	}
	return "", fmt.Errorf("unsupported platform: %s", goos)
}

func init() {
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol (stdio or http)")
	mcpCmd.Flags().Int("port", 8080, "Port for HTTP transport (only used with --transport=http)")
	mcpCmd.AddCommand(setupClaudeCmd)
	rootCmd.AddCommand(mcpCmd)
}
