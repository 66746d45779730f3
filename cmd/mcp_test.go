package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMCPServer(t *testing.T) {
	existing := []byte(`{
  "globalShortcut": "Ctrl+Space",
  "mcpServers": {
    "other": {"command": "/usr/bin/other", "args": ["serve"]}
  }
}`)

	out, err := addMCPServer(existing, "utube", MCPServerConfig{
		Command: "/usr/local/bin/utube",
		Args:    []string{"mcp"},
		Env:     map[string]string{"XDG_CACHE_HOME": "/tmp/cache"},
	})
	require.NoError(t, err)

	var doc struct {
		GlobalShortcut string                     `json:"globalShortcut"`
		MCPServers     map[string]MCPServerConfig `json:"mcpServers"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))

	assert.Equal(t, "Ctrl+Space", doc.GlobalShortcut)
	require.Len(t, doc.MCPServers, 2)
	assert.Equal(t, "/usr/bin/other", doc.MCPServers["other"].Command)
	assert.Equal(t, "/usr/local/bin/utube", doc.MCPServers["utube"].Command)
	assert.Equal(t, []string{"mcp"}, doc.MCPServers["utube"].Args)
	assert.Equal(t, "/tmp/cache", doc.MCPServers["utube"].Env["XDG_CACHE_HOME"])
}

func TestAddMCPServerReplacesEntry(t *testing.T) {
	existing := []byte(`{"mcpServers": {"utube": {"command": "/old/utube", "args": []}}}`)

	out, err := addMCPServer(existing, "utube", MCPServerConfig{Command: "/new/utube", Args: []string{"mcp"}})
	require.NoError(t, err)

	var doc struct {
		MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	require.Len(t, doc.MCPServers, 1)
	assert.Equal(t, "/new/utube", doc.MCPServers["utube"].Command)
	assert.Nil(t, doc.MCPServers["utube"].Env)
}

func TestAddMCPServerEmptyAndInvalid(t *testing.T) {
	out, err := addMCPServer([]byte("  "), "utube", MCPServerConfig{Command: "utube", Args: []string{"mcp"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers": {"utube": {"command": "utube", "args": ["mcp"]}}}`, string(out))

	_, err = addMCPServer([]byte("{not json"), "utube", MCPServerConfig{})
	assert.Error(t, err)
}

func TestClaudeDesktopConfigPath(t *testing.T) {
	t.Setenv("APPDATA", filepath.Join("C:", "Users", "me", "AppData"))

	path, err := claudeDesktopConfigPath("windows")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("C:", "Users", "me", "AppData", "Claude", "claude_desktop_config.json"), path)

	path, err = claudeDesktopConfigPath("linux")
	require.NoError(t, err)
	assert.Equal(t, "claude_desktop_config.json", filepath.Base(path))

	_, err = claudeDesktopConfigPath("plan9")
	assert.Error(t, err)
}
