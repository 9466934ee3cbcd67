package remote

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rbright/voxrelay/internal/config"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.SSH.Host = "10.0.0.5"
	cfg.SSH.User = "dev"
	cfg.SSH.KeyPath = "/keys/id_ed25519"
	cfg.SSH.MCPUser = "u0_a123"
	cfg.Claude.Path = "~/.local/bin/claude"
	return cfg
}

func TestBuildArgv(t *testing.T) {
	plan, err := Build(testConfig(), "", "192.168.1.20")
	require.NoError(t, err)

	require.Equal(t, []string{"ssh", "-i", "/keys/id_ed25519", "-t", "dev@10.0.0.5"}, plan.Argv[:5])
	require.Len(t, plan.Argv, 6)
	require.Equal(t, plan.RemoteCommand, plan.Argv[5])
	require.Equal(t, "~", plan.WorkDir)
	require.Equal(t, "192.168.1.20", plan.LocalAddr)
}

func TestBuildNonDefaultPort(t *testing.T) {
	cfg := testConfig()
	cfg.SSH.Port = 2222

	plan, err := Build(cfg, "", "192.168.1.20")
	require.NoError(t, err)
	require.Equal(t, []string{"ssh", "-i", "/keys/id_ed25519", "-t", "-p", "2222", "dev@10.0.0.5"}, plan.Argv[:7])
}

func TestBuildWorkDirOverridesDevPath(t *testing.T) {
	cfg := testConfig()
	cfg.SSH.DevPath = "~/src"

	plan, err := Build(cfg, "/srv/project", "192.168.1.20")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(plan.RemoteCommand, "cd /srv/project && ~/.local/bin/claude --mcp-config '"))

	plan, err = Build(cfg, "", "192.168.1.20")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(plan.RemoteCommand, "cd ~/src && "))
}

func TestBuildRequiresHostUserAndAddr(t *testing.T) {
	cfg := testConfig()
	cfg.SSH.Host = ""
	_, err := Build(cfg, "", "192.168.1.20")
	require.Error(t, err)

	_, err = Build(testConfig(), "", " ")
	require.ErrorContains(t, err, "local address")
}

func TestRemoteCommandShape(t *testing.T) {
	plan, err := Build(testConfig(), "", "192.168.1.20")
	require.NoError(t, err)

	want := "cd ~ && ~/.local/bin/claude --mcp-config '" + plan.MCPConfig +
		"' --append-system-prompt '" + Instruction + "'"
	require.Equal(t, want, plan.RemoteCommand)
	require.Contains(t, Instruction, "mcp__voxrelay-tts__speak")
}

func TestMCPConfigDescriptor(t *testing.T) {
	cfg := testConfig()
	raw, err := MCPConfig(cfg.SSH, "192.168.1.20")
	require.NoError(t, err)

	require.Equal(
		t,
		`{"mcpServers":{"voxrelay-tts":{"command":"ssh","args":["-p","8022","-o","StrictHostKeyChecking=no","u0_a123@192.168.1.20","voxrelay mcp"],"env":{}}}}`,
		raw,
	)

	var decoded map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.Equal(t, "ssh", decoded["mcpServers"][ServerName]["command"])
}

func TestMCPConfigKeepsShellOperators(t *testing.T) {
	cfg := testConfig()
	cfg.SSH.MCPCommand = "cd ~/bin && ./voxrelay mcp"

	raw, err := MCPConfig(cfg.SSH, "192.168.1.20")
	require.NoError(t, err)
	require.Contains(t, raw, `"cd ~/bin && ./voxrelay mcp"`)
}

func TestShellQuoteEscapesSingleQuotes(t *testing.T) {
	require.Equal(t, `'it'\''s'`, shellQuote("it's"))
	require.Equal(t, `''`, shellQuote(""))

	cmd := RemoteCommand("~", "claude", `{"a":"it's"}`, "don't")
	require.Equal(t, `cd ~ && claude --mcp-config '{"a":"it'\''s"}' --append-system-prompt 'don'\''t'`, cmd)
}

func TestLocalAddrForLoopback(t *testing.T) {
	addr, err := LocalAddrFor(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", addr)
}
