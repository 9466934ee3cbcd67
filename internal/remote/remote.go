// Package remote builds the ssh invocation that starts the remote assistant
// with the speak server wired in.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/rbright/voxrelay/internal/config"
)

const (
	// ServerName is the key the speak server is registered under.
	ServerName = "voxrelay-tts"
	// ToolName is how the remote assistant addresses the speak tool.
	ToolName = "mcp__" + ServerName + "__speak"

	defaultSSHPort = 22
)

// Instruction is appended to the remote assistant's system prompt.
const Instruction = "IMPORTANT: After providing your response to the user, use the " + ToolName +
	" tool to speak a concise vocal summary (1-2 sentences) of your reply. " +
	"This helps the user understand your response through voice feedback."

// Plan is the fully resolved remote launch.
type Plan struct {
	Argv          []string
	RemoteCommand string
	MCPConfig     string
	WorkDir       string
	LocalAddr     string
}

type mcpServer struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

type mcpDescriptor struct {
	MCPServers map[string]mcpServer `json:"mcpServers"`
}

// Build assembles the ssh argv for cfg. workDir overrides ssh.dev_path when
// set; localAddr is the address the remote side uses to reach back here.
func Build(cfg config.Config, workDir string, localAddr string) (Plan, error) {
	host := strings.TrimSpace(cfg.SSH.Host)
	user := strings.TrimSpace(cfg.SSH.User)
	if host == "" || user == "" {
		return Plan{}, errors.New("ssh.host and ssh.user are required")
	}
	if strings.TrimSpace(localAddr) == "" {
		return Plan{}, errors.New("local address is required")
	}

	dir := strings.TrimSpace(workDir)
	if dir == "" {
		dir = strings.TrimSpace(cfg.SSH.DevPath)
	}
	if dir == "" {
		dir = "~"
	}

	descriptor, err := MCPConfig(cfg.SSH, localAddr)
	if err != nil {
		return Plan{}, err
	}
	command := RemoteCommand(dir, cfg.Claude.Path, descriptor, Instruction)

	argv := []string{"ssh", "-i", config.ExpandUser(cfg.SSH.KeyPath), "-t"}
	if cfg.SSH.Port > 0 && cfg.SSH.Port != defaultSSHPort {
		argv = append(argv, "-p", strconv.Itoa(cfg.SSH.Port))
	}
	argv = append(argv, user+"@"+host, command)

	return Plan{
		Argv:          argv,
		RemoteCommand: command,
		MCPConfig:     descriptor,
		WorkDir:       dir,
		LocalAddr:     localAddr,
	}, nil
}

// MCPConfig renders the launch descriptor the remote assistant uses to start
// the speak server over a reverse ssh hop.
func MCPConfig(cfg config.SSHConfig, localAddr string) (string, error) {
	descriptor := mcpDescriptor{
		MCPServers: map[string]mcpServer{
			ServerName: {
				Command: "ssh",
				Args: []string{
					"-p", strconv.Itoa(cfg.MCPPort),
					"-o", "StrictHostKeyChecking=no",
					cfg.MCPUser + "@" + localAddr,
					cfg.MCPCommand,
				},
				Env: map[string]string{},
			},
		},
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(descriptor); err != nil {
		return "", fmt.Errorf("encode mcp config: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// RemoteCommand renders `cd <dir> && <program> --mcp-config '<json>'
// --append-system-prompt '<prompt>'`. dir and program are left unquoted so
// the remote shell expands ~.
func RemoteCommand(dir string, program string, mcpConfig string, prompt string) string {
	return fmt.Sprintf(
		"cd %s && %s --mcp-config %s --append-system-prompt %s",
		dir,
		strings.TrimSpace(program),
		shellQuote(mcpConfig),
		shellQuote(prompt),
	)
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// LocalAddrFor returns the local IP the kernel would pick to reach host.
// A UDP connect only consults the routing table; no packet is sent.
func LocalAddrFor(ctx context.Context, host string) (string, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", net.JoinHostPort(strings.TrimSpace(host), "1"))
	if err != nil {
		return "", fmt.Errorf("resolve route to %s: %w", host, err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return "", fmt.Errorf("resolve route to %s: unexpected local address %v", host, conn.LocalAddr())
	}
	return addr.IP.String(), nil
}
