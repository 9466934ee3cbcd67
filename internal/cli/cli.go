// Package cli parses voxrelay command-line arguments.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandMCP     Command = "mcp"
	CommandStatus  Command = "status"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:     {},
	CommandMCP:     {},
	CommandStatus:  {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	// WorkDir overrides ssh.dev_path for the run command.
	WorkDir  string
	ShowHelp bool
}

// Parse resolves flags and the command word. Without a command word the
// invocation is a run, and a single positional argument is its working
// directory.
func Parse(args []string) (Parsed, error) {
	var (
		configPath  string
		showHelp    bool
		showVersion bool
	)

	flags := pflag.NewFlagSet("voxrelay", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(&configPath, "config", "", "config file path")
	flags.BoolVarP(&showHelp, "help", "h", false, "show help")
	flags.BoolVar(&showVersion, "version", false, "show version")

	if err := flags.Parse(args); err != nil {
		return Parsed{}, err
	}

	parsed := Parsed{Command: CommandRun, ConfigPath: configPath}
	switch {
	case showHelp:
		parsed.Command = CommandHelp
		parsed.ShowHelp = true
		return parsed, nil
	case showVersion:
		parsed.Command = CommandVersion
		return parsed, nil
	}

	positional := flags.Args()
	if len(positional) > 0 {
		if cmd := Command(positional[0]); isCommand(cmd) {
			parsed.Command = cmd
			positional = positional[1:]
		}
	}

	switch parsed.Command {
	case CommandRun:
		if len(positional) > 1 {
			return Parsed{}, fmt.Errorf("unexpected arguments after working directory %q", positional[0])
		}
		if len(positional) == 1 {
			parsed.WorkDir = positional[0]
		}
	case CommandHelp:
		parsed.ShowHelp = true
		fallthrough
	default:
		if len(positional) > 0 {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
		}
	}

	return parsed, nil
}

func isCommand(cmd Command) bool {
	_, ok := validCommands[cmd]
	return ok
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [run] [WORKDIR]
  %[1]s [--config PATH] <command>

Commands:
  run       Relay the remote assistant over ssh with voice input (default)
  mcp       Serve the speak tool over stdio
  status    Print the running session's input mode
  devices   List available pulse input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Voice input:
  Ctrl+Space starts recording, Enter stops and injects the transcript,
  Ctrl+C during recording discards it.

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/voxrelay/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
