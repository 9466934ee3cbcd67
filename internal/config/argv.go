package config

import (
	"fmt"
	"strings"
	"unicode"
)

// recordingPathToken is where capture.start_cmd wants the recording path.
// The recorder appends the path when no argument carries it.
const recordingPathToken = "{path}"

// Program is the executable a command runs, or "" when the command is unset.
func (c CommandConfig) Program() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// TakesRecordingPath reports whether an argument carries the {path} token.
func (c CommandConfig) TakesRecordingPath() bool {
	for _, arg := range c.Argv[min(1, len(c.Argv)):] {
		if strings.Contains(arg, recordingPathToken) {
			return true
		}
	}
	return false
}

// parseCommand turns a recorder or speech command string into argv for
// exec, with errors naming the config key. Blank or '#'-prefixed strings
// leave the command unset.
func parseCommand(key string, raw string) (CommandConfig, error) {
	argv, err := splitCommand(raw)
	if err != nil {
		return CommandConfig{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

// defaultCommand parses a built-in command string.
func defaultCommand(raw string) CommandConfig {
	command, err := parseCommand("default command", raw)
	if err != nil {
		panic(err)
	}
	return command
}

// commandSplitter tokenizes like a POSIX shell without expansion: quotes
// group words and a backslash escapes the next rune, inside or outside quotes.
type commandSplitter struct {
	argv    []string
	word    strings.Builder
	inWord  bool
	quote   rune
	escaped bool
}

func splitCommand(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, nil
	}

	var s commandSplitter
	for _, r := range raw {
		s.feed(r)
	}

	switch {
	case s.escaped:
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", raw)
	case s.quote != 0:
		return nil, fmt.Errorf("unterminated quote in command: %q", raw)
	}
	s.endWord()
	return s.argv, nil
}

func (s *commandSplitter) feed(r rune) {
	switch {
	case s.escaped:
		s.escaped = false
		s.add(r)
	case r == '\\':
		s.escaped = true
		s.inWord = true
	case s.quote != 0 && r == s.quote:
		s.quote = 0
	case s.quote != 0:
		s.add(r)
	case r == '\'' || r == '"':
		s.quote = r
		s.inWord = true
	case unicode.IsSpace(r):
		s.endWord()
	default:
		s.add(r)
	}
}

func (s *commandSplitter) add(r rune) {
	s.word.WriteRune(r)
	s.inWord = true
}

// endWord closes the current word. An empty quoted word ('') still counts.
func (s *commandSplitter) endWord() {
	if !s.inWord {
		return
	}
	s.argv = append(s.argv, s.word.String())
	s.word.Reset()
	s.inWord = false
}
