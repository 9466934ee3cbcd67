package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField matches any *MissingFieldsError via errors.Is.
var ErrMissingField = errors.New("missing required config key")

// MissingFieldsError lists every required key absent from the loaded config.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required config keys: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingField
}

// requiredField is one enumerated key with its presence predicate.
type requiredField struct {
	key     string
	present func(Config) bool
}

var requiredFields = map[string]requiredField{
	"ssh.host":       {key: "ssh.host", present: func(c Config) bool { return c.SSH.Host != "" }},
	"ssh.user":       {key: "ssh.user", present: func(c Config) bool { return c.SSH.User != "" }},
	"ssh.key_path":   {key: "ssh.key_path", present: func(c Config) bool { return c.SSH.KeyPath != "" }},
	"claude.path":    {key: "claude.path", present: func(c Config) bool { return c.Claude.Path != "" }},
	"openai.api_key": {key: "openai.api_key", present: func(c Config) bool { return c.OpenAI.APIKey != "" }},
	"tts.pitch":      {key: "tts.pitch", present: func(c Config) bool { return c.TTS.Pitch > 0 }},
	"tts.rate":       {key: "tts.rate", present: func(c Config) bool { return c.TTS.Rate > 0 }},
}

// RequiredForRun lists the keys the relay session needs before anything starts.
var RequiredForRun = []string{
	"ssh.host",
	"ssh.user",
	"ssh.key_path",
	"claude.path",
	"openai.api_key",
	"tts.pitch",
	"tts.rate",
}

// RequiredForSpeak lists the keys the speak server needs.
var RequiredForSpeak = []string{"tts.pitch", "tts.rate"}

// Require checks the named required keys and reports all missing ones at once.
func Require(cfg Config, keys []string) error {
	missing := make([]string, 0)
	for _, key := range keys {
		field, ok := requiredFields[key]
		if !ok {
			return fmt.Errorf("unknown required config key %q", key)
		}
		if !field.present(cfg) {
			missing = append(missing, field.key)
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.SSH.Port <= 0 || cfg.SSH.Port > 65535 {
		return nil, fmt.Errorf("ssh.port must be between 1 and 65535")
	}
	if cfg.SSH.MCPPort <= 0 || cfg.SSH.MCPPort > 65535 {
		return nil, fmt.Errorf("ssh.mcp_port must be between 1 and 65535")
	}
	if strings.TrimSpace(cfg.SSH.MCPCommand) == "" {
		return nil, fmt.Errorf("ssh.mcp_command must not be empty")
	}
	if strings.Contains(cfg.SSH.Host, " ") {
		return nil, fmt.Errorf("ssh.host must not contain spaces")
	}
	if strings.TrimSpace(cfg.OpenAI.Model) == "" {
		return nil, fmt.Errorf("openai.model must not be empty")
	}
	if strings.TrimSpace(cfg.OpenAI.Language) == "" {
		return nil, fmt.Errorf("openai.language must not be empty")
	}
	if cfg.TTS.Pitch < 0 {
		return nil, fmt.Errorf("tts.pitch must be > 0")
	}
	if cfg.TTS.Rate < 0 {
		return nil, fmt.Errorf("tts.rate must be > 0")
	}
	if cfg.TTS.Command.Program() == "" {
		return nil, fmt.Errorf("tts.command must not be empty")
	}
	if cfg.TTS.TimeoutMS <= 0 {
		return nil, fmt.Errorf("tts.timeout_ms must be > 0")
	}

	switch cfg.Capture.Backend {
	case CaptureBackendCommand:
		if cfg.Capture.StartCmd.Program() == "" {
			return nil, fmt.Errorf("capture.start_cmd must not be empty when capture.backend=command")
		}
		if !cfg.Capture.StartCmd.TakesRecordingPath() {
			warnings = append(warnings, Warning{Message: "capture.start_cmd has no {path} placeholder; the recording path is appended"})
		}
	case CaptureBackendPulse:
		if !strings.EqualFold(cfg.Capture.Extension, ".wav") {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("capture.backend=pulse writes WAV audio; capture.extension %q replaced with .wav", cfg.Capture.Extension)})
		}
	default:
		return nil, fmt.Errorf("capture.backend must be one of: command, pulse")
	}

	if !strings.HasPrefix(cfg.Capture.Extension, ".") {
		return nil, fmt.Errorf("capture.extension must start with '.'")
	}
	if cfg.Capture.MinBytes < 0 {
		return nil, fmt.Errorf("capture.min_bytes must be >= 0")
	}
	if cfg.Capture.FlushTimeoutMS < 0 {
		return nil, fmt.Errorf("capture.flush_timeout_ms must be >= 0")
	}
	if cfg.Capture.FlushPollMS < 0 {
		return nil, fmt.Errorf("capture.flush_poll_ms must be >= 0")
	}

	return warnings, nil
}
