package config

import (
	"strings"
)

// fileConfig is the on-disk shape shared by the JSONC and YAML formats.
// Pointer fields distinguish "absent" from zero values.
type fileConfig struct {
	SSH        *fileSSH        `json:"ssh" yaml:"ssh"`
	Claude     *fileClaude     `json:"claude" yaml:"claude"`
	OpenAI     *fileOpenAI     `json:"openai" yaml:"openai"`
	TTS        *fileTTS        `json:"tts" yaml:"tts"`
	Capture    *fileCapture    `json:"capture" yaml:"capture"`
	Indicator  *fileIndicator  `json:"indicator" yaml:"indicator"`
	Transcript *fileTranscript `json:"transcript" yaml:"transcript"`
}

type fileSSH struct {
	Host       *string `json:"host" yaml:"host"`
	User       *string `json:"user" yaml:"user"`
	KeyPath    *string `json:"key_path" yaml:"key_path"`
	DevPath    *string `json:"dev_path" yaml:"dev_path"`
	Port       *int    `json:"port" yaml:"port"`
	MCPPort    *int    `json:"mcp_port" yaml:"mcp_port"`
	MCPUser    *string `json:"mcp_user" yaml:"mcp_user"`
	MCPCommand *string `json:"mcp_command" yaml:"mcp_command"`
}

type fileClaude struct {
	Path *string `json:"path" yaml:"path"`
}

type fileOpenAI struct {
	APIKey   *string `json:"api_key" yaml:"api_key"`
	Model    *string `json:"model" yaml:"model"`
	Language *string `json:"language" yaml:"language"`
	BaseURL  *string `json:"base_url" yaml:"base_url"`
}

type fileTTS struct {
	Pitch     *float64 `json:"pitch" yaml:"pitch"`
	Rate      *float64 `json:"rate" yaml:"rate"`
	Command   *string  `json:"command" yaml:"command"`
	TimeoutMS *int     `json:"timeout_ms" yaml:"timeout_ms"`
}

type fileCapture struct {
	Backend        *string `json:"backend" yaml:"backend"`
	StartCmd       *string `json:"start_cmd" yaml:"start_cmd"`
	StopCmd        *string `json:"stop_cmd" yaml:"stop_cmd"`
	Extension      *string `json:"extension" yaml:"extension"`
	MinBytes       *int64  `json:"min_bytes" yaml:"min_bytes"`
	FlushTimeoutMS *int    `json:"flush_timeout_ms" yaml:"flush_timeout_ms"`
	FlushPollMS    *int    `json:"flush_poll_ms" yaml:"flush_poll_ms"`
	Input          *string `json:"input" yaml:"input"`
	Fallback       *string `json:"fallback" yaml:"fallback"`
}

type fileIndicator struct {
	SoundEnable *bool `json:"sound_enable" yaml:"sound_enable"`
}

type fileTranscript struct {
	TrailingSpace *bool `json:"trailing_space" yaml:"trailing_space"`
}

func (payload fileConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if s := payload.SSH; s != nil {
		setTrimmed(&cfg.SSH.Host, s.Host)
		setTrimmed(&cfg.SSH.User, s.User)
		setTrimmed(&cfg.SSH.KeyPath, s.KeyPath)
		setTrimmed(&cfg.SSH.DevPath, s.DevPath)
		setTrimmed(&cfg.SSH.MCPUser, s.MCPUser)
		setTrimmed(&cfg.SSH.MCPCommand, s.MCPCommand)
		if s.Port != nil {
			cfg.SSH.Port = *s.Port
		}
		if s.MCPPort != nil {
			cfg.SSH.MCPPort = *s.MCPPort
		}
	}

	if payload.Claude != nil {
		setTrimmed(&cfg.Claude.Path, payload.Claude.Path)
	}

	if o := payload.OpenAI; o != nil {
		setTrimmed(&cfg.OpenAI.APIKey, o.APIKey)
		setTrimmed(&cfg.OpenAI.Model, o.Model)
		setTrimmed(&cfg.OpenAI.Language, o.Language)
		setTrimmed(&cfg.OpenAI.BaseURL, o.BaseURL)
	}

	if t := payload.TTS; t != nil {
		if t.Pitch != nil {
			cfg.TTS.Pitch = *t.Pitch
		}
		if t.Rate != nil {
			cfg.TTS.Rate = *t.Rate
		}
		if t.TimeoutMS != nil {
			cfg.TTS.TimeoutMS = *t.TimeoutMS
		}
		if t.Command != nil {
			command, err := parseCommand("tts.command", *t.Command)
			if err != nil {
				return nil, err
			}
			cfg.TTS.Command = command
		}
	}

	if c := payload.Capture; c != nil {
		if c.Backend != nil {
			cfg.Capture.Backend = strings.ToLower(strings.TrimSpace(*c.Backend))
		}
		setTrimmed(&cfg.Capture.Extension, c.Extension)
		setTrimmed(&cfg.Capture.Input, c.Input)
		setTrimmed(&cfg.Capture.Fallback, c.Fallback)
		if c.MinBytes != nil {
			cfg.Capture.MinBytes = *c.MinBytes
		}
		if c.FlushTimeoutMS != nil {
			cfg.Capture.FlushTimeoutMS = *c.FlushTimeoutMS
		}
		if c.FlushPollMS != nil {
			cfg.Capture.FlushPollMS = *c.FlushPollMS
		}
		if c.StartCmd != nil {
			command, err := parseCommand("capture.start_cmd", *c.StartCmd)
			if err != nil {
				return nil, err
			}
			cfg.Capture.StartCmd = command
		}
		if c.StopCmd != nil {
			command, err := parseCommand("capture.stop_cmd", *c.StopCmd)
			if err != nil {
				return nil, err
			}
			cfg.Capture.StopCmd = command
			if len(command.Argv) == 0 {
				warnings = append(warnings, Warning{Message: "capture.stop_cmd is empty; recorder will be interrupted instead"})
			}
		}
	}

	if payload.Indicator != nil && payload.Indicator.SoundEnable != nil {
		cfg.Indicator.SoundEnable = *payload.Indicator.SoundEnable
	}

	if payload.Transcript != nil && payload.Transcript.TrailingSpace != nil {
		cfg.Transcript.TrailingSpace = *payload.Transcript.TrailingSpace
	}

	return warnings, nil
}

func setTrimmed(dst *string, value *string) {
	if value == nil {
		return
	}
	*dst = strings.TrimSpace(*value)
}
