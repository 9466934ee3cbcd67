// Package config resolves, parses, validates, and defaults voxrelay configuration.
package config

// Config is the fully materialized runtime configuration used by voxrelay.
type Config struct {
	SSH        SSHConfig
	Claude     ClaudeConfig
	OpenAI     OpenAIConfig
	TTS        TTSConfig
	Capture    CaptureConfig
	Indicator  IndicatorConfig
	Transcript TranscriptConfig
}

// SSHConfig describes the remote host and the reverse path used to reach the speak server.
type SSHConfig struct {
	Host    string
	User    string
	KeyPath string
	DevPath string
	Port    int

	// MCPPort, MCPUser and MCPCommand describe how the remote side reaches back to this
	// machine to launch the speak server.
	MCPPort    int
	MCPUser    string
	MCPCommand string
}

// ClaudeConfig locates the remote interactive program.
type ClaudeConfig struct {
	Path string
}

// OpenAIConfig controls the speech-to-text request.
type OpenAIConfig struct {
	APIKey   string
	Model    string
	Language string
	BaseURL  string
}

// TTSConfig controls speech synthesis for the speak tool.
type TTSConfig struct {
	Pitch     float64
	Rate      float64
	Command   CommandConfig
	TimeoutMS int
}

// CaptureConfig selects the recorder backend and recording acceptance rules.
type CaptureConfig struct {
	Backend        string
	StartCmd       CommandConfig
	StopCmd        CommandConfig
	Extension      string
	MinBytes       int64
	FlushTimeoutMS int
	FlushPollMS    int
	Input          string
	Fallback       string
}

// IndicatorConfig controls audio cue behavior.
type IndicatorConfig struct {
	SoundEnable bool
}

// TranscriptConfig controls transcript normalization before injection.
type TranscriptConfig struct {
	TrailingSpace bool
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

const (
	CaptureBackendCommand = "command"
	CaptureBackendPulse   = "pulse"
)
