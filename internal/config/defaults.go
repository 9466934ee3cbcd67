package config

// Default returns the canonical runtime configuration used when no file is present.
//
// Required keys (see RequiredForRun) are left empty: they have no sensible default.
func Default() Config {
	startCmd := "termux-microphone-record -f {path} -l 0 -e aac"
	stopCmd := "termux-microphone-record -q"
	ttsCmd := "termux-tts-speak"

	return Config{
		SSH: SSHConfig{
			DevPath:    "~",
			Port:       22,
			MCPPort:    8022,
			MCPCommand: "voxrelay mcp",
		},
		OpenAI: OpenAIConfig{
			Model:    "whisper-1",
			Language: "en",
		},
		TTS: TTSConfig{
			Command:   defaultCommand(ttsCmd),
			TimeoutMS: 30000,
		},
		Capture: CaptureConfig{
			Backend:        CaptureBackendCommand,
			StartCmd:       defaultCommand(startCmd),
			StopCmd:        defaultCommand(stopCmd),
			Extension:      ".m4a",
			MinBytes:       1000,
			FlushTimeoutMS: 500,
			FlushPollMS:    0,
			Input:          "default",
			Fallback:       "default",
		},
	}
}
