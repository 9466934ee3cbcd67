package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSelectsYAMLForNonBraceContent(t *testing.T) {
	input := `
# dev box
ssh:
  host: devbox.lan
  user: dev
  key_path: ~/.ssh/id_ed25519
claude:
  path: claude
openai:
  api_key: sk-test
tts:
  pitch: 1.2
  rate: 1.8
capture:
  backend: pulse
  extension: .wav
  input: usb
`

	cfg, warnings, err := Parse(input, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "devbox.lan", cfg.SSH.Host)
	require.Equal(t, "claude", cfg.Claude.Path)
	require.Equal(t, 1.2, cfg.TTS.Pitch)
	require.Equal(t, CaptureBackendPulse, cfg.Capture.Backend)
	require.Equal(t, "usb", cfg.Capture.Input)
	require.NoError(t, Require(cfg, RequiredForRun))
}

func TestParseYAMLUnknownKeyFails(t *testing.T) {
	_, _, err := Parse("ssh:\n  hostname: x\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestParseYAMLCommentOnlyUsesBase(t *testing.T) {
	cfg, _, err := Parse("# nothing here\n", Default())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestParseYAMLRejectsMultipleDocuments(t *testing.T) {
	_, _, err := Parse("claude:\n  path: a\n---\nclaude:\n  path: b\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple YAML documents")
}
