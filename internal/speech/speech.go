// Package speech runs the text-to-speech command behind the speak tool.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/rbright/voxrelay/internal/config"
)

const (
	previewRunes   = 50
	defaultTimeout = 30 * time.Second
)

// Synthesizer speaks text with a command such as termux-tts-speak.
type Synthesizer struct {
	Argv    []string
	Pitch   float64
	Rate    float64
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewSynthesizer builds a Synthesizer from tts configuration.
func NewSynthesizer(cfg config.TTSConfig, logger *slog.Logger) *Synthesizer {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Synthesizer{
		Argv:    append([]string(nil), cfg.Command.Argv...),
		Pitch:   cfg.Pitch,
		Rate:    cfg.Rate,
		Timeout: timeout,
		Logger:  logger,
	}
}

// Speak synthesizes text and reports the outcome as a status line. Failures
// are described in the returned string rather than as an error so the caller
// can hand them straight back to the remote assistant.
func (s *Synthesizer) Speak(ctx context.Context, text string) string {
	if len(s.Argv) == 0 {
		return "TTS error: tts.command is empty"
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string(nil), s.Argv[1:]...)
	args = append(args,
		"-p", formatFloat(s.Pitch),
		"-r", formatFloat(s.Rate),
		text,
	)

	cmd := exec.CommandContext(runCtx, s.Argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	if s.Logger != nil {
		s.Logger.Debug("speak",
			"text_length", len(text),
			"duration_ms", time.Since(started).Milliseconds(),
			"error", errString(err),
		)
	}

	switch {
	case err == nil:
		return "Successfully spoke: " + preview(text)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return "TTS error: timeout (speech took too long)"
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "TTS error: " + stderr.String()
	}
	return fmt.Sprintf("TTS error: %v", err)
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewRunes]) + "..."
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
