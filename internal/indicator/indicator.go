// Package indicator reports voice-input progress on the user's terminal and
// plays optional audio cues.
package indicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rbright/voxrelay/internal/config"
)

// Terminal writes status lines to the real terminal. Lines end in \r\n so they
// render correctly while the terminal is in raw or cbreak mode.
type Terminal struct {
	out      io.Writer
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu      sync.Mutex
	soundMu sync.Mutex
	emit    func(cueKind) error
}

// NewTerminal creates a terminal indicator writing to out (usually stderr).
func NewTerminal(out io.Writer, cfg config.IndicatorConfig, logger *slog.Logger) *Terminal {
	return &Terminal{
		out:      out,
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
		emit:     emitCue,
	}
}

// ShowBanner prints the startup lines before the relay takes over the terminal.
func (t *Terminal) ShowBanner(host string, workDir string) {
	t.writeLine(fmt.Sprintf(t.messages.connecting, host))
	t.writeLine(fmt.Sprintf(t.messages.workingDir, workDir))
	t.writeLine(t.messages.keyHelp)
	t.writeLine("")
}

// ShowRecording signals capture start and emits the start cue.
func (t *Terminal) ShowRecording(context.Context) {
	t.playCue(cueStart)
	t.write("\r\n" + t.messages.recording + "\r\n")
}

// ShowStopPrompt tells the user which key ends the recording.
func (t *Terminal) ShowStopPrompt(context.Context) {
	t.write("\r\n" + t.messages.stopPrompt + "\r\n")
}

// ShowStopped signals the recorder was stopped.
func (t *Terminal) ShowStopped(context.Context) {
	t.playCue(cueStop)
	t.writeLine(t.messages.stopped)
}

// ShowTranscribing signals the upload to the speech-to-text service.
func (t *Terminal) ShowTranscribing(context.Context) {
	t.writeLine(t.messages.transcribing)
}

// ShowTranscript echoes the text about to be typed into the session.
func (t *Terminal) ShowTranscript(_ context.Context, text string) {
	t.playCue(cueComplete)
	t.writeLine(t.messages.transcribed + text)
}

// ShowError reports a failed voice attempt. The relay keeps running.
func (t *Terminal) ShowError(_ context.Context, text string) {
	t.playCue(cueCancel)
	t.writeLine(t.messages.errorPrefix + text)
}

func (t *Terminal) writeLine(text string) {
	t.write(text + "\r\n")
}

func (t *Terminal) write(text string) {
	if t.out == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.out, text); err != nil {
		t.log("indicator write failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (t *Terminal) playCue(kind cueKind) {
	if !t.cfg.SoundEnable || t.emit == nil {
		return
	}
	go func() {
		t.soundMu.Lock()
		defer t.soundMu.Unlock()
		if err := t.emit(kind); err != nil {
			t.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (t *Terminal) log(message string, err error) {
	if t.logger == nil || err == nil {
		return
	}
	t.logger.Debug(message, "error", err.Error())
}
