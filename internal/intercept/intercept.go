// Package intercept filters terminal input on its way to the relayed session,
// switching to voice capture when the trigger byte arrives.
package intercept

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/rbright/voxrelay/internal/session"
)

// TriggerByte starts voice capture. Terminals send NUL for Ctrl+Space and
// Ctrl+@; ordinary typing never produces it.
const TriggerByte byte = 0x00

const (
	keyCR    byte = '\r'
	keyLF    byte = '\n'
	keyCtrlC byte = 0x03
)

// ErrCancelled is returned by the stop wait when the user aborts a recording.
var ErrCancelled = errors.New("recording cancelled")

// Mode is the interceptor state.
type Mode int32

const (
	ModePassthrough Mode = iota
	ModeCapturing
)

func (m Mode) String() string {
	switch m {
	case ModePassthrough:
		return "passthrough"
	case ModeCapturing:
		return "capturing"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// TerminalMode switches the real terminal into single-keystroke input.
type TerminalMode interface {
	// Cbreak disables echo and line editing and returns a func that restores
	// the mode in effect before the call.
	Cbreak() (restore func() error, err error)
}

// VoiceSession runs one record-then-transcribe attempt.
type VoiceSession interface {
	Run(ctx context.Context, stop session.StopSignal) session.Result
}

// Reporter shows failures to the user.
type Reporter interface {
	ShowError(context.Context, string)
}

// Interceptor sits between the real terminal input and the relayed child.
//
// Capture is synchronous: Filter does not return until the voice attempt ends,
// so no two captures can overlap.
type Interceptor struct {
	input    io.Reader
	terminal TerminalMode
	voice    VoiceSession
	reporter Reporter
	logger   *slog.Logger

	mode atomic.Int32
}

// New constructs an interceptor. input is the real terminal input, read
// directly while waiting for the stop key.
func New(input io.Reader, terminal TerminalMode, voice VoiceSession, reporter Reporter, logger *slog.Logger) *Interceptor {
	return &Interceptor{
		input:    input,
		terminal: terminal,
		voice:    voice,
		reporter: reporter,
		logger:   logger,
	}
}

// Mode returns the current interceptor state.
func (i *Interceptor) Mode() Mode {
	return Mode(i.mode.Load())
}

// Filter returns the bytes to forward for one input chunk. Chunks without the
// trigger are returned unchanged. Otherwise every trigger byte is stripped,
// one voice attempt runs, and its transcript is inserted where the first
// trigger was. Surrounding bytes keep their order.
func (i *Interceptor) Filter(ctx context.Context, chunk []byte) []byte {
	idx := bytes.IndexByte(chunk, TriggerByte)
	if idx < 0 {
		return chunk
	}

	text := i.capture(ctx)

	rest := stripTrigger(chunk[idx+1:])
	out := make([]byte, 0, idx+len(text)+len(rest))
	out = append(out, chunk[:idx]...)
	out = append(out, text...)
	out = append(out, rest...)
	return out
}

// capture drives one voice attempt with the terminal in cbreak mode. The
// terminal mode is restored on every path, panics included.
func (i *Interceptor) capture(ctx context.Context) (text string) {
	i.mode.Store(int32(ModeCapturing))
	defer i.mode.Store(int32(ModePassthrough))

	restore, err := i.terminal.Cbreak()
	if err != nil {
		i.report(ctx, "Voice input error: "+err.Error())
		return ""
	}
	defer func() {
		if rerr := restore(); rerr != nil && i.logger != nil {
			i.logger.Error("restore terminal mode failed", "error", rerr.Error())
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			i.report(ctx, fmt.Sprintf("Voice input error: %v", r))
			text = ""
		}
	}()

	result := i.voice.Run(ctx, i.waitForStop)
	if errors.Is(result.Err, ErrCancelled) {
		i.report(ctx, "Recording cancelled")
	}
	if result.Err != nil {
		return ""
	}
	return result.Transcript
}

// waitForStop consumes input until Enter. Ctrl+C abandons the recording.
func (i *Interceptor) waitForStop(ctx context.Context) error {
	key, err := WaitForByte(ctx, i.input, func(b byte) bool {
		return b == keyCR || b == keyLF || b == keyCtrlC
	})
	if err != nil {
		return err
	}
	if key == keyCtrlC {
		return ErrCancelled
	}
	return nil
}

func (i *Interceptor) report(ctx context.Context, text string) {
	if i.reporter != nil {
		i.reporter.ShowError(ctx, text)
	}
	if i.logger != nil {
		i.logger.Warn("voice input", "message", text)
	}
}

// WaitForByte reads r one byte at a time, discarding bytes until match
// accepts one. It returns early with ctx.Err() when ctx ends; the background
// read then finishes on the next byte or when r is closed.
func WaitForByte(ctx context.Context, r io.Reader, match func(byte) bool) (byte, error) {
	type outcome struct {
		b   byte
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if n == 1 && match(buf[0]) {
				done <- outcome{b: buf[0]}
				return
			}
			if err != nil {
				done <- outcome{err: err}
				return
			}
			if ctx.Err() != nil {
				done <- outcome{err: ctx.Err()}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-done:
		return res.b, res.err
	}
}

func stripTrigger(chunk []byte) []byte {
	if bytes.IndexByte(chunk, TriggerByte) < 0 {
		return chunk
	}
	out := make([]byte, 0, len(chunk))
	for _, b := range chunk {
		if b != TriggerByte {
			out = append(out, b)
		}
	}
	return out
}
