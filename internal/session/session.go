// Package session runs one voice-input attempt: record until stopped, then transcribe.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rbright/voxrelay/internal/audio"
	"github.com/rbright/voxrelay/internal/fsm"
	"github.com/rbright/voxrelay/internal/transcribe"
)

// Capturer is the session-facing subset of the capture driver.
type Capturer interface {
	Start(context.Context) (*audio.Recording, error)
	Stop(context.Context, *audio.Recording) error
	Cleanup(context.Context) error
}

// Transcriber turns a finished recording into text. It owns removal of the file.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowRecording(context.Context)
	ShowStopPrompt(context.Context)
	ShowStopped(context.Context)
	ShowTranscribing(context.Context)
	ShowTranscript(context.Context, string)
	ShowError(context.Context, string)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)          {}
func (noopIndicator) ShowStopPrompt(context.Context)         {}
func (noopIndicator) ShowStopped(context.Context)            {}
func (noopIndicator) ShowTranscribing(context.Context)       {}
func (noopIndicator) ShowTranscript(context.Context, string) {}
func (noopIndicator) ShowError(context.Context, string)      {}

// StopSignal blocks until the caller decides the recording should end. A
// non-nil error abandons the attempt.
type StopSignal func(context.Context) error

// Options tunes the post-stop flush wait.
//
// With FlushPoll <= 0 the session sleeps exactly FlushTimeout. Otherwise it
// polls the file size every FlushPoll and proceeds once two consecutive
// readings match, waiting at most FlushTimeout.
type Options struct {
	FlushTimeout time.Duration
	FlushPoll    time.Duration
}

// Result is the complete output of one Run invocation.
type Result struct {
	State         fsm.State
	Transcript    string
	Err           error
	BytesCaptured int64
	StartedAt     time.Time
	FinishedAt    time.Time
}

// OK reports whether the attempt produced a transcript.
func (r Result) OK() bool {
	return r.Err == nil && r.Transcript != ""
}

// Session composes capture and transcription into one voice-input attempt.
type Session struct {
	logger     *slog.Logger
	capture    Capturer
	transcribe Transcriber
	indicator  Indicator
	opts       Options

	running atomic.Bool
	sleep   func(context.Context, time.Duration) bool
}

// New constructs a voice session.
func New(logger *slog.Logger, capturer Capturer, transcriber Transcriber, indicator Indicator, opts Options) *Session {
	if indicator == nil {
		indicator = noopIndicator{}
	}
	return &Session{
		logger:     logger,
		capture:    capturer,
		transcribe: transcriber,
		indicator:  indicator,
		opts:       opts,
		sleep:      sleepContext,
	}
}

// Run records until stop returns, then transcribes. Every failure is terminal
// for this attempt and reported through the indicator; the caller may simply
// run again. The recording never outlives the call, including on panic.
func (s *Session) Run(ctx context.Context, stop StopSignal) Result {
	result := Result{State: fsm.StateNotStarted, StartedAt: time.Now()}

	if !s.running.CompareAndSwap(false, true) {
		return s.finish(result, nil, ErrSessionBusy)
	}
	defer s.running.Store(false)

	rec, err := s.capture.Start(ctx)
	if err != nil {
		s.indicator.ShowError(ctx, "Recording error: "+err.Error())
		return s.finish(result, nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err))
	}
	defer s.release(rec)

	s.indicator.ShowRecording(ctx)
	s.indicator.ShowStopPrompt(ctx)

	stopErr := stop(ctx)

	// Stopping must complete even when ctx was cancelled while waiting.
	stopCtx := context.WithoutCancel(ctx)
	if err := s.capture.Stop(stopCtx, rec); err != nil {
		s.logWarn("recorder stop failed", err)
	}
	if stopErr != nil {
		_ = rec.Discard()
		return s.finish(result, rec, stopErr)
	}
	s.indicator.ShowStopped(ctx)

	if !s.waitForFlush(ctx, rec) {
		_ = rec.Discard()
		return s.finish(result, rec, ctx.Err())
	}

	size, _ := rec.Size()
	result.BytesCaptured = size
	if rec.TooShort() {
		_ = rec.Discard()
		s.indicator.ShowError(ctx, "Recording failed or too short")
		return s.finish(result, rec, ErrRecordingTooShort)
	}

	s.indicator.ShowTranscribing(ctx)
	text, err := s.transcribe.Transcribe(ctx, rec.Path)
	if markErr := rec.MarkTranscribed(); markErr != nil {
		s.logWarn("recording state", markErr)
	}
	if err != nil {
		if errors.Is(err, transcribe.ErrEmptyResult) {
			s.indicator.ShowError(ctx, "Empty transcription")
		} else {
			s.indicator.ShowError(ctx, "Transcription error: "+err.Error())
		}
		return s.finish(result, rec, err)
	}

	s.indicator.ShowTranscript(ctx, text)
	result.Transcript = text
	return s.finish(result, rec, nil)
}

// Cleanup force-stops any capture and removes any unfinished recording.
// Safe to call from any state, including from a shutdown hook.
func (s *Session) Cleanup(ctx context.Context) error {
	return s.capture.Cleanup(ctx)
}

// release stops an abandoned capture and removes any file left behind.
func (s *Session) release(rec *audio.Recording) {
	if !rec.Finished() {
		_ = s.capture.Stop(context.Background(), rec)
	}
	if err := rec.Discard(); err != nil {
		s.logWarn("discard recording failed", err)
	}
}

// waitForFlush gives the recorder time to finish writing. It returns false
// when ctx ends first.
func (s *Session) waitForFlush(ctx context.Context, rec *audio.Recording) bool {
	timeout := s.opts.FlushTimeout
	if timeout <= 0 {
		return ctx.Err() == nil
	}
	if s.opts.FlushPoll <= 0 {
		return s.sleep(ctx, timeout)
	}

	var (
		waited time.Duration
		last   int64 = -1
	)
	for {
		size, ok := rec.Size()
		if ok && size == last && size >= rec.MinBytes {
			return true
		}
		if ok {
			last = size
		} else {
			last = -1
		}

		remaining := timeout - waited
		if remaining <= 0 {
			return ctx.Err() == nil
		}
		step := min(s.opts.FlushPoll, remaining)
		if !s.sleep(ctx, step) {
			return false
		}
		waited += step
	}
}

func (s *Session) finish(result Result, rec *audio.Recording, err error) Result {
	if rec != nil {
		result.State = rec.State()
	}
	result.Err = err
	result.FinishedAt = time.Now()

	if s.logger != nil {
		attrs := []any{
			"state", string(result.State),
			"transcript_length", len(result.Transcript),
			"bytes_captured", result.BytesCaptured,
			"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		}
		if err != nil {
			attrs = append(attrs, "error", err.Error())
		}
		s.logger.Info("voice attempt", attrs...)
	}
	return result
}

func (s *Session) logWarn(message string, err error) {
	if s.logger == nil || err == nil {
		return
	}
	s.logger.Warn(message, "error", err.Error())
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
