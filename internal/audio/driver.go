package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rbright/voxrelay/internal/fsm"
)

// Recording is one capture attempt: a unique file path plus its lifecycle state.
//
// The file is never reused; once the recording reaches a terminal state the
// file has been removed or handed off for transcription.
type Recording struct {
	Path     string
	MinBytes int64

	mu    sync.Mutex
	state fsm.State
}

func newRecording(path string, minBytes int64) *Recording {
	return &Recording{Path: path, MinBytes: minBytes, state: fsm.StateNotStarted}
}

// State returns the current lifecycle state.
func (r *Recording) State() fsm.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Finished reports whether the recording reached a terminal state.
func (r *Recording) Finished() bool {
	return fsm.Terminal(r.State())
}

func (r *Recording) advance(event fsm.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := fsm.Transition(r.state, event)
	if err != nil {
		return err
	}
	r.state = next
	return nil
}

// Size returns the current file size and whether the file exists.
func (r *Recording) Size() (int64, bool) {
	info, err := os.Stat(r.Path)
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

// TooShort reports whether the file is missing or below MinBytes.
func (r *Recording) TooShort() bool {
	size, ok := r.Size()
	return !ok || size < r.MinBytes
}

// MarkTranscribed records that transcription was attempted on a stopped recording.
func (r *Recording) MarkTranscribed() error {
	return r.advance(fsm.EventTranscribed)
}

// Discard removes the file and moves the recording to discarded. Discarding an
// already transcribed recording only removes any leftover file.
func (r *Recording) Discard() error {
	_ = r.advance(fsm.EventDiscard)
	if err := os.Remove(r.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove recording %q: %w", r.Path, err)
	}
	return nil
}

// DriverOptions controls where recordings are written and when they count as empty.
type DriverOptions struct {
	Dir       string
	Extension string
	MinBytes  int64
}

// Driver owns the single in-flight Recording and the Recorder behind it.
type Driver struct {
	recorder Recorder
	opts     DriverOptions
	logger   *slog.Logger
	newID    func() string

	mu     sync.Mutex
	active *Recording
}

// NewDriver constructs a capture driver. Empty Dir means os.TempDir.
func NewDriver(recorder Recorder, opts DriverOptions, logger *slog.Logger) *Driver {
	if strings.TrimSpace(opts.Dir) == "" {
		opts.Dir = os.TempDir()
	}
	if opts.Extension == "" {
		opts.Extension = ".m4a"
	}
	if !strings.HasPrefix(opts.Extension, ".") {
		opts.Extension = "." + opts.Extension
	}
	return &Driver{
		recorder: recorder,
		opts:     opts,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Start force-stops any capture left running, then begins a fresh recording
// at a newly generated path.
func (d *Driver) Start(ctx context.Context) (*Recording, error) {
	if err := d.recorder.ForceStop(ctx); err != nil {
		d.logWarn("force stop before start failed", "error", err.Error())
	}

	d.mu.Lock()
	prior := d.active
	d.active = nil
	d.mu.Unlock()
	if prior != nil {
		if err := prior.Discard(); err != nil {
			d.logWarn("discard prior recording failed", "error", err.Error())
		}
	}

	path := filepath.Join(d.opts.Dir, "voxrelay-"+d.newID()+d.opts.Extension)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale recording %q: %w", path, err)
	}

	rec := newRecording(path, d.opts.MinBytes)
	if err := d.recorder.Start(ctx, path); err != nil {
		_ = rec.Discard()
		return nil, err
	}
	if err := rec.advance(fsm.EventStart); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.active = rec
	d.mu.Unlock()
	return rec, nil
}

// Stop signals the recorder to finish and flush. A nil rec stops whatever is
// active. Stopping when nothing is active is a no-op.
func (d *Driver) Stop(ctx context.Context, rec *Recording) error {
	d.mu.Lock()
	active := d.active
	if active == nil || (rec != nil && rec != active) {
		d.mu.Unlock()
		return nil
	}
	d.active = nil
	d.mu.Unlock()

	err := d.recorder.ForceStop(ctx)
	_ = active.advance(fsm.EventStop)
	return err
}

// Active returns the in-flight recording, if any.
func (d *Driver) Active() *Recording {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Cleanup stops any capture and removes any unfinished recording. Safe to call
// from any state, any number of times.
func (d *Driver) Cleanup(ctx context.Context) error {
	d.mu.Lock()
	active := d.active
	d.active = nil
	d.mu.Unlock()

	err := d.recorder.ForceStop(ctx)
	if active != nil && !active.Finished() {
		if derr := active.Discard(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

func (d *Driver) logWarn(msg string, args ...any) {
	if d.logger == nil {
		return
	}
	d.logger.Warn(msg, args...)
}
