package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// PathPlaceholder is replaced with the recording path in a start command.
const PathPlaceholder = "{path}"

// Recorder drives one external capture source that writes audio to a file.
//
// ForceStop must be safe to call when nothing is recording.
type Recorder interface {
	Start(ctx context.Context, path string) error
	ForceStop(ctx context.Context) error
}

// CommandRecorder captures through an external recorder program.
//
// The start command is launched in the background; the stop command asks the
// recorder to finish and flush. When no stop command is configured the started
// process is interrupted instead.
type CommandRecorder struct {
	StartArgv   []string
	StopArgv    []string
	StopTimeout time.Duration
	Logger      *slog.Logger

	mu   sync.Mutex
	proc *os.Process
	done chan struct{}
}

// NewCommandRecorder builds a recorder from pre-split start/stop argv.
func NewCommandRecorder(startArgv []string, stopArgv []string, logger *slog.Logger) *CommandRecorder {
	return &CommandRecorder{
		StartArgv:   append([]string(nil), startArgv...),
		StopArgv:    append([]string(nil), stopArgv...),
		StopTimeout: time.Second,
		Logger:      logger,
	}
}

// Start launches the recorder writing to path with no duration limit.
func (r *CommandRecorder) Start(ctx context.Context, path string) error {
	if len(r.StartArgv) == 0 {
		return errors.New("recorder start command is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	argv := expandPath(r.StartArgv, path)
	cmd := exec.Command(argv[0], argv[1:]...)
	// The terminal belongs to the relayed session; recorder output is discarded.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start recorder %q: %w", argv[0], err)
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	r.mu.Lock()
	r.proc = cmd.Process
	r.done = done
	r.mu.Unlock()

	r.logDebug("recorder started", "argv0", argv[0], "pid", cmd.Process.Pid)
	return nil
}

// ForceStop asks the recorder to finish. It is idempotent and never fails
// because nothing was recording.
func (r *CommandRecorder) ForceStop(ctx context.Context) error {
	timeout := r.StopTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	if len(r.StopArgv) > 0 {
		stopCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var stderr bytes.Buffer
		cmd := exec.CommandContext(stopCtx, r.StopArgv[0], r.StopArgv[1:]...)
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			// The stop command reports an error when no capture is running.
			r.logDebug("recorder stop command failed", "error", err.Error(), "stderr", strings.TrimSpace(stderr.String()))
		}
	}

	r.mu.Lock()
	proc := r.proc
	done := r.done
	r.proc = nil
	r.done = nil
	r.mu.Unlock()

	if proc == nil || done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	default:
	}

	_ = proc.Signal(os.Interrupt)
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
	}

	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill recorder: %w", err)
	}
	<-done
	return nil
}

func (r *CommandRecorder) logDebug(msg string, args ...any) {
	if r.Logger == nil {
		return
	}
	r.Logger.Debug(msg, args...)
}

// expandPath substitutes PathPlaceholder in argv, appending path when no
// argument carries the placeholder.
func expandPath(argv []string, path string) []string {
	out := make([]string, 0, len(argv)+1)
	replaced := false
	for _, arg := range argv {
		if strings.Contains(arg, PathPlaceholder) {
			arg = strings.ReplaceAll(arg, PathPlaceholder, path)
			replaced = true
		}
		out = append(out, arg)
	}
	if !replaced {
		out = append(out, path)
	}
	return out
}
