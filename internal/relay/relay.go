// Package relay bridges the real terminal and a child process running on a
// pseudo-terminal, routing every input chunk through a filter.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"
)

const (
	inputBufferSize = 1024
	// drainTimeout bounds how long buffered child output is copied after exit.
	drainTimeout = 500 * time.Millisecond
	// terminateGrace is how long the child gets to exit after SIGTERM.
	terminateGrace = 3 * time.Second
	// filterSettleTimeout bounds the wait for an in-flight Filter call on exit.
	filterSettleTimeout = 2 * time.Second
)

// Filter transforms one chunk read from the real terminal before it reaches
// the child. It may block.
type Filter func(ctx context.Context, chunk []byte) []byte

// Options configures one relay run.
type Options struct {
	Argv   []string
	Env    []string
	Input  *os.File
	Output io.Writer
	Filter Filter
	Logger *slog.Logger
}

// Run spawns Argv on a fresh PTY and copies bytes both ways until the child
// exits. Child output is copied unmodified; input goes through Filter.
//
// When Input is a terminal it is put in raw mode for the duration and window
// size changes are forwarded. Cancelling ctx sends SIGTERM to the child.
// The returned code is the child's exit status, or 128+signal when it was
// killed by a signal. An error is returned only when the child could not be
// started or waited on.
func Run(ctx context.Context, opts Options) (int, error) {
	if len(opts.Argv) == 0 {
		return -1, errors.New("relay command is empty")
	}
	if opts.Input == nil || opts.Output == nil {
		return -1, errors.New("relay needs both input and output")
	}
	filter := opts.Filter
	if filter == nil {
		filter = func(_ context.Context, chunk []byte) []byte { return chunk }
	}

	master, slavePath, err := openPTY()
	if err != nil {
		return -1, fmt.Errorf("allocate PTY: %w", err)
	}
	defer master.Close()

	slave, err := os.OpenFile(slavePath, os.O_RDWR, 0)
	if err != nil {
		return -1, fmt.Errorf("open PTY slave %s: %w", slavePath, err)
	}

	inputFd := int(opts.Input.Fd())
	interactive := term.IsTerminal(inputFd)
	masterFd := int(master.Fd())
	if interactive {
		if err := copyWindowSize(inputFd, masterFd); err != nil {
			logDebug(opts.Logger, "initial window size", err)
		}
	}

	cmd := exec.Command(opts.Argv[0], opts.Argv[1:]...)
	if opts.Env != nil {
		cmd.Env = opts.Env
	}
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0, // fd 0 in child = slave PTY
	}

	if err := cmd.Start(); err != nil {
		slave.Close()
		return -1, fmt.Errorf("start %s: %w", opts.Argv[0], err)
	}
	// Close slave in parent; the child has its own copy via fd 0/1/2.
	slave.Close()

	if interactive {
		oldState, err := term.MakeRaw(inputFd)
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return -1, fmt.Errorf("set terminal raw mode: %w", err)
		}
		defer term.Restore(inputFd, oldState)

		winch := make(chan os.Signal, 1)
		signal.Notify(winch, syscall.SIGWINCH)
		defer func() {
			signal.Stop(winch)
			close(winch)
		}()
		go func() {
			for range winch {
				if err := copyWindowSize(inputFd, masterFd); err != nil {
					logDebug(opts.Logger, "window size change", err)
				}
			}
		}()
	}

	// Child output → real terminal. EIO is the normal end once the slave closes.
	outputDone := make(chan struct{})
	go func() {
		defer close(outputDone)
		_, _ = io.Copy(opts.Output, master)
	}()

	// Real terminal → filter → child. This goroutine is left blocked in Read
	// when the child exits first; it ends on the next keystroke or EOF.
	// filterSlot is held for the duration of each Filter call so Run can wait
	// for a capture to unwind (and restore its terminal state) before the
	// deferred raw-mode restore runs.
	inputCtx, stopInput := context.WithCancel(ctx)
	defer stopInput()
	filterSlot := make(chan struct{}, 1)
	go func() {
		buf := make([]byte, inputBufferSize)
		for {
			n, err := opts.Input.Read(buf)
			if n > 0 {
				select {
				case filterSlot <- struct{}{}:
				case <-inputCtx.Done():
					return
				}
				if inputCtx.Err() != nil {
					<-filterSlot
					return
				}
				chunk := filter(inputCtx, buf[:n])
				<-filterSlot
				if inputCtx.Err() != nil {
					return
				}
				if len(chunk) > 0 {
					if _, werr := master.Write(chunk); werr != nil {
						return
					}
				}
			}
			if err != nil {
				return
			}
		}
	}()

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	var waitErr error
	select {
	case waitErr = <-exited:
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case waitErr = <-exited:
		case <-time.After(terminateGrace):
			_ = cmd.Process.Kill()
			waitErr = <-exited
		}
	}
	stopInput()

	// Taking the slot also keeps any later chunk from entering Filter.
	select {
	case filterSlot <- struct{}{}:
	case <-time.After(filterSettleTimeout):
		logDebug(opts.Logger, "input filter still running at exit", context.DeadlineExceeded)
	}

	select {
	case <-outputDone:
	case <-time.After(drainTimeout):
	}

	return exitCode(waitErr)
}

// exitCode maps a Wait result to a shell-style status.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, fmt.Errorf("wait for child: %w", err)
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal()), nil
	}
	return exitErr.ExitCode(), nil
}

func logDebug(logger *slog.Logger, msg string, err error) {
	if logger == nil || err == nil {
		return
	}
	logger.Debug(msg, "error", err.Error())
}
