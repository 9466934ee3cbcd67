package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/rbright/voxrelay/internal/audio"
	"github.com/rbright/voxrelay/internal/cli"
	"github.com/rbright/voxrelay/internal/config"
	"github.com/rbright/voxrelay/internal/doctor"
	"github.com/rbright/voxrelay/internal/indicator"
	"github.com/rbright/voxrelay/internal/intercept"
	"github.com/rbright/voxrelay/internal/ipc"
	"github.com/rbright/voxrelay/internal/logging"
	"github.com/rbright/voxrelay/internal/mcp"
	"github.com/rbright/voxrelay/internal/relay"
	"github.com/rbright/voxrelay/internal/remote"
	"github.com/rbright/voxrelay/internal/session"
	"github.com/rbright/voxrelay/internal/speech"
	"github.com/rbright/voxrelay/internal/transcribe"
	"github.com/rbright/voxrelay/internal/transcript"
	"github.com/rbright/voxrelay/internal/version"
)

const (
	socketProbeTimeout = 180 * time.Millisecond
	socketRetries      = 8
	statusTimeout      = 220 * time.Millisecond
)

type Runner struct {
	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdin: os.Stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("voxrelay"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("voxrelay"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandMCP:
		return r.commandMCP(ctx, cfgLoaded.Config, logger)
	case cli.CommandRun:
		return r.commandRun(ctx, parsed, cfgLoaded, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) stdin() *os.File {
	if r.Stdin != nil {
		return r.Stdin
	}
	return os.Stdin
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	status, err := ipc.QueryStatus(ctx, socketPath, statusTimeout)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: query session: %v\n", err)
		return 1
	}
	if !status.Running || status.State == "" {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	fmt.Fprintln(r.Stdout, status.State)
	return 0
}

// commandMCP serves the speak tool. Stdout carries the protocol, so every
// diagnostic goes to stderr or the log.
func (r Runner) commandMCP(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	if err := config.Require(cfg, config.RequiredForSpeak); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	server := mcp.NewServer(speech.NewSynthesizer(cfg.TTS, logger), version.Short(), logger)

	// The server blocks in a stdin read; a signal must still end the process.
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx, r.stdin(), r.Stdout)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(r.Stderr, "error: mcp server: %v\n", err)
			logger.Error("mcp server failed", "error", err.Error())
			return 1
		}
	case <-ctx.Done():
	}
	logger.Info("mcp server stopped")
	return 0
}

func (r Runner) commandRun(ctx context.Context, parsed cli.Parsed, loaded config.Loaded, logger *slog.Logger) int {
	cfg := loaded.Config
	if !loaded.Exists {
		fmt.Fprintf(r.Stderr, "error: config file %q not found\n", loaded.Path)
		return 1
	}
	if err := config.Require(cfg, config.RequiredForRun); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("startup failed", "error", err.Error())
		return 1
	}

	localAddr, err := remote.LocalAddrFor(ctx, cfg.SSH.Host)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	plan, err := remote.Build(cfg, parsed.WorkDir, localAddr)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, socketPath, err := acquireOwnerSocket(ctx)
	switch {
	case errors.Is(err, ipc.ErrAlreadyRunning):
		fmt.Fprintln(r.Stderr, "error: another voxrelay session owns the microphone")
		return 1
	case err != nil:
		logger.Warn("owner socket unavailable", "error", err.Error())
	default:
		defer func() {
			_ = listener.Close()
			_ = os.Remove(socketPath)
		}()
	}

	recorder, extension := newRecorder(cfg.Capture, logger)
	driver := audio.NewDriver(recorder, audio.DriverOptions{
		Extension: extension,
		MinBytes:  cfg.Capture.MinBytes,
	}, logger)
	transcriber := transcribe.NewClient(
		transcribe.NewOpenAIService(transcribe.OpenAIOptions{
			APIKey:   cfg.OpenAI.APIKey,
			BaseURL:  cfg.OpenAI.BaseURL,
			Model:    cfg.OpenAI.Model,
			Language: cfg.OpenAI.Language,
		}),
		transcript.Options{TrailingSpace: cfg.Transcript.TrailingSpace},
		logger,
	)
	terminal := indicator.NewTerminal(r.Stderr, cfg.Indicator, logger)
	voice := session.New(logger, driver, transcriber, terminal, session.Options{
		FlushTimeout: time.Duration(cfg.Capture.FlushTimeoutMS) * time.Millisecond,
		FlushPoll:    time.Duration(cfg.Capture.FlushPollMS) * time.Millisecond,
	})

	// A recorder left running by a previous crash would hold the microphone.
	if err := voice.Cleanup(ctx); err != nil {
		logger.Warn("startup capture cleanup failed", "error", err.Error())
	}
	stopShutdownHook := context.AfterFunc(ctx, func() {
		if err := voice.Cleanup(context.Background()); err != nil {
			logger.Warn("shutdown capture cleanup failed", "error", err.Error())
		}
	})
	defer stopShutdownHook()
	defer func() { _ = voice.Cleanup(context.WithoutCancel(ctx)) }()

	input := r.stdin()
	interceptor := intercept.New(input, intercept.NewTTY(input), voice, terminal, logger)

	if listener != nil {
		serveCtx, cancelServe := context.WithCancel(ctx)
		defer cancelServe()
		go func() {
			mode := ipc.ModeFunc(func() string { return interceptor.Mode().String() })
			if err := ipc.Serve(serveCtx, listener, mode, logger); err != nil {
				logger.Warn("owner socket server stopped", "error", err.Error())
			}
		}()
	}

	terminal.ShowBanner(cfg.SSH.Host, plan.WorkDir)
	logger.Info("relay start",
		"host", cfg.SSH.Host,
		"work_dir", plan.WorkDir,
		"local_addr", plan.LocalAddr,
		"capture_backend", cfg.Capture.Backend,
	)

	code, err := relay.Run(ctx, relay.Options{
		Argv:   plan.Argv,
		Input:  input,
		Output: r.Stdout,
		Filter: interceptor.Filter,
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("relay failed", "error", err.Error())
		return 1
	}

	if ctx.Err() != nil {
		fmt.Fprint(r.Stderr, "\r\n\r\nShutting down...\r\n")
		logger.Info("relay interrupted", "child_exit", code)
		return 0
	}

	logger.Info("relay exit", "child_exit", code)
	return code
}

func acquireOwnerSocket(ctx context.Context) (listener net.Listener, path string, err error) {
	path, err = ipc.RuntimeSocketPath()
	if err != nil {
		return nil, "", err
	}
	l, err := ipc.Acquire(ctx, path, socketProbeTimeout, socketRetries, nil)
	if err != nil {
		return nil, path, err
	}
	return l, path, nil
}

// newRecorder picks the capture backend. The pulse backend always writes WAV.
func newRecorder(cfg config.CaptureConfig, logger *slog.Logger) (audio.Recorder, string) {
	if cfg.Backend == config.CaptureBackendPulse {
		return &audio.PulseRecorder{Input: cfg.Input, Fallback: cfg.Fallback, Logger: logger}, ".wav"
	}
	return audio.NewCommandRecorder(cfg.StartCmd.Argv, cfg.StopCmd.Argv, logger), cfg.Extension
}
