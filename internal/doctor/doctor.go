// Package doctor runs readiness diagnostics for config, tools, audio, and the
// transcription service.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rbright/voxrelay/internal/audio"
	"github.com/rbright/voxrelay/internal/config"
)

const probeTimeout = 5 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfigFile(loaded)}

	checks = append(checks, checkRequired(cfg))
	checks = append(checks, checkBinary("ssh", "relay transport"))
	checks = append(checks, checkKeyFile(cfg.SSH.KeyPath))

	switch cfg.Capture.Backend {
	case config.CaptureBackendPulse:
		checks = append(checks, checkAudioSelection(ctx, cfg))
	default:
		checks = append(checks, checkCommand(cfg.Capture.StartCmd.Argv, "capture.start_cmd"))
		if len(cfg.Capture.StopCmd.Argv) > 0 {
			checks = append(checks, checkCommand(cfg.Capture.StopCmd.Argv, "capture.stop_cmd"))
		}
	}

	checks = append(checks, checkCommand(cfg.TTS.Command.Argv, "tts.command"))
	checks = append(checks, checkTranscriptionService(ctx, cfg.OpenAI))

	return Report{Checks: checks}
}

func checkConfigFile(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: false, Message: fmt.Sprintf("%q not found", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

func checkRequired(cfg config.Config) Check {
	if err := config.Require(cfg, config.RequiredForRun); err != nil {
		return Check{Name: "config.required", Pass: false, Message: err.Error()}
	}
	return Check{Name: "config.required", Pass: true, Message: "all required keys present"}
}

// checkKeyFile validates the ssh identity exists and is a regular file.
func checkKeyFile(raw string) Check {
	if strings.TrimSpace(raw) == "" {
		return Check{Name: "ssh.key_path", Pass: false, Message: "ssh.key_path is empty"}
	}
	path := config.ExpandUser(raw)
	info, err := os.Stat(path)
	if err != nil {
		return Check{Name: "ssh.key_path", Pass: false, Message: err.Error()}
	}
	if !info.Mode().IsRegular() {
		return Check{Name: "ssh.key_path", Pass: false, Message: fmt.Sprintf("%s is not a regular file", path)}
	}
	return Check{Name: "ssh.key_path", Pass: true, Message: path}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Capture.Input, cfg.Capture.Fallback)
	if err != nil {
		return Check{Name: "capture.input", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "capture.input", Pass: true, Message: message}
}

// checkTranscriptionService lists models to prove the endpoint is reachable
// and accepts the API key.
func checkTranscriptionService(ctx context.Context, cfg config.OpenAIConfig) Check {
	const name = "openai"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Check{Name: name, Pass: false, Message: "openai.api_key is empty and OPENAI_API_KEY is unset"}
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientConfig.BaseURL = base
	}
	clientConfig.HTTPClient = &http.Client{Timeout: probeTimeout}
	client := openai.NewClientWithConfig(clientConfig)

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := client.ListModels(probeCtx); err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			if apiErr.HTTPStatusCode == http.StatusUnauthorized {
				return Check{Name: name, Pass: false, Message: "API key rejected (HTTP 401)"}
			}
			return Check{Name: name, Pass: false, Message: fmt.Sprintf("HTTP %d from %s", apiErr.HTTPStatusCode, clientConfig.BaseURL)}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return Check{Name: name, Pass: false, Message: fmt.Sprintf("HTTP %d from %s", reqErr.HTTPStatusCode, clientConfig.BaseURL)}
		}
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}

	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %s", clientConfig.BaseURL)}
}
