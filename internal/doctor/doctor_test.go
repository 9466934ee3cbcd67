package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/voxrelay/internal/config"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "capture.start_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-tts")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-tts", "--arg"}, "tts.command")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "tts.command command is available")
}

func TestCheckConfigFile(t *testing.T) {
	check := checkConfigFile(config.Loaded{Path: "/tmp/missing.jsonc"})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "not found")

	check = checkConfigFile(config.Loaded{Path: "/tmp/cfg.jsonc", Exists: true})
	require.True(t, check.Pass)
}

func TestCheckRequiredListsMissingKeys(t *testing.T) {
	check := checkRequired(config.Default())
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "ssh.host")
	require.Contains(t, check.Message, "tts.rate")
}

func TestCheckKeyFile(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(key, []byte("key"), 0o600))

	require.True(t, checkKeyFile(key).Pass)
	require.False(t, checkKeyFile("").Pass)
	require.False(t, checkKeyFile(dir).Pass)
	require.False(t, checkKeyFile(filepath.Join(dir, "missing")).Pass)
}

func TestCheckTranscriptionServiceSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"whisper-1","object":"model"}]}`))
	}))
	t.Cleanup(server.Close)

	check := checkTranscriptionService(context.Background(), config.OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "reachable at")
}

func TestCheckTranscriptionServiceRejectedKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	t.Cleanup(server.Close)

	check := checkTranscriptionService(context.Background(), config.OpenAIConfig{APIKey: "sk-bad", BaseURL: server.URL + "/v1"})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 401")
}

func TestCheckTranscriptionServiceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	check := checkTranscriptionService(context.Background(), config.OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "HTTP 503")
}

func TestCheckTranscriptionServiceMissingKey(t *testing.T) {
	check := checkTranscriptionService(context.Background(), config.OpenAIConfig{})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "OPENAI_API_KEY")
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), config.Default())
	require.False(t, check.Pass)
	require.Equal(t, "capture.input", check.Name)
}

func TestRunCommandBackendChecksRecorderBinaries(t *testing.T) {
	binDir := t.TempDir()
	for _, name := range []string{"termux-microphone-record", "termux-tts-speak"} {
		require.NoError(t, os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755))
	}
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: config.Default()})
	require.False(t, report.OK())

	byName := map[string]Check{}
	for _, check := range report.Checks {
		byName[check.Name] = check
	}
	require.True(t, byName["termux-microphone-record"].Pass)
	require.True(t, byName["termux-tts-speak"].Pass)
	require.False(t, byName["config"].Pass)
	require.False(t, byName["openai"].Pass)
	_, sawPulse := byName["capture.input"]
	require.False(t, sawPulse)
}

func TestRunPulseBackendChecksDevice(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	cfg := config.Default()
	cfg.Capture.Backend = config.CaptureBackendPulse

	report := Run(context.Background(), config.Loaded{Path: "/tmp/config.jsonc", Config: cfg})

	var sawPulse bool
	for _, check := range report.Checks {
		if check.Name == "capture.input" {
			sawPulse = true
		}
	}
	require.True(t, sawPulse)
}
