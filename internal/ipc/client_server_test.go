package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startOwner(t *testing.T, socketPath string, session Session) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, listener, session, nil)
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestQueryStatusReportsOwnerMode(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voxrelay.sock")
	mode := "capturing"
	shutdown := startOwner(t, socketPath, ModeFunc(func() string { return mode }))

	status, err := QueryStatus(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, status.Running)
	require.Equal(t, "capturing", status.State)

	shutdown()

	status, err = QueryStatus(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, status.Running)
}

func TestQueryStatusMissingSocketIsNotRunning(t *testing.T) {
	status, err := QueryStatus(context.Background(), filepath.Join(t.TempDir(), "absent.sock"), 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, status.Running)
}

func TestQueryStatusRejectedIsError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voxrelay.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadBytes('\n')
		_ = json.NewEncoder(conn).Encode(Response{OK: false, Error: "busy"})
	}()

	_, err = QueryStatus(context.Background(), socketPath, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "busy")
}

func TestSendDecodeResponseError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voxrelay.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		_, _ = reader.ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestSendReadResponseError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voxrelay.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		_ = conn.Close()
	}()

	_, err = send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response")
}

func rawExchange(t *testing.T, socketPath string, line string) Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(line))
	require.NoError(t, err)

	reply, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(reply, &resp))
	return resp
}

func TestServeRejectsMalformedRequest(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voxrelay.sock")
	shutdown := startOwner(t, socketPath, ModeFunc(func() string { return "passthrough" }))
	defer shutdown()

	resp := rawExchange(t, socketPath, "not-json\n")
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")
}

func TestServeRejectsUnknownCommand(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voxrelay.sock")
	shutdown := startOwner(t, socketPath, ModeFunc(func() string { return "passthrough" }))
	defer shutdown()

	resp := rawExchange(t, socketPath, `{"command":"toggle"}`+"\n")
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unsupported command: toggle")
}

func TestServeRejectsOversizedRequest(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voxrelay.sock")
	shutdown := startOwner(t, socketPath, ModeFunc(func() string { return "passthrough" }))
	defer shutdown()

	resp := rawExchange(t, socketPath, strings.Repeat("x", maxRequestBytes+10)+"\n")
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "read request")
}

func TestOwnerAlive(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "voxrelay.sock")
	shutdown := startOwner(t, socketPath, ModeFunc(func() string { return "idle" }))

	alive, err := ownerAlive(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, alive)

	shutdown()

	alive, err = ownerAlive(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestSocketErrorHelpers(t *testing.T) {
	require.False(t, isSocketMissing(nil))
	require.False(t, isConnectionRefused(nil))

	require.True(t, isSocketMissing(os.ErrNotExist))
	require.True(t, isSocketMissing(errors.New("dial unix /tmp/voxrelay.sock: no such file or directory")))
	require.False(t, isSocketMissing(errors.New("other error")))

	require.True(t, isConnectionRefused(syscall.ECONNREFUSED))
	require.False(t, isConnectionRefused(errors.New("other error")))
}
