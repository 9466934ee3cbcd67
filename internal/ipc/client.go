package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"time"
)

// Status is what `voxrelay status` learns about the socket owner.
type Status struct {
	// Running is false when no session is listening on the socket.
	Running bool
	State   string
}

// QueryStatus asks the session owning path for its interceptor mode. A missing
// socket or one nobody listens on is reported as not running, not as an error.
func QueryStatus(ctx context.Context, path string, timeout time.Duration) (Status, error) {
	resp, err := send(ctx, path, Request{Command: CommandStatus}, timeout)
	if err != nil {
		if isSocketMissing(err) || isConnectionRefused(err) {
			return Status{}, nil
		}
		return Status{}, err
	}
	if !resp.OK {
		return Status{}, fmt.Errorf("session rejected status query: %s", resp.Error)
	}
	return Status{Running: true, State: resp.State}, nil
}

// send performs one request/response roundtrip with a deadline.
func send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// ownerAlive reports whether anything answers on path. Any reply, even a
// rejection, means the socket is taken.
func ownerAlive(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := send(ctx, path, Request{Command: CommandStatus}, timeout)
	if err == nil {
		return true, nil
	}
	if isSocketMissing(err) || isConnectionRefused(err) {
		return false, nil
	}
	return false, fmt.Errorf("query owner: %w", err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
