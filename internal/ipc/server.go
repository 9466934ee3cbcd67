package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	// requestTimeout bounds how long one status client may hold a connection.
	requestTimeout  = 2 * time.Second
	maxRequestBytes = 4 << 10
)

// Serve answers status queries about session until ctx is cancelled or the
// listener closes. Each connection carries exactly one request line.
func Serve(ctx context.Context, listener net.Listener, session Session, logger *slog.Logger) error {
	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept owner socket connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()

			resp, err := handleConn(c, session)
			if err != nil && logger != nil {
				logger.Debug("owner socket request rejected", "error", err.Error())
			}
			_ = json.NewEncoder(c).Encode(resp)
		}(conn)
	}
}

func handleConn(c net.Conn, session Session) (Response, error) {
	if err := c.SetDeadline(time.Now().Add(requestTimeout)); err != nil {
		return Response{OK: false, Error: "set deadline"}, err
	}

	line, err := bufio.NewReader(io.LimitReader(c, maxRequestBytes)).ReadBytes('\n')
	if err != nil {
		err = fmt.Errorf("read request: %w", err)
		return Response{OK: false, Error: err.Error()}, err
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		err = fmt.Errorf("decode request: %w", err)
		return Response{OK: false, Error: err.Error()}, err
	}

	resp := answer(session, req)
	if !resp.OK {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}
