// Package transcribe turns a finished recording into text through a speech-to-text service.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/voxrelay/internal/transcript"
)

// ErrEmptyResult indicates the service answered but recognized no text.
var ErrEmptyResult = errors.New("empty transcription")

// ServiceError wraps any transport or service failure.
type ServiceError struct {
	Cause error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return "transcription service failed"
	}
	return "transcription service: " + e.Cause.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Service uploads one audio file and returns the raw recognized text.
type Service interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Client applies transcript normalization and owns recording file removal.
type Client struct {
	service Service
	opts    transcript.Options
	logger  *slog.Logger
}

// NewClient wraps service with normalization and cleanup.
func NewClient(service Service, opts transcript.Options, logger *slog.Logger) *Client {
	return &Client{service: service, opts: opts, logger: logger}
}

// Transcribe uploads the file at path and returns normalized text.
//
// The file is removed before returning on every path: success, empty result,
// or failure.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	defer c.remove(path)

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat recording: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("recording %q is empty", path)
	}

	started := time.Now()
	raw, err := c.service.Transcribe(ctx, path)
	if err != nil {
		return "", &ServiceError{Cause: err}
	}

	text := transcript.Normalize(raw, c.opts)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResult
	}

	if c.logger != nil {
		c.logger.Debug("transcription complete",
			"bytes", info.Size(),
			"latency_ms", time.Since(started).Milliseconds(),
			"transcript_length", len(text),
		)
	}
	return text, nil
}

func (c *Client) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) && c.logger != nil {
		c.logger.Warn("remove recording failed", "path", path, "error", err.Error())
	}
}
