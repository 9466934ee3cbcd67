package session

import "errors"

var (
	// ErrCaptureUnavailable indicates the recorder could not be started.
	ErrCaptureUnavailable = errors.New("audio capture unavailable")
	// ErrRecordingTooShort indicates the recording was missing or below the size threshold.
	ErrRecordingTooShort = errors.New("recording failed or too short")
	// ErrSessionBusy indicates another voice attempt is already in flight.
	ErrSessionBusy = errors.New("voice session already running")
)
