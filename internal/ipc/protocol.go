// Package ipc exposes a running voxrelay session on a per-user unix socket.
// Owning the socket means owning the microphone.
package ipc

// CommandStatus asks the owner for its interceptor mode.
const CommandStatus = "status"

// Request is one newline-terminated JSON line sent to the owner socket.
type Request struct {
	Command string `json:"command"`
}

// Response is the owner's single-line reply.
type Response struct {
	OK    bool   `json:"ok"`
	State string `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

// Session is what the owner socket reports about the running relay.
type Session interface {
	// Mode is the interceptor mode: passthrough or capturing.
	Mode() string
}

// ModeFunc adapts a function to Session.
type ModeFunc func() string

func (f ModeFunc) Mode() string {
	return f()
}

func answer(session Session, req Request) Response {
	switch req.Command {
	case CommandStatus:
		return Response{OK: true, State: session.Mode()}
	default:
		return Response{OK: false, Error: "unsupported command: " + req.Command}
	}
}
