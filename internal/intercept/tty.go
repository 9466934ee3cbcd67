package intercept

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// TTY switches a real terminal file descriptor between modes.
type TTY struct {
	fd int
}

// NewTTY wraps the terminal behind f.
func NewTTY(f *os.File) *TTY {
	return &TTY{fd: int(f.Fd())}
}

// Cbreak turns off echo and canonical line editing, leaving output processing
// alone, and delivers each keystroke as soon as it is typed.
func (t *TTY) Cbreak() (func() error, error) {
	saved, err := term.GetState(t.fd)
	if err != nil {
		return nil, fmt.Errorf("save terminal mode: %w", err)
	}

	termios, err := unix.IoctlGetTermios(t.fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("read terminal mode: %w", err)
	}
	termios.Lflag &^= unix.ECHO | unix.ICANON
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(t.fd, unix.TCSETS, termios); err != nil {
		_ = term.Restore(t.fd, saved)
		return nil, fmt.Errorf("set cbreak mode: %w", err)
	}

	return func() error {
		return term.Restore(t.fd, saved)
	}, nil
}
