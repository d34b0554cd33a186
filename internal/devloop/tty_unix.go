//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package devloop

import (
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// makeCbreak disables echo and line buffering on fd so single keypresses
// can be read. Output processing and signal generation stay enabled. The
// returned func restores the previous state.
func makeCbreak(fd int) (func() error, error) {
	old, err := term.GetState(fd)
	if err != nil {
		return nil, err
	}

	t, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return nil, err
	}

	t.Lflag &^= unix.ECHO | unix.ICANON
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, t); err != nil {
		return nil, err
	}

	return func() error { return term.Restore(fd, old) }, nil
}
