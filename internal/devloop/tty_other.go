//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package devloop

// makeCbreak is a no-op where termios is unavailable; keypresses are then
// only seen after Enter.
func makeCbreak(int) (func() error, error) {
	return func() error { return nil }, nil
}
