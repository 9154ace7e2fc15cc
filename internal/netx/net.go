// Package netx classifies errors coming off network connections.
package netx

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsTimeout reports whether err is a deadline or timeout error.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsDisconnect reports whether err means the peer went away: a clean EOF,
// a closed connection, a reset or a broken pipe.
func IsDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
