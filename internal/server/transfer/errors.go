package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfSequence is returned when a FilePart does not carry the packet
	// number the receiver expects next.
	ErrOutOfSequence = errors.New("packet out of sequence")
	// ErrBadPacket is returned when a FilePart carries the wrong amount of
	// data for its position in the file.
	ErrBadPacket = errors.New("bad packet length")
)

// RejectError is a negotiation failure. Reason is reported to the peer as a
// FailMessage; Err, when set, is the underlying cause and stays in the logs.
type RejectError struct {
	Reason string
	Err    error
}

func (e *RejectError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

func reject(err error, format string, args ...any) *RejectError {
	return &RejectError{Reason: fmt.Sprintf(format, args...), Err: err}
}
