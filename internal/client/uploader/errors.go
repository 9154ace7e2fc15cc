package uploader

import (
	"errors"
	"fmt"
)

// ErrProtocol reports a server reply that does not fit the conversation.
var ErrProtocol = errors.New("protocol error")

// RemoteError carries a refusal sent by the server.
type RemoteError struct {
	// Stage is "auth", "negotiation" or "packet".
	Stage   string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server refused %s: %s", e.Stage, e.Message)
}
