package client

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol reports a response that does not belong to the pending
	// call. The channel is faulted when it is returned.
	ErrProtocol = errors.New("client: protocol fault")

	ErrArgCount = errors.New("client: argument count does not match parameter count")
)

// RemoteError is a failure response from the child. Message is the text the
// child sent, unchanged.
type RemoteError struct {
	Operation string
	Message   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Operation, e.Message)
}
