package transport

import "errors"

var (
	// ErrHandshake is the connection-establishment fault: the PING/PONG
	// exchange failed and the channel never became ready.
	ErrHandshake = errors.New("transport: handshake failed")
	// ErrTransport wraps every I/O failure on an established channel.
	ErrTransport = errors.New("transport: channel i/o failed")
	ErrNotReady  = errors.New("transport: channel not ready")
	ErrClosed    = errors.New("transport: channel closed")
)
