// Package transport implements the duplex channel between a caller and the
// child process serving it.
//
// A Channel owns two independent byte streams: one carries caller→callee
// bytes, the other callee→caller bytes. Before any frame is exchanged both
// sides handshake:
//
//	caller                          callee
//	  │ ── "PING" (length-prefixed) ──► │
//	  │ ◄── "PONG" (length-prefixed) ── │
//
// State machine:
//
//	Disconnected ─► Handshaking ─► Ready ─┬─► Closed
//	                     │                └─► Faulted
//	                     └─────────────────────► Faulted
//
// Closed and Faulted are terminal; there is no reconnection.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pipecall/message"
	"pipecall/protocol"
)

const (
	pingLiteral = "PING"
	pongLiteral = "PONG"

	// handshake replies are tiny; anything longer is not a peer
	maxHandshakeLen = 64
)

type State int32

const (
	StateDisconnected State = iota
	StateHandshaking
	StateReady
	StateClosed
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Channel is one duplex pipe pair plus its handshake state. Only the call
// dispatcher (caller side) or the service host (callee side) may use it, and
// never both on the same end.
type Channel struct {
	id     uuid.UUID
	r      *bufio.Reader // inbound stream
	w      *bufio.Writer // outbound stream
	in     io.Closer
	out    io.Closer
	limits protocol.Limits
	logger *zap.Logger

	state     atomic.Int32
	fault     atomic.Pointer[error]
	closeOnce sync.Once
	closeErr  error
}

type Option func(*Channel)

func WithID(id uuid.UUID) Option {
	return func(c *Channel) { c.id = id }
}

func WithLimits(l protocol.Limits) Option {
	return func(c *Channel) { c.limits = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// New wraps an inbound and an outbound stream. The channel takes ownership of
// both and closes them in Close.
func New(in io.ReadCloser, out io.WriteCloser, opts ...Option) *Channel {
	c := &Channel{
		id:     uuid.New(),
		r:      bufio.NewReader(in),
		w:      bufio.NewWriter(out),
		in:     in,
		out:    out,
		limits: protocol.DefaultLimits(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.Stringer("channel", c.id))
	return c
}

// Pipe returns a connected in-memory caller/callee pair.
func Pipe(opts ...Option) (caller, callee *Channel) {
	upR, upW := io.Pipe()     // caller -> callee
	downR, downW := io.Pipe() // callee -> caller
	id := uuid.New()
	opts = append([]Option{WithID(id)}, opts...)
	return New(downR, upW, opts...), New(upR, downW, opts...)
}

func (c *Channel) ID() uuid.UUID { return c.id }

func (c *Channel) State() State { return State(c.state.Load()) }

// Err returns the fault that moved the channel to Faulted, if any.
func (c *Channel) Err() error {
	if p := c.fault.Load(); p != nil {
		return *p
	}
	return nil
}

// Dial runs the caller half of the handshake: send PING, expect PONG.
func (c *Channel) Dial() error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateHandshaking)) {
		return fmt.Errorf("%w: dial in state %s", ErrNotReady, c.State())
	}

	if err := protocol.WriteString(c.w, pingLiteral); err != nil {
		return c.handshakeFailed(err)
	}
	if err := c.w.Flush(); err != nil {
		return c.handshakeFailed(err)
	}

	reply, err := protocol.ReadString(c.r, maxHandshakeLen)
	if err != nil {
		return c.handshakeFailed(err)
	}
	if reply != pongLiteral {
		return c.handshakeFailed(fmt.Errorf("unexpected reply %q", reply))
	}

	if !c.state.CompareAndSwap(int32(StateHandshaking), int32(StateReady)) {
		return c.handshakeLost()
	}
	c.logger.Debug("channel ready", zap.String("role", "caller"))
	return nil
}

// Accept runs the callee half of the handshake: wait for PING, answer PONG.
func (c *Channel) Accept() error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateHandshaking)) {
		return fmt.Errorf("%w: accept in state %s", ErrNotReady, c.State())
	}

	greeting, err := protocol.ReadString(c.r, maxHandshakeLen)
	if err != nil {
		return c.handshakeFailed(err)
	}
	if greeting != pingLiteral {
		return c.handshakeFailed(fmt.Errorf("unexpected greeting %q", greeting))
	}

	if err := protocol.WriteString(c.w, pongLiteral); err != nil {
		return c.handshakeFailed(err)
	}
	if err := c.w.Flush(); err != nil {
		return c.handshakeFailed(err)
	}

	if !c.state.CompareAndSwap(int32(StateHandshaking), int32(StateReady)) {
		return c.handshakeLost()
	}
	c.logger.Debug("channel ready", zap.String("role", "callee"))
	return nil
}

// handshakeLost reports a handshake that completed on the wire after the
// channel was closed or faulted underneath it.
func (c *Channel) handshakeLost() error {
	if c.State() == StateClosed {
		return fmt.Errorf("%w: %w", ErrHandshake, ErrClosed)
	}
	return fmt.Errorf("%w: %w", ErrHandshake, c.Err())
}

func (c *Channel) handshakeFailed(cause error) error {
	err := fmt.Errorf("%w: %w", ErrHandshake, cause)
	c.Fault(err)
	return err
}

// SendRequest writes and flushes one request frame.
func (c *Channel) SendRequest(req *message.Request) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := protocol.WriteRequest(c.w, req); err != nil {
		return c.fail(err)
	}
	if err := c.w.Flush(); err != nil {
		return c.fail(err)
	}
	return nil
}

// RecvResponse blocks until one full response frame has been read.
func (c *Channel) RecvResponse() (*message.Response, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	resp, err := protocol.ReadResponse(c.r, c.limits)
	if err != nil {
		return nil, c.fail(err)
	}
	return resp, nil
}

// RecvRequest blocks until one full request frame has been read. A peer that
// closed its end between frames yields an error matching io.EOF.
func (c *Channel) RecvRequest() (*message.Request, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	req, err := protocol.ReadRequest(c.r, c.limits)
	if err != nil {
		return nil, c.fail(err)
	}
	return req, nil
}

// SendResponse writes and flushes one response frame.
func (c *Channel) SendResponse(resp *message.Response) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := protocol.WriteResponse(c.w, resp); err != nil {
		return c.fail(err)
	}
	if err := c.w.Flush(); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Channel) ready() error {
	switch s := c.State(); s {
	case StateReady:
		return nil
	case StateClosed:
		return fmt.Errorf("%w: %w", ErrTransport, ErrClosed)
	case StateFaulted:
		return fmt.Errorf("%w: faulted: %w", ErrNotReady, c.Err())
	default:
		return fmt.Errorf("%w: %s", ErrNotReady, s)
	}
}

// fail faults the channel. Frame decoding errors keep their protocol identity;
// everything else is an I/O failure.
func (c *Channel) fail(cause error) error {
	err := cause
	if !errors.Is(cause, protocol.ErrMalformed) && !errors.Is(cause, protocol.ErrFrameTooLarge) {
		err = fmt.Errorf("%w: %w", ErrTransport, cause)
	}
	if c.State() == StateClosed {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	c.Fault(err)
	return err
}

// Fault marks the channel unusable. The first fault wins; a closed channel
// stays closed.
func (c *Channel) Fault(err error) {
	if c.fault.CompareAndSwap(nil, &err) {
		for {
			s := c.state.Load()
			if State(s) == StateClosed || State(s) == StateFaulted {
				break
			}
			if c.state.CompareAndSwap(s, int32(StateFaulted)) {
				c.logger.Warn("channel faulted", zap.Error(err))
				break
			}
		}
	}
}

// Close releases both streams. It is safe to call more than once and from a
// goroutine other than the one blocked on the channel; the blocked call then
// fails with a transport fault.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		for {
			s := c.state.Load()
			if State(s) == StateFaulted || c.state.CompareAndSwap(s, int32(StateClosed)) {
				break
			}
		}
		c.closeErr = multierr.Combine(c.in.Close(), c.out.Close())
		c.logger.Debug("channel closed", zap.Stringer("state", c.State()), zap.Error(c.closeErr))
	})
	return c.closeErr
}
