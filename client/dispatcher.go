// Package client implements the caller side of a channel: it turns a typed
// invocation into a request frame, blocks for the matching response and
// decodes the result.
//
// Invocation pipeline:
//
//	Invoke → lock → next call id → codec.Encode args → SendRequest
//	  → RecvResponse → check call id → codec.Decode result → unlock
package client

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"pipecall/codec"
	"pipecall/message"
	"pipecall/transport"
)

// Dispatcher owns the caller end of one channel. Calls are serialized: at
// most one is on the wire at a time and concurrent callers queue on the lock.
type Dispatcher struct {
	ch     *transport.Channel
	logger *zap.Logger

	mu     sync.Mutex // held for the whole round trip
	nextID int32
}

// NewDispatcher wraps a channel that has completed Dial.
func NewDispatcher(ch *transport.Channel, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		ch:     ch,
		logger: logger.With(zap.Stringer("channel", ch.ID())),
	}
}

// Invoke calls op on the child. Each argument is encoded with the type at the
// same position of argTypes and the result is decoded with ret.
//
// Errors: codec.ErrSerialization for encode/decode faults, *RemoteError for a
// failure response, ErrProtocol for a mismatched response, and transport
// errors when the channel breaks. There is no timeout: a hung child blocks
// the call until the channel is closed.
func (d *Dispatcher) Invoke(op string, args []codec.Value, argTypes []*codec.Type, ret *codec.Type) (codec.Value, error) {
	if len(args) != len(argTypes) {
		return codec.Null(), fmt.Errorf("%w: %s got %d arguments for %d parameters", ErrArgCount, op, len(args), len(argTypes))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.allocateID()

	blocks := make([][]byte, len(args))
	for i, a := range args {
		b, err := codec.Encode(a, argTypes[i])
		if err != nil {
			return codec.Null(), fmt.Errorf("%s argument %d: %w", op, i, err)
		}
		blocks[i] = b
	}

	if err := d.ch.SendRequest(&message.Request{CallID: id, Operation: op, Args: blocks}); err != nil {
		return codec.Null(), fmt.Errorf("%s: %w", op, err)
	}

	resp, err := d.ch.RecvResponse()
	if err != nil {
		return codec.Null(), fmt.Errorf("%s: %w", op, err)
	}

	if resp.CallID != id {
		err := fmt.Errorf("%w: response for call %d while waiting for call %d", ErrProtocol, resp.CallID, id)
		d.ch.Fault(err)
		return codec.Null(), err
	}

	if !resp.Success {
		d.logger.Debug("remote failure", zap.Int32("call", id), zap.String("op", op), zap.String("error", resp.Error))
		return codec.Null(), &RemoteError{Operation: op, Message: resp.Error}
	}

	result, err := codec.Decode(resp.Result, ret)
	if err != nil {
		return codec.Null(), fmt.Errorf("%s result: %w", op, err)
	}
	return result, nil
}

// allocateID must be called with mu held. IDs start at 1 and restart at 1
// after the int32 range is used up.
func (d *Dispatcher) allocateID() int32 {
	if d.nextID == math.MaxInt32 {
		d.nextID = 0
	}
	d.nextID++
	return d.nextID
}

// Close closes the channel. A call blocked waiting for its response fails
// with a transport error.
func (d *Dispatcher) Close() error {
	return d.ch.Close()
}

func (d *Dispatcher) Channel() *transport.Channel { return d.ch }
