// Package server implements the child side of a channel: a strictly
// sequential loop that reads a request, dispatches it through the service
// table and writes exactly one response.
//
// Request processing pipeline:
//
//	RecvRequest (whole frame) → table lookup → codec.Decode args
//	  → middleware chain → invoker → codec.Encode result → SendResponse
//
// Anything that goes wrong between the two frame operations becomes a
// failure response and the loop continues. Only transport faults end it.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"pipecall/codec"
	"pipecall/message"
	"pipecall/middleware"
	"pipecall/service"
	"pipecall/transport"
)

// Host serves one service table over a channel.
type Host struct {
	table       *service.Table
	logger      *zap.Logger
	middlewares []middleware.Middleware // applied in the order added
}

func NewHost(table *service.Table, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{table: table, logger: logger.With(zap.String("service", table.Name()))}
}

// Use registers a middleware. Must be called before Serve.
func (h *Host) Use(mw ...middleware.Middleware) {
	h.middlewares = append(h.middlewares, mw...)
}

// Serve runs the request loop on a channel that completed Accept. It returns
// nil when the caller closed its end between frames or ctx was cancelled, and
// the transport fault otherwise.
func (h *Host) Serve(ctx context.Context, ch *transport.Channel) error {
	// build the chain once; panics are always contained
	chain := append([]middleware.Middleware{middleware.Recover(h.logger)}, h.middlewares...)
	handler := middleware.Chain(chain...)(h.invoke)

	stop := context.AfterFunc(ctx, func() { ch.Close() })
	defer stop()

	logger := h.logger.With(zap.Stringer("channel", ch.ID()))
	logger.Info("serving")

	for {
		req, err := ch.RecvRequest()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				logger.Info("caller went away", zap.Error(err))
				return nil
			}
			return err
		}

		resp := h.handle(ctx, handler, req)
		if !resp.Success {
			logger.Debug("call failed", zap.Int32("call", req.CallID), zap.String("op", req.Operation), zap.String("error", resp.Error))
		}

		if err := ch.SendResponse(resp); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// handle turns one request into its response. It never fails: every fault
// is reported to the caller as a failure response.
func (h *Host) handle(ctx context.Context, handler middleware.HandlerFunc, req *message.Request) *message.Response {
	op, _, ok := h.table.Lookup(req.Operation)
	if !ok {
		return message.Failure(req.CallID, "Method not found: "+req.Operation)
	}

	if len(req.Args) != len(op.Params) {
		return message.Failure(req.CallID, fmt.Sprintf("Argument count mismatch for %s: expected %d, got %d",
			op.Name, len(op.Params), len(req.Args)))
	}

	args := make([]codec.Value, len(req.Args))
	for i, block := range req.Args {
		v, err := codec.Decode(block, op.Params[i])
		if err != nil {
			return message.Failure(req.CallID, fmt.Sprintf("%s argument %d: %v", op.Name, i, err))
		}
		args[i] = v
	}

	result, err := handler(ctx, &message.Call{ID: req.CallID, Operation: op.Name, Args: args})
	if err != nil {
		return message.Failure(req.CallID, err.Error())
	}

	data, err := codec.Encode(result, op.Returns)
	if err != nil {
		return message.Failure(req.CallID, fmt.Sprintf("%s result: %v", op.Name, err))
	}
	return message.Success(req.CallID, data)
}

// invoke is the innermost handler.
func (h *Host) invoke(ctx context.Context, call *message.Call) (codec.Value, error) {
	_, inv, ok := h.table.Lookup(call.Operation)
	if !ok {
		return codec.Null(), fmt.Errorf("%w: %s", service.ErrUnknownOperation, call.Operation)
	}
	return inv(ctx, call.Args)
}
