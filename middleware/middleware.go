// Package middleware wraps the host's invokers.
//
// Chain(A, B, C)(handler) yields A(B(C(handler))): A runs first on the way in
// and last on the way out.
package middleware

import (
	"context"

	"pipecall/codec"
	"pipecall/message"
)

// HandlerFunc handles one decoded call. A non-nil error becomes the failure
// response text.
type HandlerFunc func(ctx context.Context, call *message.Call) (codec.Value, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
