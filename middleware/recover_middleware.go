package middleware

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pipecall/codec"
	"pipecall/message"
)

// Recover turns a panicking invoker into a failed call and logs the stack.
func Recover(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) (result codec.Value, err error) {
			defer func() {
				if x := recover(); x != nil {
					logger.Error("invoker panic",
						zap.Int32("call", call.ID),
						zap.String("op", call.Operation),
						zap.Any("panic", x),
						zap.Stack("stack"),
					)
					result, err = codec.Null(), fmt.Errorf("panic in %s: %v", call.Operation, x)
				}
			}()
			return next(ctx, call)
		}
	}
}
