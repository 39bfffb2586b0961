package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pipecall/codec"
	"pipecall/message"
)

// Logging logs every call with its duration; failed calls at warn level.
func Logging(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) (codec.Value, error) {
			start := time.Now()
			result, err := next(ctx, call)
			fields := []zap.Field{
				zap.Int32("call", call.ID),
				zap.String("op", call.Operation),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("call failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("call served", fields...)
			}
			return result, err
		}
	}
}
