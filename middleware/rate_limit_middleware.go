package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"pipecall/codec"
	"pipecall/message"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimit rejects calls beyond a token bucket of r calls per second with
// the given burst. Rejected calls never reach the invoker.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) (codec.Value, error) {
			if !limiter.Allow() {
				return codec.Null(), ErrRateLimited
			}
			return next(ctx, call)
		}
	}
}
