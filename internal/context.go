package internal

import (
	"context"
	"time"
)

const defaultCallTimeout = 5 * time.Second

// WithTimeout bounds an outbound call. Non-positive durations fall back to
// five seconds.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if duration <= 0 {
		duration = defaultCallTimeout
	}
	return context.WithTimeout(ctx, duration)
}
