package repository

import (
	"context"
	"time"
)

// RateLimitRepository counts requests per key inside a fixed window
type RateLimitRepository interface {
	// Hit records one request for key and returns the count in the current window.
	// The window starts with the first hit and lasts for window.
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	// Reset forgets every hit recorded for key
	Reset(ctx context.Context, key string) error
}
