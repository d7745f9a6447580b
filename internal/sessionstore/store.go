// Package sessionstore keeps the opaque session-token -> user-id mapping the
// authentication layer issues at login. Implementations: redis.Client and
// memory.Client (fallback when Redis is not configured).
package sessionstore

import (
	"context"
	"time"
)

// TTL is how long an issued session token stays valid.
const TTL = 30 * 24 * time.Hour

// Store resolves session tokens. Get returns 0 for an unknown or expired
// token, not an error.
type Store interface {
	Set(ctx context.Context, token string, userID int64) error
	Get(ctx context.Context, token string) (int64, error)
	Delete(ctx context.Context, token string) error
	Close() error
}
