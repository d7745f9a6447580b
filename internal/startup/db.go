// Package startup contains connect helpers used once at process start. The
// backend chosen here is immutable for the process lifetime.
package startup

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportchat/internal/logger"
)

// TryConnectDB attempts to reach PostgreSQL for up to maxWait, retrying with
// backoff. Unlike a hard dependency it returns nil when the database stays
// unreachable: the caller falls back to in-memory storage and the process
// keeps serving.
func TryConnectDB(poolCfg *pgxpool.Config, maxWait time.Duration) *pgxpool.Pool {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		cancel()
		if err == nil {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = pool.Ping(pingCtx)
			pingCancel()
			if err == nil {
				return pool
			}
			pool.Close()
		}
		if time.Now().After(deadline) {
			logger.Errorf("db unreachable after %v, falling back to in-memory storage: %v", maxWait, err)
			return nil
		}
		logger.Errorf("db connect failed, retry in %v: %v", backoff, err)
		time.Sleep(backoff)
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
