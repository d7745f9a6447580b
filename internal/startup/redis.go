package startup

import (
	"context"
	"time"

	"github.com/supportchat/internal/logger"
	"github.com/supportchat/internal/sessionstore"
	sessionmemory "github.com/supportchat/internal/sessionstore/memory"
	sessionredis "github.com/supportchat/internal/sessionstore/redis"
)

// ConnectSessionStore returns the Redis-backed session store when url is set
// and reachable, otherwise the in-memory fallback (sessions then do not
// survive a restart).
func ConnectSessionStore(url string) sessionstore.Store {
	if url == "" {
		logger.Info("no REDIS_URL, using in-memory session store")
		return sessionmemory.New()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := sessionredis.New(ctx, url)
	if err != nil {
		logger.Errorf("redis unavailable, using in-memory session store: %v", err)
		return sessionmemory.New()
	}
	logger.Info("session store: redis")
	return client
}
