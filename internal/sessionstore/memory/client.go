package memory

import (
	"context"
	"sync"
	"time"

	"github.com/supportchat/internal/sessionstore"
)

type item struct {
	userID int64
	exp    time.Time
}

// Client is the in-process session store used when Redis is not configured.
type Client struct {
	mu       sync.RWMutex
	sessions map[string]item
}

func New() *Client {
	return &Client{sessions: make(map[string]item)}
}

func (c *Client) Close() error { return nil }

func (c *Client) Set(ctx context.Context, token string, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[token] = item{userID: userID, exp: time.Now().Add(sessionstore.TTL)}
	return nil
}

func (c *Client) Get(ctx context.Context, token string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sessions[token]
	if !ok || time.Now().After(v.exp) {
		return 0, nil
	}
	return v.userID, nil
}

func (c *Client) Delete(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, token)
	return nil
}
