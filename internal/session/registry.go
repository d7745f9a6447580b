// Package session tracks the single live WebSocket connection of each
// authenticated user. The registry exists so any part of the system can
// target a specific user's connection; the protocol engine currently pushes
// only to the connection that originated a request.
package session

import "sync"

// Conn is the minimal handle the registry holds. Sends to a closed handle
// must be a no-op; Close must be safe to call more than once.
type Conn interface {
	Send(event any)
	Close()
}

// Registry maps an authenticated user id to that user's live connection.
// Last connection wins: registering over an existing entry displaces it.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]Conn)}
}

// Register binds conn to userID and returns the displaced connection, if any,
// so the caller can close it. At most one entry per user exists afterwards.
func (r *Registry) Register(userID int64, conn Conn) (displaced Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.conns[userID]
	r.conns[userID] = conn
	if prev == conn {
		return nil
	}
	return prev
}

// Unregister removes the entry for userID only if it still points at conn.
// A reconnect that already replaced the entry is not evicted by the old
// connection's teardown.
func (r *Registry) Unregister(userID int64, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[userID] == conn {
		delete(r.conns, userID)
	}
}

// Get returns the live connection for userID, or nil.
func (r *Registry) Get(userID int64) Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[userID]
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
