package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/supportchat/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16384
	sendBufSize    = 64
)

// State is the connection lifecycle position:
// Connecting -> Authenticating -> Active -> Closed.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosed
)

// bufPool pools bytes.Buffer for JSON encoding in the hot-path (writePump).
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Client is one live WebSocket connection bound to an authenticated user.
// Lifecycle: NewClient -> Start(ctx, cancel) -> [readPump, writePump] -> Close.
type Client struct {
	engine *Engine
	conn   *websocket.Conn
	send   chan any
	userID int64
	state  atomic.Int32

	// done gates Send: events offered after close are silently dropped.
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func NewClient(engine *Engine, conn *websocket.Conn, userID int64) *Client {
	c := &Client{
		engine: engine,
		conn:   conn,
		send:   make(chan any, sendBufSize),
		userID: userID,
		done:   make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// UserID returns the authenticated user this connection belongs to.
func (c *Client) UserID() int64 { return c.userID }

// State returns the current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) { c.state.Store(int32(s)) }

// Start launches the read and write pumps. ctx controls pump lifetime;
// cancel is stored for Close.
func (c *Client) Start(ctx context.Context, cancel context.CancelFunc) {
	c.cancel = cancel
	c.wg.Add(2)
	go c.writePump(ctx)
	go c.readPump(ctx)
}

// Wait blocks until both pump goroutines have exited.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Send queues an event for delivery. Best effort: sending to a closed or
// saturated connection is a no-op, never a fault.
func (c *Client) Send(event any) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- event:
	case <-c.done:
	default:
		logger.Errorf("ws send buffer full, dropping event for user=%d", c.userID)
	}
}

// Close signals the client to stop. Safe to call multiple times from any
// goroutine.
func (c *Client) Close() {
	c.once.Do(func() {
		c.setState(StateClosed)
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)
		// Forces both pumps to unblock.
		c.conn.Close()
	})
}

// readPump reads requests from the WebSocket connection and hands them to the
// engine. Exits on read error (triggered by either side closing).
func (c *Client) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.engine.Detach(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("ws set read deadline user=%d: %v", c.userID, err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws read error user=%d: %v", c.userID, err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			logger.Errorf("ws unmarshal error user=%d: %v", c.userID, err)
			continue
		}

		c.engine.Dispatch(ctx, c, req)
	}
}

// writePump writes queued events to the WebSocket connection and keeps the
// ping/pong heartbeat alive.
func (c *Client) writePump(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil && err != websocket.ErrCloseSent {
				logger.Errorf("ws close message user=%d: %v", c.userID, err)
			}
			return
		case event := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline user=%d: %v", c.userID, err)
				return
			}
			buf := bufPool.Get().(*bytes.Buffer)
			buf.Reset()
			enc := json.NewEncoder(buf)
			if err := enc.Encode(event); err != nil {
				bufPool.Put(buf)
				logger.Errorf("ws marshal error user=%d: %v", c.userID, err)
				continue
			}
			data := buf.Bytes()
			// json.Encoder appends '\n'; trim it for WebSocket text frames.
			if len(data) > 0 && data[len(data)-1] == '\n' {
				data = data[:len(data)-1]
			}
			writeErr := c.conn.WriteMessage(websocket.TextMessage, data)
			bufPool.Put(buf)
			if writeErr != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline user=%d: %v", c.userID, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
