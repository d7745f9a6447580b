// Package chatclient is the client half of the chat protocol: it opens the
// WebSocket, reconciles local view state from server events, and reconnects
// with a fixed delay when the transport drops. It mirrors what the browser
// client does, and is what the end-to-end tests drive.
package chatclient

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/supportchat/internal/logger"
	"github.com/supportchat/internal/model"
	"github.com/supportchat/internal/ws"
)

// ReconnectDelay is the fixed wait before each reconnect attempt. Retries are
// unbounded with no backoff growth: the service is expected to be
// always-available infrastructure.
const ReconnectDelay = 2 * time.Second

// serverEvent is the union decode shape for every outbound envelope.
type serverEvent struct {
	Type     string          `json:"type"`
	Chats    []model.Chat    `json:"chats"`
	ChatID   int64           `json:"chatId"`
	Messages []model.Message `json:"messages"`
	Content  string          `json:"content"`
	IsTyping bool            `json:"isTyping"`
	Message  string          `json:"message"`
}

// Controller owns the transport handle and the local view state: the chat
// list, the message list of the selected chat and the typing flag. All state
// transitions happen on the read loop or under the mutex; getters return
// snapshots.
type Controller struct {
	url            string
	header         http.Header
	dialer         *websocket.Dialer
	reconnectDelay time.Duration

	mu        sync.Mutex
	wmu       sync.Mutex // serializes writes; gorilla allows one writer
	conn      *websocket.Conn
	chats     []model.Chat
	messages  []model.Message
	active    *model.Chat
	typing    bool
	closed    bool
	reconnect *time.Timer

	// OnError, if set, observes server error events (e.g. for a toast).
	OnError func(message string)
}

// New prepares a controller for the given ws:// or wss:// URL. The header
// carries the session cookie.
func New(url string, header http.Header) *Controller {
	return &Controller{
		url:            url,
		header:         header,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: ReconnectDelay,
	}
}

// SetReconnectDelay overrides the fixed reconnect delay (tests).
func (c *Controller) SetReconnectDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.reconnectDelay = d
	}
}

// Connect dials the server and starts the read loop. On success any pending
// reconnect timer is cancelled; on failure the next attempt is scheduled.
func (c *Controller) Connect() error {
	conn, _, err := c.dialer.Dial(c.url, c.header)
	if err != nil {
		logger.Errorf("chatclient dial %s: %v", c.url, err)
		c.scheduleReconnect()
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// Close stops the controller for good: no further reconnects.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *Controller) readLoop(conn *websocket.Conn) {
	for {
		var ev serverEvent
		if err := conn.ReadJSON(&ev); err != nil {
			conn.Close()
			c.scheduleReconnect()
			return
		}
		c.handle(ev)
	}
}

// scheduleReconnect arms exactly one timer for the fixed delay.
func (c *Controller) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.reconnect != nil {
		return
	}
	c.reconnect = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnect = nil
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			_ = c.Connect()
		}
	})
}

func (c *Controller) handle(ev serverEvent) {
	switch ev.Type {
	case ws.EventBotResponse:
		c.mu.Lock()
		c.typing = false
		msg := model.Message{
			Content:   ev.Content,
			Sender:    model.SenderBot,
			Timestamp: time.Now(),
		}
		c.messages = append(c.messages, msg)
		c.updatePreviewLocked(msg)
		c.mu.Unlock()
	case ws.EventTyping:
		c.mu.Lock()
		c.typing = ev.IsTyping
		c.mu.Unlock()
	case ws.EventChats:
		c.mu.Lock()
		c.chats = ev.Chats
		var selectID int64
		if c.active == nil && len(ev.Chats) > 0 {
			pick := ev.Chats[0]
			for _, chat := range ev.Chats {
				if chat.Active {
					pick = chat
					break
				}
			}
			c.active = &pick
			selectID = pick.ID
		} else if c.active != nil {
			// Refresh the selected chat's fields (e.g. a generated title).
			for _, chat := range ev.Chats {
				if chat.ID == c.active.ID {
					upd := chat
					c.active = &upd
					break
				}
			}
		}
		c.mu.Unlock()
		if selectID != 0 {
			c.request(ws.Request{Type: ws.RequestGetMessages, ChatID: selectID})
		}
	case ws.EventMessages:
		c.mu.Lock()
		if c.active != nil && c.active.ID == ev.ChatID {
			c.messages = ev.Messages
		}
		c.mu.Unlock()
	case ws.EventError:
		logger.Errorf("chatclient server error: %s", ev.Message)
		if c.OnError != nil {
			c.OnError(ev.Message)
		}
	}
}

// SendMessage appends a local echo and preview immediately (optimistic UI)
// and sends the message to the server. The echo is never reconciled with the
// server-persisted copy.
func (c *Controller) SendMessage(content string) {
	if content == "" {
		return
	}
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return
	}
	chatID := c.active.ID
	msg := model.Message{
		ChatID:    chatID,
		Content:   content,
		Sender:    model.SenderUser,
		Timestamp: time.Now(),
	}
	c.messages = append(c.messages, msg)
	c.updatePreviewLocked(msg)
	c.typing = true
	c.mu.Unlock()

	c.request(ws.Request{Type: ws.RequestMessage, ChatID: chatID, Content: content})
}

// CreateChat asks the server for a fresh conversation; the refreshed chat
// list arrives as a chats event.
func (c *Controller) CreateChat() {
	c.request(ws.Request{Type: ws.RequestCreateChat})
}

// SelectChat switches the view to chatID: the local message list is cleared
// immediately and the authoritative list requested from the server.
func (c *Controller) SelectChat(chatID int64) {
	c.mu.Lock()
	var found *model.Chat
	for i := range c.chats {
		c.chats[i].Active = c.chats[i].ID == chatID
		if c.chats[i].ID == chatID {
			sel := c.chats[i]
			found = &sel
		}
	}
	if found == nil {
		c.mu.Unlock()
		return
	}
	c.active = found
	c.messages = nil
	c.mu.Unlock()

	c.request(ws.Request{Type: ws.RequestSelectChat, ChatID: chatID})
}

// RefreshChats asks the server to resend the chat list.
func (c *Controller) RefreshChats() {
	c.request(ws.Request{Type: ws.RequestGetChats})
}

func (c *Controller) request(req ws.Request) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		logger.Error("chatclient not connected, dropping request")
		return
	}
	c.wmu.Lock()
	err := conn.WriteJSON(req)
	c.wmu.Unlock()
	if err != nil {
		logger.Errorf("chatclient write: %v", err)
	}
}

// updatePreviewLocked tags the selected chat's sidebar preview cache.
func (c *Controller) updatePreviewLocked(msg model.Message) {
	if c.active == nil {
		return
	}
	for i := range c.chats {
		if c.chats[i].ID == c.active.ID {
			c.chats[i].LastMessage = msg.Content
			c.chats[i].LastMessageTime = msg.Timestamp
		}
	}
	c.active.LastMessage = msg.Content
	c.active.LastMessageTime = msg.Timestamp
}

// Chats returns a snapshot of the chat list.
func (c *Controller) Chats() []model.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Chat, len(c.chats))
	copy(out, c.chats)
	return out
}

// Messages returns a snapshot of the selected chat's messages.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// ActiveChat returns a copy of the selected chat, or nil.
func (c *Controller) ActiveChat() *model.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	out := *c.active
	return &out
}

// IsTyping reports whether a bot reply is being composed.
func (c *Controller) IsTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}
