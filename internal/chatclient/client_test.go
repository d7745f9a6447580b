package chatclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportchat/internal/model"
	"github.com/supportchat/internal/ws"
)

// fakeServer accepts WebSocket connections, records inbound requests and lets
// tests push events to the most recent connection.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	requests []ws.Request

	dials     atomic.Int32
	connected chan struct{}
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{t: t, connected: make(chan struct{}, 8)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.dials.Add(1)
		fs.mu.Lock()
		fs.conn = conn
		fs.mu.Unlock()
		fs.connected <- struct{}{}
		for {
			var req ws.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			fs.mu.Lock()
			fs.requests = append(fs.requests, req)
			fs.mu.Unlock()
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

func (fs *fakeServer) waitConnected() {
	fs.t.Helper()
	select {
	case <-fs.connected:
	case <-time.After(3 * time.Second):
		fs.t.Fatal("client never connected")
	}
}

func (fs *fakeServer) push(event any) {
	fs.t.Helper()
	fs.mu.Lock()
	conn := fs.conn
	fs.mu.Unlock()
	require.NotNil(fs.t, conn)
	data, err := json.Marshal(event)
	require.NoError(fs.t, err)
	require.NoError(fs.t, conn.WriteMessage(websocket.TextMessage, data))
}

func (fs *fakeServer) dropConnection() {
	fs.mu.Lock()
	conn := fs.conn
	fs.conn = nil
	fs.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (fs *fakeServer) recorded() []ws.Request {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]ws.Request, len(fs.requests))
	copy(out, fs.requests)
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func chatsEvent(chats ...model.Chat) any {
	return map[string]any{"type": ws.EventChats, "chats": chats}
}

func TestDefaultReconnectDelay(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 2*time.Second, ReconnectDelay)
	c := New("ws://unused", nil)
	assert.Equal(t, ReconnectDelay, c.reconnectDelay)
}

func TestAutoSelectOnChats(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)
	c := New(fs.url(), nil)
	require.NoError(t, c.Connect())
	defer c.Close()
	fs.waitConnected()

	fs.push(chatsEvent(
		model.Chat{ID: 1, Title: "Welcome", Active: false},
		model.Chat{ID: 2, Title: "Billing", Active: true},
	))

	waitFor(t, func() bool { return c.ActiveChat() != nil })
	assert.Equal(t, int64(2), c.ActiveChat().ID, "the active chat is preferred over the first")

	// Selection triggers a message fetch for that chat.
	waitFor(t, func() bool { return len(fs.recorded()) == 1 })
	req := fs.recorded()[0]
	assert.Equal(t, ws.RequestGetMessages, req.Type)
	assert.Equal(t, int64(2), req.ChatID)

	// Messages for the selected chat replace the local list.
	fs.push(map[string]any{
		"type":   ws.EventMessages,
		"chatId": int64(2),
		"messages": []model.Message{
			{ID: 10, ChatID: 2, Content: "hi", Sender: model.SenderUser},
		},
	})
	waitFor(t, func() bool { return len(c.Messages()) == 1 })
	assert.Equal(t, "hi", c.Messages()[0].Content)
}

func TestAutoSelectFallsBackToFirst(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)
	c := New(fs.url(), nil)
	require.NoError(t, c.Connect())
	defer c.Close()
	fs.waitConnected()

	fs.push(chatsEvent(
		model.Chat{ID: 7, Title: "A"},
		model.Chat{ID: 8, Title: "B"},
	))
	waitFor(t, func() bool { return c.ActiveChat() != nil })
	assert.Equal(t, int64(7), c.ActiveChat().ID)
}

func TestOptimisticEcho(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)
	c := New(fs.url(), nil)
	require.NoError(t, c.Connect())
	defer c.Close()
	fs.waitConnected()

	fs.push(chatsEvent(model.Chat{ID: 1, Title: "Welcome", Active: true}))
	waitFor(t, func() bool { return c.ActiveChat() != nil })

	c.SendMessage("I need help with my invoice")

	// The echo is visible before any server round trip.
	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.SenderUser, msgs[0].Sender)
	assert.Equal(t, "I need help with my invoice", msgs[0].Content)
	assert.True(t, c.IsTyping())
	assert.Equal(t, "I need help with my invoice", c.ActiveChat().LastMessage)

	waitFor(t, func() bool { return len(fs.recorded()) == 2 })
	req := fs.recorded()[1]
	assert.Equal(t, ws.RequestMessage, req.Type)
	assert.Equal(t, int64(1), req.ChatID)

	fs.push(map[string]any{"type": ws.EventBotResponse, "content": "Here is your invoice."})
	waitFor(t, func() bool { return len(c.Messages()) == 2 })
	assert.False(t, c.IsTyping())
	assert.Equal(t, model.SenderBot, c.Messages()[1].Sender)
	assert.Equal(t, "Here is your invoice.", c.ActiveChat().LastMessage)
}

func TestSendMessageWithoutSelection(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)
	c := New(fs.url(), nil)
	require.NoError(t, c.Connect())
	defer c.Close()
	fs.waitConnected()

	c.SendMessage("hello?")
	c.SendMessage("")
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, fs.recorded())
	assert.Empty(t, c.Messages())
}

func TestSelectChatClearsMessages(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)
	c := New(fs.url(), nil)
	require.NoError(t, c.Connect())
	defer c.Close()
	fs.waitConnected()

	fs.push(chatsEvent(
		model.Chat{ID: 1, Title: "Welcome", Active: true},
		model.Chat{ID: 2, Title: "Billing"},
	))
	waitFor(t, func() bool { return c.ActiveChat() != nil })

	c.SendMessage("stale")
	require.NotEmpty(t, c.Messages())

	c.SelectChat(2)
	assert.Empty(t, c.Messages())
	assert.Equal(t, int64(2), c.ActiveChat().ID)
	for _, chat := range c.Chats() {
		assert.Equal(t, chat.ID == 2, chat.Active)
	}

	waitFor(t, func() bool {
		reqs := fs.recorded()
		return len(reqs) > 0 && reqs[len(reqs)-1].Type == ws.RequestSelectChat
	})
}

func TestSelectUnknownChatIsIgnored(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)
	c := New(fs.url(), nil)
	require.NoError(t, c.Connect())
	defer c.Close()
	fs.waitConnected()

	fs.push(chatsEvent(model.Chat{ID: 1, Title: "Welcome", Active: true}))
	waitFor(t, func() bool { return c.ActiveChat() != nil })

	c.SelectChat(99)
	assert.Equal(t, int64(1), c.ActiveChat().ID)
}

func TestErrorEventReachesObserver(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)
	c := New(fs.url(), nil)

	var mu sync.Mutex
	var seen []string
	c.OnError = func(msg string) {
		mu.Lock()
		seen = append(seen, msg)
		mu.Unlock()
	}

	require.NoError(t, c.Connect())
	defer c.Close()
	fs.waitConnected()

	fs.push(map[string]any{"type": ws.EventError, "message": "Chat not found or access denied"})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	})
	mu.Lock()
	assert.Equal(t, "Chat not found or access denied", seen[0])
	mu.Unlock()
}

func TestReconnectAfterDrop(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)
	c := New(fs.url(), nil)
	c.SetReconnectDelay(30 * time.Millisecond)
	require.NoError(t, c.Connect())
	defer c.Close()
	fs.waitConnected()

	fs.dropConnection()
	fs.waitConnected()
	assert.Equal(t, int32(2), fs.dials.Load())

	// The recovered connection accepts requests again.
	c.RefreshChats()
	waitFor(t, func() bool {
		reqs := fs.recorded()
		return len(reqs) > 0 && reqs[len(reqs)-1].Type == ws.RequestGetChats
	})
}

func TestCloseStopsReconnecting(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)
	c := New(fs.url(), nil)
	c.SetReconnectDelay(20 * time.Millisecond)
	require.NoError(t, c.Connect())
	fs.waitConnected()

	c.Close()
	fs.dropConnection()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), fs.dials.Load())
}

func TestConnectFailureSchedulesRetry(t *testing.T) {
	t.Parallel()
	fs := newFakeServer(t)
	fs.srv.Close() // refuse the first dial

	c := New(fs.url(), nil)
	c.SetReconnectDelay(20 * time.Millisecond)
	defer c.Close()
	assert.Error(t, c.Connect())

	// The retry timer is armed; closing cancels it without a dial storm.
	time.Sleep(10 * time.Millisecond)
	c.Close()
}
