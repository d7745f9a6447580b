package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/supportchat/internal/logger"
	"github.com/supportchat/internal/middleware"
	"github.com/supportchat/internal/sessionstore"
	"github.com/supportchat/internal/ws"
)

// WSHandler upgrades /ws requests and hands authenticated connections to the
// protocol engine. Identity is resolved from the request's session context;
// without one the socket is closed with 1008 before any event is sent.
type WSHandler struct {
	engine         *ws.Engine
	sessions       sessionstore.Store
	allowedOrigins string
}

func NewWSHandler(engine *ws.Engine, sessions sessionstore.Store, allowedOrigins string) *WSHandler {
	return &WSHandler{engine: engine, sessions: sessions, allowedOrigins: strings.TrimSpace(allowedOrigins)}
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if h.allowedOrigins == "*" || h.allowedOrigins == "" {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, o := range strings.Split(h.allowedOrigins, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	userID := middleware.GetUserID(r.Context())
	if userID == 0 {
		userID = middleware.ResolveUserID(r, h.sessions)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return h.checkOrigin(r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("ws upgrade: %v", err)
		return
	}

	if userID == 0 {
		// 1008: the handshake carried no resolvable identity.
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Authentication required")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			logger.Errorf("ws auth close: %v", err)
		}
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := ws.NewClient(h.engine, conn, userID)
	client.Start(ctx, cancel)
	h.engine.Attach(ctx, client)
}
