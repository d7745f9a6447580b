package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/supportchat/internal/logger"
	"github.com/supportchat/internal/middleware"
	"github.com/supportchat/internal/model"
	"github.com/supportchat/internal/store"
)

// ChatHandler serves the plain request/response endpoints used for the
// initial page load and as a polling fallback beside the WebSocket channel.
type ChatHandler struct {
	store store.Store
}

func NewChatHandler(st store.Store) *ChatHandler {
	return &ChatHandler{store: st}
}

// GetChats returns the caller's chat list, most recent conversation first.
func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("chat.GetChats", time.Now())()
	userID := middleware.GetUserID(r.Context())
	if userID == 0 {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	chats, err := h.store.GetChatsByUserID(r.Context(), userID)
	if err != nil {
		logger.Errorf("get chats user=%d: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch chats")
		return
	}
	if chats == nil {
		chats = []model.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

// GetMessages returns the messages of one chat in timestamp order. A chat
// that does not exist and a chat owned by someone else are both answered
// with 403 so existence never leaks.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("chat.GetMessages", time.Now())()
	userID := middleware.GetUserID(r.Context())
	if userID == 0 {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return
	}

	chat, err := h.store.GetChatByID(r.Context(), chatID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Errorf("get chat %d: %v", chatID, err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
			return
		}
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}
	if chat.UserID != userID {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}

	msgs, err := h.store.GetMessagesByChatID(r.Context(), chatID)
	if err != nil {
		logger.Errorf("get messages chat=%d: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}
