// Package store defines the persistence gateway shared by the protocol engine
// and the HTTP handlers. Two implementations exist: postgres (durable) and
// memory (process-lifetime fallback). The backend is chosen once at startup.
package store

import (
	"context"
	"errors"

	"github.com/supportchat/internal/model"
)

// ErrNotFound is returned when a referenced user, chat or message does not
// exist. A lookup miss is not a storage failure; callers distinguish the two.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when a chat exists but belongs to another user.
// The protocol layer folds it into the same client-visible error as
// ErrNotFound so chat existence never leaks across accounts.
var ErrForbidden = errors.New("forbidden")

// Store is the uniform persistence contract. Implementations must be safe for
// concurrent use from multiple connections. Callers must not assume atomicity
// across calls: "deactivate others then activate" is two logical steps, and a
// crash in between leaves zero active chats, which readers treat as "no chat
// selected", never as an error.
type Store interface {
	// GetUser and GetUserByUsername return ErrNotFound on a miss.
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// CreateUser also creates the user's initial "Welcome" chat, marked
	// active. Every user has at least one chat at all times.
	CreateUser(ctx context.Context, insert model.InsertUser) (*model.User, error)

	CreateChat(ctx context.Context, insert model.InsertChat) (*model.Chat, error)
	GetChatByID(ctx context.Context, id int64) (*model.Chat, error)
	// GetChatsByUserID returns chats sorted by LastMessageTime descending.
	GetChatsByUserID(ctx context.Context, userID int64) ([]model.Chat, error)
	UpdateChatTitle(ctx context.Context, chatID int64, title string) error
	// UpdateChatLastMessage refreshes both the cached text and LastMessageTime.
	UpdateChatLastMessage(ctx context.Context, chatID int64, message string) error
	// SetActiveChat deactivates the user's other chats then activates the
	// target. Returns ErrNotFound if the chat does not exist and ErrForbidden
	// if it belongs to another user.
	SetActiveChat(ctx context.Context, userID, chatID int64) error
	DeactivateOtherChats(ctx context.Context, userID, keepChatID int64) error

	// CreateMessage also refreshes the parent chat's LastMessage cache.
	// Messages are deleted only by cascade with their chat.
	CreateMessage(ctx context.Context, insert model.InsertMessage) (*model.Message, error)
	// GetMessagesByChatID returns messages sorted by timestamp ascending.
	GetMessagesByChatID(ctx context.Context, chatID int64) ([]model.Message, error)

	Close()
}
