package model

import "time"

// Chat is one conversation thread between a user and the assistant.
// LastMessage/LastMessageTime are denormalized caches refreshed on every
// message append, used for sidebar previews without loading history.
// At most one chat per user carries Active=true (best effort, enforced by
// explicit deactivation on activation, not by a constraint).
type Chat struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"userId"`
	Title           string    `json:"title"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	Icon            string    `json:"icon"`
	Active          bool      `json:"active"`
}

// InsertChat is a Chat before the store has assigned an id.
type InsertChat struct {
	UserID          int64
	Title           string
	LastMessage     string
	LastMessageTime time.Time
	Icon            string
	Active          bool
}

const (
	// WelcomeChatTitle is the title of the chat created with every new account.
	WelcomeChatTitle = "Welcome"
	// DefaultChatTitle is the placeholder until the first message produces a
	// generated title.
	DefaultChatTitle = "New Conversation"
)
