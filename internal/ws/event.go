package ws

import "github.com/supportchat/internal/model"

// Request is the inbound envelope. Unknown types are logged and ignored.
type Request struct {
	Type    string `json:"type"`
	ChatID  int64  `json:"chatId,omitempty"`
	Content string `json:"content,omitempty"`
}

// Inbound request tags.
const (
	RequestMessage     = "message"
	RequestGetChats    = "getChats"
	RequestGetMessages = "getMessages"
	RequestCreateChat  = "createChat"
	RequestSelectChat  = "selectChat"
)

// Outbound event tags.
const (
	EventChats       = "chats"
	EventMessages    = "messages"
	EventBotResponse = "botResponse"
	EventTyping      = "typing"
	EventError       = "error"
)

// Outbound events are flat envelopes: {"type": ..., fields...}.

type ChatsEvent struct {
	Type  string       `json:"type"`
	Chats []model.Chat `json:"chats"`
}

type MessagesEvent struct {
	Type     string          `json:"type"`
	ChatID   int64           `json:"chatId"`
	Messages []model.Message `json:"messages"`
}

type BotResponseEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type TypingEvent struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"isTyping"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newChatsEvent(chats []model.Chat) ChatsEvent {
	if chats == nil {
		chats = []model.Chat{}
	}
	return ChatsEvent{Type: EventChats, Chats: chats}
}

func newMessagesEvent(chatID int64, msgs []model.Message) MessagesEvent {
	if msgs == nil {
		msgs = []model.Message{}
	}
	return MessagesEvent{Type: EventMessages, ChatID: chatID, Messages: msgs}
}

func newTypingEvent(isTyping bool) TypingEvent {
	return TypingEvent{Type: EventTyping, IsTyping: isTyping}
}

func newErrorEvent(msg string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: msg}
}
