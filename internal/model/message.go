package model

import "time"

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is immutable once created. Messages are ordered by Timestamp
// ascending within their chat; the timestamp is the only sequencing guarantee.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chatId"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// InsertMessage is a Message before the store has assigned an id.
type InsertMessage struct {
	ChatID    int64
	Content   string
	Sender    Sender
	Timestamp time.Time
}
