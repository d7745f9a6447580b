// Package memory is the in-process fallback store used when PostgreSQL is
// unreachable or unconfigured. Nothing survives a restart. Ids are
// monotonically increasing integers starting at 1.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/supportchat/internal/logger"
	"github.com/supportchat/internal/model"
	"github.com/supportchat/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	users    []model.User
	chats    []*model.Chat
	messages []model.Message

	nextUserID    int64
	nextChatID    int64
	nextMessageID int64
}

func New() *Store {
	logger.Info("using in-memory storage, data will not survive a restart")
	return &Store{nextUserID: 1, nextChatID: 1, nextMessageID: 1}
}

func (s *Store) Close() {}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.users {
		if s.users[i].ID == id {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.users {
		if s.users[i].Username == username {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateUser(ctx context.Context, insert model.InsertUser) (*model.User, error) {
	s.mu.Lock()
	u := model.User{
		ID:           s.nextUserID,
		Username:     insert.Username,
		PasswordHash: insert.PasswordHash,
	}
	s.nextUserID++
	s.users = append(s.users, u)
	s.mu.Unlock()

	// Every account starts with an active welcome chat.
	if _, err := s.CreateChat(ctx, model.InsertChat{
		UserID:          u.ID,
		Title:           model.WelcomeChatTitle,
		LastMessage:     "",
		LastMessageTime: time.Now().UTC(),
		Icon:            "robot",
		Active:          true,
	}); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateChat(ctx context.Context, insert model.InsertChat) (*model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &model.Chat{
		ID:              s.nextChatID,
		UserID:          insert.UserID,
		Title:           insert.Title,
		LastMessage:     insert.LastMessage,
		LastMessageTime: insert.LastMessageTime,
		Icon:            insert.Icon,
		Active:          insert.Active,
	}
	s.nextChatID++
	s.chats = append(s.chats, c)
	out := *c
	return &out, nil
}

func (s *Store) GetChatByID(ctx context.Context, id int64) (*model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.findChat(id)
	if c == nil {
		return nil, store.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *Store) GetChatsByUserID(ctx context.Context, userID int64) ([]model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var chats []model.Chat
	for _, c := range s.chats {
		if c.UserID == userID {
			chats = append(chats, *c)
		}
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].LastMessageTime.After(chats[j].LastMessageTime)
	})
	return chats, nil
}

func (s *Store) UpdateChatTitle(ctx context.Context, chatID int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findChat(chatID)
	if c == nil {
		return store.ErrNotFound
	}
	c.Title = title
	return nil
}

func (s *Store) UpdateChatLastMessage(ctx context.Context, chatID int64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findChat(chatID)
	if c == nil {
		return store.ErrNotFound
	}
	c.LastMessage = message
	c.LastMessageTime = time.Now().UTC()
	return nil
}

func (s *Store) SetActiveChat(ctx context.Context, userID, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findChat(chatID)
	if c == nil {
		return store.ErrNotFound
	}
	if c.UserID != userID {
		return store.ErrForbidden
	}
	for _, other := range s.chats {
		if other.UserID == userID && other.ID != chatID {
			other.Active = false
		}
	}
	c.Active = true
	return nil
}

func (s *Store) DeactivateOtherChats(ctx context.Context, userID, keepChatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chats {
		if c.UserID == userID && c.ID != keepChatID {
			c.Active = false
		}
	}
	return nil
}

func (s *Store) CreateMessage(ctx context.Context, insert model.InsertMessage) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findChat(insert.ChatID) == nil {
		return nil, store.ErrNotFound
	}
	ts := insert.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	m := model.Message{
		ID:        s.nextMessageID,
		ChatID:    insert.ChatID,
		Content:   insert.Content,
		Sender:    insert.Sender,
		Timestamp: ts,
	}
	s.nextMessageID++
	s.messages = append(s.messages, m)

	c := s.findChat(insert.ChatID)
	c.LastMessage = m.Content
	c.LastMessageTime = m.Timestamp
	return &m, nil
}

func (s *Store) GetMessagesByChatID(ctx context.Context, chatID int64) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var msgs []model.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			msgs = append(msgs, m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

// findChat must be called with the lock held.
func (s *Store) findChat(id int64) *model.Chat {
	for _, c := range s.chats {
		if c.ID == id {
			return c
		}
	}
	return nil
}
