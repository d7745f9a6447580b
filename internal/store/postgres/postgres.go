// Package postgres is the durable store backend. Rows are keyed by UUID; the
// rest of the system sees only numeric ids derived from the UUID hex (see
// store.DeriveID). The derived id is written to an indexed num_id column at
// insert so lookups never scan.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportchat/internal/logger"
	"github.com/supportchat/internal/model"
	"github.com/supportchat/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

// newID generates a native UUID and its derived numeric id.
func newID() (string, int64) {
	id := uuid.New().String()
	return id, store.DeriveID(id)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	defer logger.DeferLogDuration("store.GetUser", time.Now())()
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT num_id, username, password_hash FROM users WHERE num_id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres.GetUser: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	defer logger.DeferLogDuration("store.GetUserByUsername", time.Now())()
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT num_id, username, password_hash FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres.GetUserByUsername: %w", err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, insert model.InsertUser) (*model.User, error) {
	defer logger.DeferLogDuration("store.CreateUser", time.Now())()
	nativeID, numID := newID()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, num_id, username, password_hash) VALUES ($1, $2, $3, $4)`,
		nativeID, numID, insert.Username, insert.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.CreateUser: %w", err)
	}
	u := &model.User{ID: numID, Username: insert.Username, PasswordHash: insert.PasswordHash}

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
	return u, nil
}

func (s *Store) CreateChat(ctx context.Context, insert model.InsertChat) (*model.Chat, error) {
	defer logger.DeferLogDuration("store.CreateChat", time.Now())()
	nativeID, numID := newID()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chats (id, num_id, user_num_id, title, last_message, last_message_time, icon, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		nativeID, numID, insert.UserID, insert.Title, insert.LastMessage,
		insert.LastMessageTime, insert.Icon, insert.Active,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.CreateChat: %w", err)
	}
	return &model.Chat{
		ID:              numID,
		UserID:          insert.UserID,
		Title:           insert.Title,
		LastMessage:     insert.LastMessage,
		LastMessageTime: insert.LastMessageTime,
		Icon:            insert.Icon,
		Active:          insert.Active,
	}, nil
}

func (s *Store) GetChatByID(ctx context.Context, id int64) (*model.Chat, error) {
	defer logger.DeferLogDuration("store.GetChatByID", time.Now())()
	c := &model.Chat{}
	err := s.pool.QueryRow(ctx,
		`SELECT num_id, user_num_id, title, last_message, last_message_time, icon, active
		 FROM chats WHERE num_id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.LastMessage, &c.LastMessageTime, &c.Icon, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres.GetChatByID: %w", err)
	}
	return c, nil
}

func (s *Store) GetChatsByUserID(ctx context.Context, userID int64) ([]model.Chat, error) {
	defer logger.DeferLogDuration("store.GetChatsByUserID", time.Now())()
	rows, err := s.pool.Query(ctx,
		`SELECT num_id, user_num_id, title, last_message, last_message_time, icon, active
		 FROM chats WHERE user_num_id = $1 ORDER BY last_message_time DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.GetChatsByUserID: %w", err)
	}
	defer rows.Close()

	var chats []model.Chat
	for rows.Next() {
		var c model.Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.LastMessage,
			&c.LastMessageTime, &c.Icon, &c.Active); err != nil {
			return nil, fmt.Errorf("postgres.GetChatsByUserID scan: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres.GetChatsByUserID rows: %w", err)
	}
	return chats, nil
}

func (s *Store) UpdateChatTitle(ctx context.Context, chatID int64, title string) error {
	defer logger.DeferLogDuration("store.UpdateChatTitle", time.Now())()
	tag, err := s.pool.Exec(ctx,
		`UPDATE chats SET title = $1 WHERE num_id = $2`, title, chatID,
	)
	if err != nil {
		return fmt.Errorf("postgres.UpdateChatTitle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateChatLastMessage(ctx context.Context, chatID int64, message string) error {
	defer logger.DeferLogDuration("store.UpdateChatLastMessage", time.Now())()
	tag, err := s.pool.Exec(ctx,
		`UPDATE chats SET last_message = $1, last_message_time = now() WHERE num_id = $2`,
		message, chatID,
	)
	if err != nil {
		return fmt.Errorf("postgres.UpdateChatLastMessage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetActiveChat(ctx context.Context, userID, chatID int64) error {
	defer logger.DeferLogDuration("store.SetActiveChat", time.Now())()
	c, err := s.GetChatByID(ctx, chatID)
	if err != nil {
		return err
	}
	if c.UserID != userID {
		return store.ErrForbidden
	}
	if err := s.DeactivateOtherChats(ctx, userID, chatID); err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE chats SET active = true WHERE num_id = $1`, chatID,
	)
	if err != nil {
		return fmt.Errorf("postgres.SetActiveChat: %w", err)
	}
	return nil
}

func (s *Store) DeactivateOtherChats(ctx context.Context, userID, keepChatID int64) error {
	defer logger.DeferLogDuration("store.DeactivateOtherChats", time.Now())()
	_, err := s.pool.Exec(ctx,
		`UPDATE chats SET active = false WHERE user_num_id = $1 AND num_id <> $2`,
		userID, keepChatID,
	)
	if err != nil {
		return fmt.Errorf("postgres.DeactivateOtherChats: %w", err)
	}
	return nil
}

func (s *Store) CreateMessage(ctx context.Context, insert model.InsertMessage) (*model.Message, error) {
	defer logger.DeferLogDuration("store.CreateMessage", time.Now())()
	ts := insert.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	nativeID, numID := newID()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, num_id, chat_num_id, content, sender, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		nativeID, numID, insert.ChatID, insert.Content, string(insert.Sender), ts,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.CreateMessage: %w", err)
	}

	// Refresh only the preview text here. The send pipeline refreshes the
	// timestamp explicitly via UpdateChatLastMessage.
	if _, err := s.pool.Exec(ctx,
		`UPDATE chats SET last_message = $1 WHERE num_id = $2`, insert.Content, insert.ChatID,
	); err != nil {
		return nil, fmt.Errorf("postgres.CreateMessage update chat: %w", err)
	}

	return &model.Message{
		ID:        numID,
		ChatID:    insert.ChatID,
		Content:   insert.Content,
		Sender:    insert.Sender,
		Timestamp: ts,
	}, nil
}

func (s *Store) GetMessagesByChatID(ctx context.Context, chatID int64) ([]model.Message, error) {
	defer logger.DeferLogDuration("store.GetMessagesByChatID", time.Now())()
	rows, err := s.pool.Query(ctx,
		`SELECT num_id, chat_num_id, content, sender, created_at
		 FROM messages WHERE chat_num_id = $1 ORDER BY created_at ASC, num_id ASC`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.GetMessagesByChatID: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var sender string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Content, &sender, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres.GetMessagesByChatID scan: %w", err)
		}
		m.Sender = model.Sender(sender)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres.GetMessagesByChatID rows: %w", err)
	}
	return msgs, nil
}
