package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportchat/internal/model"
	"github.com/supportchat/internal/store"
)

func newUser(t *testing.T, s *Store, username string) *model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.InsertUser{
		Username:     username,
		PasswordHash: "x",
	})
	require.NoError(t, err)
	return u
}

func TestCreateUser_WelcomeChat(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	u := newUser(t, s, "alice")
	assert.Equal(t, int64(1), u.ID)

	chats, err := s.GetChatsByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, model.WelcomeChatTitle, chats[0].Title)
	assert.True(t, chats[0].Active)
	assert.Equal(t, "", chats[0].LastMessage)
}

func TestUsers(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	u := newUser(t, s, "alice")

	t.Run("get by id", func(t *testing.T) {
		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
	})

	t.Run("get by username", func(t *testing.T) {
		got, err := s.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
	})

	t.Run("miss is ErrNotFound", func(t *testing.T) {
		_, err := s.GetUser(ctx, 999)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.GetUserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ids increase from one", func(t *testing.T) {
		u2 := newUser(t, s, "bob")
		assert.Equal(t, u.ID+1, u2.ID)
	})
}

func TestActiveChatInvariant(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	u := newUser(t, s, "alice")

	mkChat := func() *model.Chat {
		c, err := s.CreateChat(ctx, model.InsertChat{
			UserID:          u.ID,
			Title:           model.DefaultChatTitle,
			LastMessageTime: time.Now().UTC(),
			Icon:            "comment",
			Active:          true,
		})
		require.NoError(t, err)
		require.NoError(t, s.DeactivateOtherChats(ctx, u.ID, c.ID))
		return c
	}

	c1 := mkChat()
	c2 := mkChat()
	require.NoError(t, s.SetActiveChat(ctx, u.ID, c1.ID))
	require.NoError(t, s.SetActiveChat(ctx, u.ID, c2.ID))

	// After any sequence of createChat/selectChat, at most one chat is active.
	chats, err := s.GetChatsByUserID(ctx, u.ID)
	require.NoError(t, err)
	active := 0
	for _, c := range chats {
		if c.Active {
			active++
			assert.Equal(t, c2.ID, c.ID)
		}
	}
	assert.Equal(t, 1, active)
}

func TestSetActiveChat_Ownership(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	alice := newUser(t, s, "alice")
	bob := newUser(t, s, "bob")

	aliceChats, err := s.GetChatsByUserID(ctx, alice.ID)
	require.NoError(t, err)

	err = s.SetActiveChat(ctx, bob.ID, aliceChats[0].ID)
	assert.ErrorIs(t, err, store.ErrForbidden)

	err = s.SetActiveChat(ctx, bob.ID, 12345)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Alice's chat is untouched.
	got, err := s.GetChatByID(ctx, aliceChats[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestMessages(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	u := newUser(t, s, "alice")
	chats, err := s.GetChatsByUserID(ctx, u.ID)
	require.NoError(t, err)
	chat := chats[0]

	base := time.Now().UTC()
	// Insert out of order; reads must come back sorted by timestamp.
	for _, d := range []time.Duration{2 * time.Second, 0, time.Second} {
		_, err := s.CreateMessage(ctx, model.InsertMessage{
			ChatID:    chat.ID,
			Content:   d.String(),
			Sender:    model.SenderUser,
			Timestamp: base.Add(d),
		})
		require.NoError(t, err)
	}

	msgs, err := s.GetMessagesByChatID(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp),
			"messages must be in non-decreasing timestamp order")
	}

	t.Run("create refreshes chat preview", func(t *testing.T) {
		got, err := s.GetChatByID(ctx, chat.ID)
		require.NoError(t, err)
		assert.Equal(t, (2 * time.Second).String(), got.LastMessage)
	})

	t.Run("unknown chat", func(t *testing.T) {
		_, err := s.CreateMessage(ctx, model.InsertMessage{ChatID: 999, Content: "x", Sender: model.SenderUser})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestChatOrdering(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	u := newUser(t, s, "alice")

	c2, err := s.CreateChat(ctx, model.InsertChat{
		UserID:          u.ID,
		Title:           "second",
		LastMessageTime: time.Now().UTC().Add(time.Hour),
		Icon:            "comment",
	})
	require.NoError(t, err)

	chats, err := s.GetChatsByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	// Most recent conversation first.
	assert.Equal(t, c2.ID, chats[0].ID)

	// UpdateChatLastMessage bumps the timestamp, reordering the sidebar.
	welcome := chats[1]
	require.NoError(t, s.UpdateChatLastMessage(ctx, welcome.ID, "hi"))
	time.Sleep(2 * time.Millisecond)
	chats, err = s.GetChatsByUserID(ctx, u.ID)
	require.NoError(t, err)
	// c2's LastMessageTime is an hour ahead, so it still leads; but welcome's
	// cache was refreshed.
	assert.Equal(t, "hi", chats[1].LastMessage)
}

func TestUpdateChatTitle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	u := newUser(t, s, "alice")
	chats, _ := s.GetChatsByUserID(ctx, u.ID)

	require.NoError(t, s.UpdateChatTitle(ctx, chats[0].ID, "Password Reset"))
	got, err := s.GetChatByID(ctx, chats[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Password Reset", got.Title)

	assert.ErrorIs(t, s.UpdateChatTitle(ctx, 999, "x"), store.ErrNotFound)
}
