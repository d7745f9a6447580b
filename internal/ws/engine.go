// Package ws implements the real-time chat protocol: the per-connection
// lifecycle, inbound request dispatch and the message send pipeline.
package ws

import (
	"context"
	"math/rand"
	"time"

	"github.com/supportchat/internal/ai"
	"github.com/supportchat/internal/logger"
	"github.com/supportchat/internal/model"
	"github.com/supportchat/internal/session"
	"github.com/supportchat/internal/store"
)

// errAccessDenied deliberately conflates "does not exist" and "not yours" so
// chat existence never leaks across users.
const errAccessDenied = "Chat not found or access denied"
const errSendFailed = "Failed to process your message"

// Completer produces assistant replies and chat titles. Implementations
// degrade to fallback strings instead of returning errors.
type Completer interface {
	GenerateReply(ctx context.Context, userText string, history []ai.Turn) string
	GenerateTitle(ctx context.Context, firstUserText string) string
}

// Engine routes inbound requests from live connections against the store and
// the completion service. One engine serves all connections.
type Engine struct {
	store    store.Store
	ai       Completer
	registry *session.Registry

	// Artificial delay before each bot reply, a deliberate UX choice to make
	// responses feel composed rather than instantaneous.
	replyDelayMin time.Duration
	replyDelayMax time.Duration
}

func NewEngine(st store.Store, completer Completer, registry *session.Registry) *Engine {
	return &Engine{
		store:         st,
		ai:            completer,
		registry:      registry,
		replyDelayMin: time.Second,
		replyDelayMax: 2 * time.Second,
	}
}

// SetReplyDelay overrides the simulated typing delay range.
func (e *Engine) SetReplyDelay(min, max time.Duration) {
	if min < 0 || max < min {
		return
	}
	e.replyDelayMin, e.replyDelayMax = min, max
}

// Attach registers an authenticated connection and pushes the initial chat
// list. A prior connection of the same user is displaced and closed
// (last-connection-wins, no multi-device fan-out).
func (e *Engine) Attach(ctx context.Context, c *Client) {
	if displaced := e.registry.Register(c.userID, c); displaced != nil {
		displaced.Close()
	}
	c.setState(StateActive)
	logger.Infof("ws connected user=%d", c.userID)
	e.pushChats(ctx, c)
}

// Detach removes the connection from the registry. A reconnect that already
// replaced the entry is left alone.
func (e *Engine) Detach(c *Client) {
	e.registry.Unregister(c.userID, c)
	c.setState(StateClosed)
	logger.Infof("ws disconnected user=%d", c.userID)
}

// Dispatch handles one inbound request on an active connection. The send
// pipeline runs in its own goroutine so the artificial reply delay does not
// stall the connection's other requests.
func (e *Engine) Dispatch(ctx context.Context, c *Client, req Request) {
	switch req.Type {
	case RequestGetChats:
		e.pushChats(ctx, c)
	case RequestGetMessages:
		if _, ok := e.authorizeChat(ctx, c, req.ChatID); !ok {
			return
		}
		e.pushMessages(ctx, c, req.ChatID)
	case RequestCreateChat:
		e.handleCreateChat(ctx, c)
	case RequestSelectChat:
		e.handleSelectChat(ctx, c, req.ChatID)
	case RequestMessage:
		if req.Content == "" {
			c.Send(newErrorEvent(errSendFailed))
			return
		}
		go e.runSendPipeline(c, req.ChatID, req.Content)
	default:
		logger.Infof("ws unknown request type %q user=%d", req.Type, c.userID)
	}
}

// pushChats sends the user's chat list. Read failures fail open to an empty
// list rather than surfacing an error.
func (e *Engine) pushChats(ctx context.Context, c *Client) {
	chats, err := e.store.GetChatsByUserID(ctx, c.userID)
	if err != nil {
		logger.Errorf("ws get chats user=%d: %v", c.userID, err)
		chats = nil
	}
	c.Send(newChatsEvent(chats))
}

func (e *Engine) pushMessages(ctx context.Context, c *Client, chatID int64) {
	msgs, err := e.store.GetMessagesByChatID(ctx, chatID)
	if err != nil {
		logger.Errorf("ws get messages chat=%d user=%d: %v", chatID, c.userID, err)
		msgs = nil
	}
	c.Send(newMessagesEvent(chatID, msgs))
}

func (e *Engine) handleCreateChat(ctx context.Context, c *Client) {
	chat, err := e.store.CreateChat(ctx, model.InsertChat{
		UserID:          c.userID,
		Title:           model.DefaultChatTitle,
		LastMessage:     "",
		LastMessageTime: time.Now().UTC(),
		Icon:            "comment",
		Active:          true,
	})
	if err != nil {
		logger.Errorf("ws create chat user=%d: %v", c.userID, err)
		c.Send(newErrorEvent("Failed to create chat"))
		return
	}
	if err := e.store.DeactivateOtherChats(ctx, c.userID, chat.ID); err != nil {
		logger.Errorf("ws deactivate chats user=%d: %v", c.userID, err)
	}
	e.pushChats(ctx, c)
}

func (e *Engine) handleSelectChat(ctx context.Context, c *Client, chatID int64) {
	if err := e.store.SetActiveChat(ctx, c.userID, chatID); err != nil {
		logger.Errorf("ws select chat chat=%d user=%d: %v", chatID, c.userID, err)
		c.Send(newErrorEvent(errAccessDenied))
		return
	}
	e.pushMessages(ctx, c, chatID)
}

// authorizeChat loads the chat and verifies it belongs to the requesting
// user. Missing and foreign chats produce the identical error event.
func (e *Engine) authorizeChat(ctx context.Context, c *Client, chatID int64) (*model.Chat, bool) {
	chat, err := e.store.GetChatByID(ctx, chatID)
	if err != nil || chat.UserID != c.userID {
		if err != nil && err != store.ErrNotFound {
			logger.Errorf("ws get chat chat=%d user=%d: %v", chatID, c.userID, err)
		}
		c.Send(newErrorEvent(errAccessDenied))
		return nil, false
	}
	return chat, true
}

// runSendPipeline is the full handling of one user message: persist it,
// generate a title on the chat's first message, request a completion, delay,
// persist and push the reply. Runs detached from the connection context:
// closing the transport never aborts steps already started; events offered to
// a closed handle are simply dropped.
func (e *Engine) runSendPipeline(c *Client, chatID int64, content string) {
	defer logger.DeferLogDuration("ws.sendPipeline", time.Now())()
	ctx := context.Background()

	chat, ok := e.authorizeChat(ctx, c, chatID)
	if !ok {
		return
	}
	// "No message yet" is tracked via the empty preview cache.
	firstMessage := chat.LastMessage == ""

	if _, err := e.store.CreateMessage(ctx, model.InsertMessage{
		ChatID:  chat.ID,
		Content: content,
		Sender:  model.SenderUser,
	}); err != nil {
		logger.Errorf("ws save message chat=%d user=%d: %v", chat.ID, c.userID, err)
		c.Send(newErrorEvent(errSendFailed))
		return
	}

	if firstMessage {
		// Title generation degrades to the placeholder on failure; it never
		// aborts the pipeline. The refreshed chat list goes out before any
		// bot response for this same message.
		title := e.ai.GenerateTitle(ctx, content)
		if err := e.store.UpdateChatTitle(ctx, chat.ID, title); err != nil {
			logger.Errorf("ws update title chat=%d: %v", chat.ID, err)
		}
		e.pushChats(ctx, c)
	}

	if err := e.store.UpdateChatLastMessage(ctx, chat.ID, content); err != nil {
		logger.Errorf("ws update last message chat=%d: %v", chat.ID, err)
		c.Send(newErrorEvent(errSendFailed))
		return
	}

	history, err := e.store.GetMessagesByChatID(ctx, chat.ID)
	if err != nil {
		logger.Errorf("ws load history chat=%d: %v", chat.ID, err)
		c.Send(newErrorEvent(errSendFailed))
		return
	}
	// The just-persisted user message is passed separately as the new turn.
	if n := len(history); n > 0 && history[n-1].Sender == model.SenderUser {
		history = history[:n-1]
	}

	c.Send(newTypingEvent(true))

	reply := e.ai.GenerateReply(ctx, content, ai.HistoryFromMessages(history))

	e.sleepReplyDelay()

	if _, err := e.store.CreateMessage(ctx, model.InsertMessage{
		ChatID:  chat.ID,
		Content: reply,
		Sender:  model.SenderBot,
	}); err != nil {
		logger.Errorf("ws save bot message chat=%d: %v", chat.ID, err)
		c.Send(newErrorEvent(errSendFailed))
		return
	}
	if err := e.store.UpdateChatLastMessage(ctx, chat.ID, reply); err != nil {
		logger.Errorf("ws update last message chat=%d: %v", chat.ID, err)
		c.Send(newErrorEvent(errSendFailed))
		return
	}

	c.Send(BotResponseEvent{Type: EventBotResponse, Content: reply})
	c.Send(newTypingEvent(false))
}

func (e *Engine) sleepReplyDelay() {
	d := e.replyDelayMin
	if span := e.replyDelayMax - e.replyDelayMin; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	time.Sleep(d)
}
