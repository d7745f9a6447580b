// Package ai wraps the OpenAI-compatible completion provider used for reply
// and title generation. Provider failures never cross this boundary: callers
// always receive a usable string, with distinct canned text for the
// not-configured, rate-limited and generic failure cases.
package ai

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/supportchat/internal/logger"
	"github.com/supportchat/internal/model"
)

const systemPrompt = "You are an AI-powered customer support assistant for a SaaS platform. " +
	"You help users with billing issues, account setup, and feature requests. " +
	"Be friendly, helpful, and concise. If you don't know the answer, don't make up information - " +
	"instead, suggest that the user might want to contact a human agent for more assistance."

const titleSystemPrompt = "You are an assistant that generates short, concise chat titles " +
	"based on the user's first message. The title should be 2-4 words maximum and capture " +
	"the essence of what the user is asking about."

// Fallback strings returned instead of provider errors.
const (
	FallbackNotConfigured = "The AI service is not configured. Please contact your administrator to set up the API key."
	FallbackRateLimited   = "I've reached my usage limit. Please try again in a few minutes."
	FallbackGeneric       = "I'm having trouble connecting to my knowledge base right now. Please try again in a moment."
	FallbackEmpty         = "I'm sorry, I couldn't generate a response. Please try again."
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4o,
		MaxTokens:   1000,
		Temperature: 0.7,
	}
}

// Turn is one prior exchange turn in the simplified {role, content} history
// format fed to the provider.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistoryFromMessages maps stored messages to provider turns
// (sender user -> role user, sender bot -> role assistant).
func HistoryFromMessages(msgs []model.Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		role := openai.ChatMessageRoleAssistant
		if m.Sender == model.SenderUser {
			role = openai.ChatMessageRoleUser
		}
		turns = append(turns, Turn{Role: role, Content: m.Content})
	}
	return turns
}

type Service struct {
	cfg    Config
	client *openai.Client
}

func New(cfg Config) *Service {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.APIKey == "" {
		logger.Error("no completion API key configured, AI replies will degrade to fallback text")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Service{cfg: cfg, client: openai.NewClientWithConfig(clientCfg)}
}

// GenerateReply produces the assistant's reply to userText given the prior
// turns of the conversation. Never returns an error; see package comment.
func (s *Service) GenerateReply(ctx context.Context, userText string, history []Turn) string {
	if s.cfg.APIKey == "" {
		return FallbackNotConfigured
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, t := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    msgs,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		logger.Errorf("ai reply: %v", err)
		return fallbackFor(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return FallbackEmpty
	}
	return resp.Choices[0].Message.Content
}

// GenerateTitle produces a 2-4 word label for a chat from its first user
// message, with wrapping quotes stripped. Falls back to the generic title.
func (s *Service) GenerateTitle(ctx context.Context, firstUserText string) string {
	if s.cfg.APIKey == "" {
		return model.DefaultChatTitle
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: titleSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				Content: `Generate a short title (2-4 words maximum) for a chat that starts with this message: "` +
					firstUserText + `"`,
			},
		},
		MaxTokens:   15,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		logger.Errorf("ai title: %v", err)
		return model.DefaultChatTitle
	}
	if len(resp.Choices) == 0 {
		return model.DefaultChatTitle
	}
	title := strings.TrimSpace(resp.Choices[0].Message.Content)
	title = strings.Trim(title, `"'`)
	if title == "" {
		return model.DefaultChatTitle
	}
	return title
}

// fallbackFor picks the canned string matching the provider failure class.
func fallbackFor(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return FallbackRateLimited
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return FallbackNotConfigured
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "rate limit") {
		return FallbackRateLimited
	}
	return FallbackGeneric
}
