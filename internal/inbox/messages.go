package inbox

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/tidylink/internal/chat"
	"github.com/charlesng35/tidylink/internal/client"
	"github.com/charlesng35/tidylink/internal/store"
	"github.com/charlesng35/tidylink/pkg/logger"
)

// ErrEmptyMessage is returned when asked to send blank content.
var ErrEmptyMessage = errors.New("inbox: message content is empty")

// MessageAPI is the subset of the REST client used for chat messages.
type MessageAPI interface {
	ListChatMessages(ctx context.Context, chatID string, params url.Values) (client.List, error)
	SendMessage(ctx context.Context, chatID, content string) (map[string]any, error)
	MessageUnreadCount(ctx context.Context) (int, error)
	MarkMessageRead(ctx context.Context, messageID string) error
	MarkChatAllRead(ctx context.Context, chatID string) error
}

// MessageService fetches and sends chat messages through REST and keeps the
// store in sync with the results.
type MessageService struct {
	api   MessageAPI
	store *store.Store
	now   func() time.Time
	log   *zap.Logger
}

// NewMessageService wires a message service to its API and store.
func NewMessageService(api MessageAPI, s *store.Store) *MessageService {
	return &MessageService{
		api:   api,
		store: s,
		now:   time.Now,
		log:   logger.WithModule("inbox"),
	}
}

// FetchChatMessages loads a chat's history and rebuilds its bucket.
func (s *MessageService) FetchChatMessages(ctx context.Context, chatID string, params url.Values) ([]chat.Message, error) {
	s.store.BeginChatLoad(chatID)

	list, err := s.api.ListChatMessages(ctx, chatID, params)
	if err != nil {
		s.store.FailChatLoad(chatID, err)
		s.log.Warn("fetch chat messages failed", zap.String("chat_id", chatID), zap.Error(err))
		return nil, err
	}

	items := chat.NormalizeAll(chatID, list.Items)
	s.store.ReplaceMessages(chatID, items)
	return s.store.Messages(chatID), nil
}

// Send posts a message over REST and appends the stored result. When the
// server echoes nothing usable the message is built from the request.
func (s *MessageService) Send(ctx context.Context, chatID, content string) (chat.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	payload, err := s.api.SendMessage(ctx, chatID, content)
	if err != nil {
		s.log.Warn("send message failed", zap.String("chat_id", chatID), zap.Error(err))
		return chat.Message{}, err
	}

	msg, ok := chat.Normalize(chatID, payload)
	if !ok {
		now := s.now()
		msg = chat.Message{
			ID:         uuid.NewString(),
			ChatID:     chatID,
			Content:    content,
			SenderRole: chat.RoleCleaner,
			SentAt:     now,
			SentAtRaw:  now.UTC().Format(time.RFC3339),
			IsRead:     true,
		}
		if role, found := payload["sender_role"].(string); found {
			msg.SenderRole = chat.ParseRole(role, nil)
		}
	}
	s.store.InsertMessage(msg)
	return msg, nil
}

// FetchUnreadCount refreshes the authoritative message unread counter.
func (s *MessageService) FetchUnreadCount(ctx context.Context) (int, error) {
	n, err := s.api.MessageUnreadCount(ctx)
	if err != nil {
		s.log.Warn("fetch message unread count failed", zap.Error(err))
		return 0, err
	}
	s.store.SetMessageUnread(n)
	return n, nil
}

// MarkMessageRead marks one message read on the server, then locally.
func (s *MessageService) MarkMessageRead(ctx context.Context, messageID string) error {
	if err := s.api.MarkMessageRead(ctx, messageID); err != nil {
		s.log.Warn("mark message read failed", zap.String("message_id", messageID), zap.Error(err))
		return err
	}
	s.store.MarkMessageRead(messageID)
	return nil
}

// MarkChatAllRead marks a whole chat read on the server, then locally.
func (s *MessageService) MarkChatAllRead(ctx context.Context, chatID string) error {
	if err := s.api.MarkChatAllRead(ctx, chatID); err != nil {
		s.log.Warn("mark chat read failed", zap.String("chat_id", chatID), zap.Error(err))
		return err
	}
	s.store.MarkChatAllRead(chatID)
	return nil
}
