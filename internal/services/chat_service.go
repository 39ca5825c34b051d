package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/charlesng35/tidylink/internal/models"
	"github.com/charlesng35/tidylink/internal/realtime"
	apperrors "github.com/charlesng35/tidylink/pkg/errors"
)

const maxChatMessageLength = 4000

// Broadcaster relays frames to every socket joined to a chat room.
type Broadcaster interface {
	Broadcast(room string, payload any)
}

// MessageDTO is the wire shape of a chat message, for both REST and socket frames.
type MessageDTO struct {
	Type       string `json:"type,omitempty"`
	ID         string `json:"id"`
	Chat       string `json:"chat"`
	Content    string `json:"content"`
	Message    string `json:"message"`
	SenderID   string `json:"sender_id"`
	SenderRole string `json:"sender_role"`
	SenderName string `json:"sender_name"`
	SentAt     string `json:"sent_at"`
	IsRead     bool   `json:"is_read"`
}

// ReadReceipt is the frame broadcast when a participant reads a chat.
type ReadReceipt struct {
	Type              string `json:"type"`
	ChatID            string `json:"chat_id"`
	UserID            string `json:"user_id"`
	LastReadMessageID string `json:"last_read_message_id"`
}

// PostMessageParams carries the payload required to post a chat message.
type PostMessageParams struct {
	ChatID   string
	SenderID string
	Content  string
}

// ChatService persists chat messages for the dev backend and relays them to
// the chat room's sockets.
type ChatService struct {
	db      *gorm.DB
	hub     Broadcaster
	timeNow func() time.Time
}

// NewChatService constructs a ChatService. hub may be nil, in which case
// nothing is broadcast.
func NewChatService(db *gorm.DB, hub Broadcaster) (*ChatService, error) {
	if db == nil {
		return nil, errors.New("chat service: db is required")
	}
	return &ChatService{db: db, hub: hub, timeNow: time.Now}, nil
}

// Participant loads the chat and the user, failing unless the user belongs to it.
func (s *ChatService) Participant(ctx context.Context, chatID, userID string) (*models.Chat, *models.User, error) {
	ctx = ensureContext(ctx)

	var chat models.Chat
	if err := s.db.WithContext(ctx).First(&chat, "id = ?", chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrNotFound
		}
		return nil, nil, fmt.Errorf("chat service: load chat: %w", err)
	}
	if !chat.HasParticipant(userID) {
		return nil, nil, apperrors.ErrForbidden
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrForbidden
		}
		return nil, nil, fmt.Errorf("chat service: load user: %w", err)
	}
	return &chat, &user, nil
}

// ListMessages returns the chat history oldest first.
func (s *ChatService) ListMessages(ctx context.Context, chatID, userID string) ([]MessageDTO, error) {
	ctx = ensureContext(ctx)
	if _, _, err := s.Participant(ctx, chatID, userID); err != nil {
		return nil, err
	}

	var rows []models.Message
	if err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("chat service: list messages: %w", err)
	}

	out := make([]MessageDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapMessage(row, ""))
	}
	return out, nil
}

// PostMessage validates, persists and broadcasts a chat message.
func (s *ChatService) PostMessage(ctx context.Context, params PostMessageParams) (MessageDTO, error) {
	ctx = ensureContext(ctx)

	content := strings.TrimSpace(params.Content)
	if content == "" {
		return MessageDTO{}, apperrors.NewBadRequest("message content is required")
	}
	if utf8.RuneCountInString(content) > maxChatMessageLength {
		return MessageDTO{}, apperrors.NewBadRequest("message content exceeds maximum length")
	}

	_, sender, err := s.Participant(ctx, params.ChatID, params.SenderID)
	if err != nil {
		return MessageDTO{}, err
	}

	row := models.Message{
		ChatID:     params.ChatID,
		SenderID:   sender.ID,
		SenderRole: sender.Role,
		SenderName: sender.Name,
		Content:    content,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return MessageDTO{}, fmt.Errorf("chat service: create message: %w", err)
	}

	dto := mapMessage(row, "")
	if s.hub != nil {
		s.hub.Broadcast(params.ChatID, mapMessage(row, realtime.FrameMessage))
	}
	return dto, nil
}

// UnreadCount counts messages sent to the user, across all their chats, that
// they have not read.
func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Joins("JOIN chats ON chats.id = messages.chat_id").
		Where("(chats.employer_id = ? OR chats.cleaner_id = ?)", userID, userID).
		Where("messages.sender_id <> ? AND messages.is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("chat service: unread count: %w", err)
	}
	return count, nil
}

// MarkRead marks a single message read for the user.
func (s *ChatService) MarkRead(ctx context.Context, userID, messageID string) error {
	ctx = ensureContext(ctx)

	var row models.Message
	if err := s.db.WithContext(ctx).First(&row, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("chat service: load message: %w", err)
	}
	if _, _, err := s.Participant(ctx, row.ChatID, userID); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(&row).
		Updates(map[string]any{"is_read": true, "read_at": s.timeNow().UTC()}).Error; err != nil {
		return fmt.Errorf("chat service: mark read: %w", err)
	}
	return nil
}

// MarkAllRead marks every message the user received in the chat as read.
func (s *ChatService) MarkAllRead(ctx context.Context, userID, chatID string) (int64, error) {
	return s.markRead(ctx, userID, chatID, "")
}

// MarkReadUpTo marks received messages up to and including lastReadID as read
// and broadcasts a read receipt to the room.
func (s *ChatService) MarkReadUpTo(ctx context.Context, userID, chatID, lastReadID string) (int64, error) {
	if strings.TrimSpace(lastReadID) == "" {
		return 0, apperrors.NewBadRequest("last read message id is required")
	}
	return s.markRead(ctx, userID, chatID, lastReadID)
}

func (s *ChatService) markRead(ctx context.Context, userID, chatID, lastReadID string) (int64, error) {
	ctx = ensureContext(ctx)
	if _, _, err := s.Participant(ctx, chatID, userID); err != nil {
		return 0, err
	}

	query := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ? AND sender_id <> ? AND is_read = ?", chatID, userID, false)

	if lastReadID != "" {
		var last models.Message
		if err := s.db.WithContext(ctx).First(&last, "id = ? AND chat_id = ?", lastReadID, chatID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, apperrors.ErrNotFound
			}
			return 0, fmt.Errorf("chat service: load message: %w", err)
		}
		query = query.Where("created_at <= ?", last.CreatedAt)
	}

	result := query.Updates(map[string]any{"is_read": true, "read_at": s.timeNow().UTC()})
	if result.Error != nil {
		return 0, fmt.Errorf("chat service: mark read: %w", result.Error)
	}

	if s.hub != nil && lastReadID != "" {
		s.hub.Broadcast(chatID, ReadReceipt{
			Type:              realtime.FrameRead,
			ChatID:            chatID,
			UserID:            userID,
			LastReadMessageID: lastReadID,
		})
	}
	return result.RowsAffected, nil
}

func mapMessage(row models.Message, frameType string) MessageDTO {
	return MessageDTO{
		Type:       frameType,
		ID:         row.ID,
		Chat:       row.ChatID,
		Content:    row.Content,
		Message:    row.Content,
		SenderID:   row.SenderID,
		SenderRole: row.SenderRole,
		SenderName: row.SenderName,
		SentAt:     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		IsRead:     row.IsRead,
	}
}
