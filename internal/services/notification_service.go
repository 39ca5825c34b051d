package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/tidylink/internal/models"
	"github.com/charlesng35/tidylink/internal/realtime"
	apperrors "github.com/charlesng35/tidylink/pkg/errors"
)

// ListNotificationsInput defines filters for querying user notifications.
// Page 0 means "unpaged": every notification is returned as a bare list.
type ListNotificationsInput struct {
	UserID   string
	Page     int
	PageSize int
}

// NotificationList is one page of wire notifications.
type NotificationList struct {
	Items    []map[string]any
	Count    int64
	Page     int
	PageSize int
	HasNext  bool
}

// NotificationService manages user notifications for the dev backend. Stored
// payloads are free-form; the service only adds id, is_read and created_at.
type NotificationService struct {
	db      *gorm.DB
	hub     Broadcaster
	timeNow func() time.Time
}

// NewNotificationService constructs a NotificationService. hub may be nil, in
// which case created notifications are not pushed.
func NewNotificationService(db *gorm.DB, hub Broadcaster) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, hub: hub, timeNow: time.Now}, nil
}

// NotificationRoom names the hub room carrying a user's notification feed.
func NotificationRoom(userID string) string {
	return "notifications:" + userID
}

// List returns the user's notifications ordered by recency.
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) (NotificationList, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return NotificationList{}, errors.New("notification service: user id is required")
	}

	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return NotificationList{}, fmt.Errorf("notification service: count notifications: %w", err)
	}

	list := NotificationList{Count: count}
	rowsQuery := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC")
	if input.Page > 0 {
		page, size, offset := pageBounds(input.Page, input.PageSize)
		rowsQuery = rowsQuery.Limit(size).Offset(offset)
		list.Page, list.PageSize = page, size
		list.HasNext = int64(offset+size) < count
	}

	var rows []models.Notification
	if err := rowsQuery.Find(&rows).Error; err != nil {
		return NotificationList{}, fmt.Errorf("notification service: list notifications: %w", err)
	}

	list.Items = make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		list.Items = append(list.Items, wireNotification(row))
	}
	return list, nil
}

// UnreadCount returns the number of unread notifications for the user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: unread count: %w", err)
	}
	return count, nil
}

// Create stores a notification payload for the user and pushes it to the
// user's notification sockets.
func (s *NotificationService) Create(ctx context.Context, userID string, payload map[string]any) (map[string]any, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal payload: %w", err)
	}

	row := models.Notification{UserID: userID, Payload: datatypes.JSON(data)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	wire := wireNotification(row)
	if s.hub != nil {
		s.hub.Broadcast(NotificationRoom(userID), map[string]any{
			"type":         realtime.FrameNotification,
			"notification": wire,
		})
	}
	return wire, nil
}

// MarkRead sets the notification read flag for a user.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]any{"is_read": true, "read_at": s.timeNow().UTC()})
	if result.Error != nil {
		return fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// MarkAllRead marks all notifications for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": s.timeNow().UTC()})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark all read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// wireNotification merges the stored payload with the row's identity. The row
// id and read flag always win; created_at is filled only when the payload has none.
func wireNotification(row models.Notification) map[string]any {
	out := decodeJSON(row.Payload)
	out["id"] = row.ID
	out["is_read"] = row.IsRead
	if _, ok := out["created_at"]; !ok {
		out["created_at"] = row.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}
