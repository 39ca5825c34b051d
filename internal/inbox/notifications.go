package inbox

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/charlesng35/tidylink/internal/client"
	"github.com/charlesng35/tidylink/internal/notify"
	"github.com/charlesng35/tidylink/internal/store"
	"github.com/charlesng35/tidylink/pkg/logger"
	"github.com/charlesng35/tidylink/pkg/metrics"
)

// NotificationAPI is the subset of the REST client used for notifications.
type NotificationAPI interface {
	ListNotifications(ctx context.Context, params url.Values) (client.List, error)
	NotificationUnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// NotificationService fetches notifications, runs them through the classifier
// and commits the result to the store.
type NotificationService struct {
	api   NotificationAPI
	store *store.Store
	log   *zap.Logger
}

// NewNotificationService wires a notification service to its API and store.
func NewNotificationService(api NotificationAPI, s *store.Store) *NotificationService {
	return &NotificationService{
		api:   api,
		store: s,
		log:   logger.WithModule("inbox"),
	}
}

// Fetch loads one page of notifications and replaces the stored list.
// On failure the error is recorded on the store and returned.
func (s *NotificationService) Fetch(ctx context.Context, params url.Values) (store.NotificationPage, error) {
	s.store.BeginNotificationsLoad()

	list, err := s.api.ListNotifications(ctx, params)
	if err != nil {
		s.store.FailNotificationsLoad(err)
		s.log.Warn("fetch notifications failed", zap.Error(err))
		return store.NotificationPage{}, err
	}

	items := notify.ClassifyAll(list.Items)
	for _, n := range items {
		metrics.NotificationsClassified.WithLabelValues(string(n.Category)).Inc()
	}

	page := store.NotificationPage{
		Items:    items,
		Count:    list.Count,
		Next:     list.Next,
		Previous: list.Previous,
	}
	s.store.ReplaceNotifications(page)
	s.log.Debug("notifications fetched", zap.Int("items", len(items)), zap.Int64("count", list.Count))
	return page, nil
}

// FetchUnreadCount refreshes the authoritative notification unread counter.
func (s *NotificationService) FetchUnreadCount(ctx context.Context) (int, error) {
	n, err := s.api.NotificationUnreadCount(ctx)
	if err != nil {
		s.log.Warn("fetch notification unread count failed", zap.Error(err))
		return 0, err
	}
	s.store.SetNotificationUnread(n)
	return n, nil
}

// MarkRead marks a notification read on the server, then locally.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		s.log.Warn("mark notification read failed", zap.String("notification_id", id), zap.Error(err))
		return err
	}
	s.store.MarkNotificationRead(id)
	return nil
}

// MarkAllRead marks every notification read on the server, then locally.
func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	if err := s.api.MarkAllNotificationsRead(ctx); err != nil {
		s.log.Warn("mark all notifications read failed", zap.Error(err))
		return err
	}
	s.store.MarkAllNotificationsRead()
	return nil
}

// Ingest classifies a pushed notification payload and upserts it.
func (s *NotificationService) Ingest(raw map[string]any) notify.Notification {
	n := notify.Classify(raw)
	metrics.NotificationsClassified.WithLabelValues(string(n.Category)).Inc()
	s.store.UpsertNotification(n)
	return n
}
