package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/tidylink/internal/chat"
	"github.com/charlesng35/tidylink/internal/client"
	"github.com/charlesng35/tidylink/internal/realtime"
	"github.com/charlesng35/tidylink/internal/store"
	"github.com/charlesng35/tidylink/pkg/logger"
)

// Session is one authenticated user's view of the inbox: the store, the REST
// services that feed it and the chat sockets that push into it.
type Session struct {
	Store         *store.Store
	Notifications *NotificationService
	Messages      *MessageService

	token   string
	rt      realtime.Config
	sockets *realtime.Manager
	log     *zap.Logger

	mu   sync.Mutex
	feed *realtime.Client
}

// NewSession builds a session around a REST client. rt configures the chat
// sockets; an empty BaseURL is derived from the REST client's base URL.
func NewSession(api *client.Client, rt realtime.Config) *Session {
	s := store.New()
	if rt.BaseURL == "" {
		rt.BaseURL = api.BaseURL()
	}

	return &Session{
		Store:         s,
		Notifications: NewNotificationService(api, s),
		Messages:      NewMessageService(api, s),
		token:         api.Token(),
		rt:            rt,
		sockets:       realtime.NewManager(rt, s),
		log:           logger.WithModule("inbox"),
	}
}

// OpenChat loads the chat history and then opens its socket. A failed history
// fetch leaves the socket closed. A missing token still returns the loaded
// history together with realtime.ErrMissingToken.
func (s *Session) OpenChat(ctx context.Context, chatID string) ([]chat.Message, error) {
	items, err := s.Messages.FetchChatMessages(ctx, chatID, nil)
	if err != nil {
		return nil, err
	}

	if _, err := s.sockets.Connect(ctx, chatID, s.token); err != nil {
		return items, fmt.Errorf("inbox: open chat %s: %w", chatID, err)
	}
	s.log.Debug("chat opened", zap.String("chat_id", chatID), zap.Int("history", len(items)))
	return items, nil
}

// Send writes over the chat socket when it is open and falls back to REST.
func (s *Session) Send(ctx context.Context, chatID, content string) error {
	err := s.sockets.Send(chatID, content)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, realtime.ErrNotConnected):
		_, err = s.Messages.Send(ctx, chatID, content)
		return err
	case errors.Is(err, realtime.ErrEmptyMessage):
		return ErrEmptyMessage
	}
	return err
}

// Connected reports whether the chat currently has an open socket.
func (s *Session) Connected(chatID string) bool {
	c, ok := s.sockets.Client(chatID)
	return ok && c.State() == realtime.StateOpen
}

// OpenChats lists the chats with a live socket handle.
func (s *Session) OpenChats() []string {
	return s.sockets.ChatIDs()
}

// CloseChat closes the chat's socket. The stored history is kept.
func (s *Session) CloseChat(chatID string) error {
	return s.sockets.Disconnect(chatID)
}

// MarkChatRead flips the chat's messages to read locally, confirms it with the
// server and, when the socket is open, sends a read receipt for the newest
// message so the other participant sees it.
func (s *Session) MarkChatRead(ctx context.Context, chatID string) error {
	s.Store.MarkChatAllReadLocal(chatID)
	if err := s.Messages.MarkChatAllRead(ctx, chatID); err != nil {
		return err
	}

	msgs := s.Store.Messages(chatID)
	if len(msgs) == 0 {
		return nil
	}
	c, ok := s.sockets.Client(chatID)
	if !ok {
		return nil
	}
	if err := c.SendRead(msgs[len(msgs)-1].ID); err != nil && !errors.Is(err, realtime.ErrNotConnected) {
		return err
	}
	return nil
}

// SetTyping toggles the typing indicator on the chat's socket.
func (s *Session) SetTyping(chatID string, typing bool) error {
	c, ok := s.sockets.Client(chatID)
	if !ok {
		return realtime.ErrNotConnected
	}
	return c.SendTyping(typing)
}

// OpenNotifications opens the session's notification socket. Pushed
// notifications are classified and upserted into the store; listeners use
// Store.Subscribe. Calling it while the socket is live is a no-op.
func (s *Session) OpenNotifications(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.feed != nil && s.feed.State() != realtime.StateClosed {
		return nil
	}
	feed, err := realtime.ConnectNotifications(ctx, s.rt, s.Notifications, s.token)
	if err != nil {
		return fmt.Errorf("inbox: open notifications: %w", err)
	}
	s.feed = feed
	return nil
}

// NotificationsConnected reports whether the notification socket is open.
func (s *Session) NotificationsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed != nil && s.feed.State() == realtime.StateOpen
}

// CloseNotifications closes the notification socket.
func (s *Session) CloseNotifications() error {
	s.mu.Lock()
	feed := s.feed
	s.feed = nil
	s.mu.Unlock()

	return feed.Disconnect()
}

// RefreshCounters re-reads both unread counters from the server.
func (s *Session) RefreshCounters(ctx context.Context) error {
	_, errN := s.Notifications.FetchUnreadCount(ctx)
	_, errM := s.Messages.FetchUnreadCount(ctx)
	return multierr.Append(errN, errM)
}

// Close disconnects every socket of the session.
func (s *Session) Close() error {
	return multierr.Append(s.sockets.Close(), s.CloseNotifications())
}
