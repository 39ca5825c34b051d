package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/tidylink/internal/notify"
	"github.com/charlesng35/tidylink/internal/store"
)

type recordingSink struct {
	mu   sync.Mutex
	seen []notify.Notification
}

func (s *recordingSink) Ingest(raw map[string]any) notify.Notification {
	n := notify.Classify(raw)
	s.mu.Lock()
	s.seen = append(s.seen, n)
	s.mu.Unlock()
	return n
}

func (s *recordingSink) all() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Notification(nil), s.seen...)
}

func TestConnectNotificationsWithoutToken(t *testing.T) {
	client, err := ConnectNotifications(context.Background(), Config{BaseURL: "http://127.0.0.1:1"}, &recordingSink{}, " ")
	require.Nil(t, client)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestNotificationFramesAreIngested(t *testing.T) {
	seen := make(chan string, 1)
	srv := newChatServer(t, func(conn *websocket.Conn, r *http.Request) {
		seen <- r.URL.Path + "?" + r.URL.RawQuery
		_ = conn.WriteJSON(map[string]any{"type": "connected"})
		_ = conn.WriteJSON(map[string]any{"type": "notification", "notification": map[string]any{"id": 1, "type": "booking", "title": "New booking"}})
		_ = conn.WriteJSON(map[string]any{"type": "new_notification", "id": 2, "kind": "job", "title": "Office"})
		_ = conn.WriteJSON(map[string]any{"id": 3, "type": "alert", "target": map[string]any{"type": "chat", "id": 9}, "actor_name": "Ana", "message": "hi"})
		_ = conn.WriteJSON(map[string]any{"type": "unread_count", "unread_count": 4})
		_ = drain(conn)
	})

	sink := &recordingSink{}
	client, err := ConnectNotifications(context.Background(), Config{BaseURL: srv.URL}, sink, "tok")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect() })

	require.Equal(t, "/ws/notifications/?token=tok", <-seen)
	require.Eventually(t, func() bool { return len(sink.all()) == 3 }, 2*time.Second, 10*time.Millisecond)

	got := sink.all()
	require.Equal(t, "1", got[0].ID)
	require.Equal(t, notify.CategoryBooking, got[0].Category)
	require.Equal(t, notify.CategoryJob, got[1].Category)
	require.Equal(t, notify.CategoryMessage, got[2].Category)
	require.Equal(t, "Ana sent you a message: hi", got[2].Message)
	require.Empty(t, client.ChatID())
}

func TestNotificationSocketReconnects(t *testing.T) {
	var connections atomic.Int32
	srv := newChatServer(t, func(conn *websocket.Conn, _ *http.Request) {
		if connections.Add(1) == 1 {
			return
		}
		_ = conn.WriteJSON(map[string]any{"type": "notification", "notification": map[string]any{"id": "n1"}})
		_ = drain(conn)
	})

	sink := &recordingSink{}
	cfg := Config{
		BaseURL:   srv.URL,
		Reconnect: &ReconnectPolicy{BaseDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond},
	}
	client, err := ConnectNotifications(context.Background(), cfg, sink, "tok")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect() })

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, 5*time.Second, 10*time.Millisecond)
	require.GreaterOrEqual(t, connections.Load(), int32(2))
}

func TestOnClosedMayDisconnect(t *testing.T) {
	release := make(chan struct{})
	srv := newChatServer(t, func(conn *websocket.Conn, _ *http.Request) {
		<-release
	})

	var client *Client
	ready := make(chan struct{})
	returned := make(chan error, 1)
	cfg := Config{
		BaseURL: srv.URL,
		Handlers: Handlers{
			OnClosed: func(_ string, err error) {
				<-ready
				returned <- errors.Join(err, client.Disconnect())
			},
		},
	}
	var err error
	client, err = Connect(context.Background(), cfg, store.New(), "chat-1", "tok")
	require.NoError(t, err)
	close(ready)
	close(release)

	select {
	case err := <-returned:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Disconnect from OnClosed did not return")
	}
	<-client.Done()
}
