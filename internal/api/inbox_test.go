package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/tidylink/internal/client"
	"github.com/charlesng35/tidylink/internal/database"
	"github.com/charlesng35/tidylink/internal/inbox"
	"github.com/charlesng35/tidylink/internal/notify"
	"github.com/charlesng35/tidylink/internal/realtime"
	"github.com/charlesng35/tidylink/internal/store"
)

// The CLI-side session against the dev backend, end to end.
func TestInboxSessionAgainstDevBackend(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	session := inbox.NewSession(client.New(srv.URL, env.token(t, database.SeedCleanerID)), realtime.Config{})
	t.Cleanup(func() { _ = session.Close() })
	ctx := context.Background()

	page, err := session.Notifications.Fetch(ctx, nil)
	require.NoError(t, err)
	require.Len(t, page.Items, 7)

	categories := map[notify.Category]int{}
	for _, n := range page.Items {
		categories[n.Category]++
	}
	require.Equal(t, 2, categories[notify.CategoryMessage])
	require.Equal(t, 3, categories[notify.CategoryBooking])
	require.Equal(t, 1, categories[notify.CategoryJob])
	require.Equal(t, 1, categories[notify.CategoryAlert])

	require.NoError(t, session.RefreshCounters(ctx))
	require.Equal(t, 7, session.Store.NotificationUnread())
	require.Equal(t, 1, session.Store.MessageUnread())

	history, err := session.OpenChat(ctx, database.SeedChatID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.True(t, session.Connected(database.SeedChatID))

	require.NoError(t, session.Send(ctx, database.SeedChatID, "Booked for Saturday"))
	require.Eventually(t, func() bool {
		return len(session.Store.Messages(database.SeedChatID)) == 3
	}, 2*time.Second, 10*time.Millisecond)
	last := session.Store.Messages(database.SeedChatID)[2]
	require.Equal(t, "Booked for Saturday", last.Content)

	require.NoError(t, session.SetTyping(database.SeedChatID, true))
	require.NoError(t, session.MarkChatRead(ctx, database.SeedChatID))
	for _, m := range session.Store.Messages(database.SeedChatID) {
		require.True(t, m.IsRead)
	}
	require.Zero(t, session.Store.MessageUnread())
	require.NoError(t, session.RefreshCounters(ctx))
	require.Zero(t, session.Store.MessageUnread())
}

func TestNotificationFeedAgainstDevBackend(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	session := inbox.NewSession(client.New(srv.URL, env.token(t, database.SeedCleanerID)), realtime.Config{})
	t.Cleanup(func() { _ = session.Close() })
	ctx := context.Background()

	_, err := session.Notifications.Fetch(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, session.RefreshCounters(ctx))
	require.Equal(t, 7, session.Store.NotificationUnread())

	events, cancel := session.Store.Subscribe(16)
	t.Cleanup(cancel)

	require.NoError(t, session.OpenNotifications(ctx))
	require.NoError(t, session.OpenNotifications(ctx))
	require.True(t, session.NotificationsConnected())
	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, "/health/ready", "", nil)
		return strings.Contains(w.Body.String(), "1 rooms, 1 peers")
	}, 2*time.Second, 10*time.Millisecond)

	w := env.do(t, http.MethodPost, "/api/dev/notifications", "", map[string]any{
		"user_id": database.SeedCleanerID,
		"payload": map[string]any{
			"type":           "alert",
			"title":          "Payment received",
			"booking_status": "paid",
			"target_title":   "Deep clean",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var pushed *notify.Notification
	timeout := time.After(2 * time.Second)
	for pushed == nil {
		select {
		case ev := <-events:
			if ev.Type == store.EventNotificationUpserted {
				pushed = ev.Notification
			}
		case <-timeout:
			t.Fatal("pushed notification never reached the store")
		}
	}

	require.Equal(t, notify.CategoryBooking, pushed.Category)
	require.Len(t, session.Store.Notifications(), 8)
	require.Equal(t, pushed.ID, session.Store.Notifications()[0].ID)
	require.Equal(t, 8, session.Store.NotificationUnread())

	require.NoError(t, session.CloseNotifications())
	require.False(t, session.NotificationsConnected())
}
