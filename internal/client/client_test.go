package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/charlesng35/tidylink/pkg/errors"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
}

func newAPI(t *testing.T, status int, payload string) (*Client, chan recorded) {
	t.Helper()

	calls := make(chan recorded, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{
			method: r.Method,
			path:   r.URL.EscapedPath(),
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
		}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.body)
		}
		calls <- rec
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	return New(srv.URL+"/", "tok"), calls
}

func TestListNotificationsArray(t *testing.T) {
	c, calls := newAPI(t, http.StatusOK, `[{"id":1,"type":"job"},null,{"id":2}]`)

	list, err := c.ListNotifications(context.Background(), url.Values{"page": {"2"}})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, int64(2), list.Count)
	require.Empty(t, list.Next)

	call := <-calls
	require.Equal(t, http.MethodGet, call.method)
	require.Equal(t, "/api/notifications/", call.path)
	require.Equal(t, "page=2", call.query)
	require.Equal(t, "Bearer tok", call.auth)
}

func TestListNotificationsPaged(t *testing.T) {
	c, _ := newAPI(t, http.StatusOK, `{"results":[{"id":1}],"count":"17","next":"https://x/?page=2","previous":null}`)

	list, err := c.ListNotifications(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, int64(17), list.Count)
	require.Equal(t, "https://x/?page=2", list.Next)
	require.Empty(t, list.Previous)
}

func TestListCountFallsBackToItems(t *testing.T) {
	var list List
	require.NoError(t, json.Unmarshal([]byte(`{"results":[{"id":1},{"id":2}],"count":"n/a"}`), &list))
	require.Equal(t, int64(2), list.Count)

	require.NoError(t, json.Unmarshal([]byte(`{"detail":"empty"}`), &list))
	require.Empty(t, list.Items)
	require.Zero(t, list.Count)

	require.NoError(t, json.Unmarshal([]byte(`null`), &list))
	require.Empty(t, list.Items)
}

func TestUnreadCountTolerance(t *testing.T) {
	cases := map[string]int{
		`{"unread_count":4}`:      4,
		`{"unread_count":"9"}`:    9,
		`{"unread_count":null}`:   0,
		`{"unread_count":"many"}`: 0,
		`{"unread_count":-3}`:     0,
		`{}`:                      0,
	}
	for payload, want := range cases {
		c, calls := newAPI(t, http.StatusOK, payload)
		got, err := c.NotificationUnreadCount(context.Background())
		require.NoError(t, err, payload)
		require.Equal(t, want, got, payload)
		require.Equal(t, "/api/notifications/unread_count/", (<-calls).path)
	}
}

func TestMessageEndpoints(t *testing.T) {
	ctx := context.Background()

	c, calls := newAPI(t, http.StatusOK, `{"results":[{"id":1,"content":"hi"}]}`)
	list, err := c.ListChatMessages(ctx, "chat 7", nil)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "/api/messages/chat/chat%207/messages", (<-calls).path)

	c, calls = newAPI(t, http.StatusCreated, `{"id":10,"content":"hello","sender_role":"employer"}`)
	msg, err := c.SendMessage(ctx, "7", "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", msg["content"])
	call := <-calls
	require.Equal(t, http.MethodPost, call.method)
	require.Equal(t, "/api/messages/", call.path)
	require.Equal(t, map[string]any{"chat": "7", "content": "hello"}, call.body)

	c, calls = newAPI(t, http.StatusOK, `{"unread_count":3}`)
	n, err := c.MessageUnreadCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "/api/messages/unread-count", (<-calls).path)

	c, calls = newAPI(t, http.StatusNoContent, ``)
	require.NoError(t, c.MarkMessageRead(ctx, "10"))
	require.Equal(t, "/api/messages/10/mark-as-read/", (<-calls).path)
	require.NoError(t, c.MarkChatAllRead(ctx, "7"))
	require.Equal(t, "/api/messages/chat/7/mark-all-read/", (<-calls).path)
	require.NoError(t, c.MarkNotificationRead(ctx, "3"))
	require.Equal(t, "/api/notifications/3/mark_as_read/", (<-calls).path)
	require.NoError(t, c.MarkAllNotificationsRead(ctx))
	require.Equal(t, "/api/notifications/mark_all_as_read/", (<-calls).path)
}

func TestErrorPayloadPropagates(t *testing.T) {
	c, _ := newAPI(t, http.StatusForbidden, `{"detail":"Not your chat"}`)

	_, err := c.ListChatMessages(context.Background(), "1", nil)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusForbidden, appErr.StatusCode)
	require.Equal(t, "FORBIDDEN", appErr.Code)
	require.Equal(t, "Not your chat", appErr.Message)
	require.Equal(t, map[string]any{"detail": "Not your chat"}, appErr.Payload)
}

func TestErrorFallbackMessage(t *testing.T) {
	c, _ := newAPI(t, http.StatusInternalServerError, ``)

	err := c.MarkAllNotificationsRead(context.Background())
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, MsgMarkAllNotificationsRead, appErr.Message)
	require.Nil(t, appErr.Payload)
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := New(base, "tok").MessageUnreadCount(context.Background())
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "UNAVAILABLE", appErr.Code)
	require.Equal(t, MsgFetchMessagesUnread, appErr.Message)
	require.Error(t, appErr.Unwrap())
}

func TestNoTokenSendsNoAuthorization(t *testing.T) {
	calls := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls <- r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL, " ").ListNotifications(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, <-calls)
}
