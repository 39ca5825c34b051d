package inbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/tidylink/internal/client"
	"github.com/charlesng35/tidylink/internal/realtime"
)

// newBackend serves the chat history endpoint, the REST send endpoint and a
// chat socket that echoes message frames back to the room with a server id.
func newBackend(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	hub := realtime.NewHub()
	var restSends atomic.Int32
	var nextID atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/messages/chat/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":1,"content":"history","sender_role":"employer"}],"count":1}`))
	})
	mux.HandleFunc("/api/messages/", func(w http.ResponseWriter, r *http.Request) {
		restSends.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"rest-1","content":"via rest"}`))
	})
	mux.HandleFunc("/ws/chat/", func(w http.ResponseWriter, r *http.Request) {
		room := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/chat/"), "/")
		hub.Serve(room, realtime.Participant{UserID: "u1"}, w, r, func(peer *realtime.Peer, frame realtime.Frame) {
			if frame.Type() != realtime.FrameMessage {
				return
			}
			id := nextID.Add(1) + 100
			hub.Broadcast(peer.Room(), map[string]any{
				"type":        realtime.FrameMessage,
				"id":          id,
				"message":     frame.String("message"),
				"sender_role": "cleaner",
			})
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &restSends
}

func TestSessionOpenChatThenPush(t *testing.T) {
	srv, restSends := newBackend(t)
	session := NewSession(client.New(srv.URL, "tok"), realtime.Config{})
	t.Cleanup(func() { _ = session.Close() })
	ctx := context.Background()

	items, err := session.OpenChat(ctx, "7")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, []string{"7"}, session.OpenChats())
	require.True(t, session.Connected("7"))

	require.NoError(t, session.Send(ctx, "7", "over the socket"))
	require.Eventually(t, func() bool { return len(session.Store.Messages("7")) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "over the socket", session.Store.Messages("7")[1].Content)
	require.Zero(t, restSends.Load())

	require.NoError(t, session.CloseChat("7"))
	require.False(t, session.Connected("7"))

	require.NoError(t, session.Send(ctx, "7", "via rest"))
	require.Equal(t, int32(1), restSends.Load())
	msgs := session.Store.Messages("7")
	require.Len(t, msgs, 3)
	require.Equal(t, "rest-1", msgs[2].ID)
}

func TestSessionOpenChatWithoutToken(t *testing.T) {
	srv, _ := newBackend(t)
	session := NewSession(client.New(srv.URL, ""), realtime.Config{})
	t.Cleanup(func() { _ = session.Close() })

	items, err := session.OpenChat(context.Background(), "7")
	require.ErrorIs(t, err, realtime.ErrMissingToken)
	require.Len(t, items, 1)
	require.Empty(t, session.OpenChats())
}

func TestSessionOpenChatFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	session := NewSession(client.New(srv.URL, "tok"), realtime.Config{})
	_, err := session.OpenChat(context.Background(), "7")
	require.Error(t, err)
	require.Empty(t, session.OpenChats())
	require.Error(t, session.Store.Chat("7").Err)
}

func TestSessionRefreshCounters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/messages/unread-count" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"unread_count":4}`))
	}))
	t.Cleanup(srv.Close)

	session := NewSession(client.New(srv.URL, "tok"), realtime.Config{})
	err := session.RefreshCounters(context.Background())
	require.Error(t, err)
	require.Equal(t, 4, session.Store.NotificationUnread())
	require.Zero(t, session.Store.MessageUnread())
}

func TestSessionRefetchKeepsLivePushes(t *testing.T) {
	hub := realtime.NewHub()
	var historyCalls atomic.Int32
	entered := make(chan struct{})
	gate := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/messages/chat/", func(w http.ResponseWriter, _ *http.Request) {
		if historyCalls.Add(1) == 2 {
			close(entered)
			<-gate
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"id":1,"content":"history"}],"count":1}`))
	})
	mux.HandleFunc("/ws/chat/", func(w http.ResponseWriter, r *http.Request) {
		room := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/chat/"), "/")
		hub.Serve(room, realtime.Participant{UserID: "u1"}, w, r, func(*realtime.Peer, realtime.Frame) {})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	session := NewSession(client.New(srv.URL, "tok"), realtime.Config{})
	t.Cleanup(func() { _ = session.Close() })
	ctx := context.Background()

	_, err := session.OpenChat(ctx, "7")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Peers("7") == 1 }, 2*time.Second, 10*time.Millisecond)

	refetched := make(chan error, 1)
	go func() {
		_, err := session.OpenChat(ctx, "7")
		refetched <- err
	}()
	<-entered

	hub.Broadcast("7", map[string]any{"type": "message", "id": 55, "message": "live"})
	require.Eventually(t, func() bool { return len(session.Store.Messages("7")) == 2 }, 2*time.Second, 10*time.Millisecond)

	close(gate)
	require.NoError(t, <-refetched)

	msgs := session.Store.Messages("7")
	require.Len(t, msgs, 2)
	require.Equal(t, "1", msgs[0].ID)
	require.Equal(t, "55", msgs[1].ID)
	require.Equal(t, "live", msgs[1].Content)
}
