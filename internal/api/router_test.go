package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/tidylink/internal/app"
	iauth "github.com/charlesng35/tidylink/internal/auth"
	"github.com/charlesng35/tidylink/internal/database"
	"github.com/charlesng35/tidylink/internal/database/testutil"
)

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	jwt    *iauth.JWTService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "test", AccessTokenTTL: 15 * time.Minute})
	require.NoError(t, err)

	cfg := &app.Config{Metrics: app.MetricsConfig{Enabled: true, Endpoint: "/metrics"}}
	router, err := NewRouter(db, jwtSvc, cfg)
	require.NoError(t, err)

	return &testEnv{router: router, db: db, jwt: jwtSvc}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/dev/token", "", map[string]string{"user_id": userID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int64  `json:"expires_in"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.True(t, payload.Success)
	require.Equal(t, int64(900), payload.Data.ExpiresIn)
	return payload.Data.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(nil, nil, nil)
	require.Error(t, err)
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"component":"database"`)
	require.Contains(t, w.Body.String(), `"component":"realtime"`)

	for _, path := range []string{"/api/notifications/", "/api/messages/unread-count", "/api/notifications/unread_count/"} {
		w = env.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w = env.do(t, http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/dev/token", "", map[string]string{"user_id": "missing"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/dev/token", "", map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "user id is required")
}

func TestRouterMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/health", "", nil)

	w := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "tidylink_api_latency_seconds")
}

func TestNotificationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, database.SeedCleanerID)

	w := env.do(t, http.MethodGet, "/api/notifications/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 7)
	require.Contains(t, all[0], "id")
	require.Equal(t, false, all[0]["is_read"])

	w = env.do(t, http.MethodGet, "/api/notifications/?page=1&page_size=3", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Results  []map[string]any `json:"results"`
		Count    int64            `json:"count"`
		Next     *string          `json:"next"`
		Previous *string          `json:"previous"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Results, 3)
	require.Equal(t, int64(7), page.Count)
	require.NotNil(t, page.Next)
	require.Contains(t, *page.Next, "page=2")
	require.Nil(t, page.Previous)

	w = env.do(t, http.MethodGet, "/api/notifications/?page=3&page_size=3", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Results, 1)
	require.Nil(t, page.Next)
	require.NotNil(t, page.Previous)

	w = env.do(t, http.MethodGet, "/api/notifications/unread_count/", token, nil)
	require.JSONEq(t, `{"unread_count":7}`, w.Body.String())

	id, _ := all[0]["id"].(string)
	w = env.do(t, http.MethodPost, "/api/notifications/"+id+"/mark_as_read/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/notifications/unread_count/", token, nil)
	require.JSONEq(t, `{"unread_count":6}`, w.Body.String())

	// Another user cannot touch the cleaner's notification.
	other := env.token(t, database.SeedEmployerID)
	w = env.do(t, http.MethodPost, "/api/notifications/"+id+"/mark_as_read/", other, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/notifications/mark_all_as_read/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"updated":6`)

	w = env.do(t, http.MethodGet, "/api/notifications/unread_count/", token, nil)
	require.JSONEq(t, `{"unread_count":0}`, w.Body.String())
}

func TestDevNotificationInjection(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, database.SeedEmployerID)

	w := env.do(t, http.MethodPost, "/api/dev/notifications", "", map[string]any{
		"user_id": database.SeedEmployerID,
		"payload": map[string]any{"type": "job", "title": "Window cleaning"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/notifications/", token, nil)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 1)
	require.Equal(t, "Window cleaning", all[0]["title"])
}

func TestMessageEndpoints(t *testing.T) {
	env := newTestEnv(t)
	cleaner := env.token(t, database.SeedCleanerID)
	employer := env.token(t, database.SeedEmployerID)

	w := env.do(t, http.MethodGet, "/api/messages/chat/"+database.SeedChatID+"/messages", cleaner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Results []map[string]any `json:"results"`
		Count   int64            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Equal(t, int64(2), page.Count)

	w = env.do(t, http.MethodGet, "/api/messages/unread-count", cleaner, nil)
	require.JSONEq(t, `{"unread_count":1}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/messages/", employer, map[string]string{"chat": database.SeedChatID, "content": "See you at 9"})
	require.Equal(t, http.StatusCreated, w.Code)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	require.Equal(t, "See you at 9", sent["content"])
	require.Equal(t, "employer", sent["sender_role"])

	w = env.do(t, http.MethodPost, "/api/messages/", employer, map[string]string{"chat": database.SeedChatID})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "content is required")

	w = env.do(t, http.MethodPost, "/api/messages/", employer, map[string]string{"chat": database.SeedChatID, "content": strings.Repeat("x", 4001)})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/messages/unread-count", cleaner, nil)
	require.JSONEq(t, `{"unread_count":2}`, w.Body.String())

	id, _ := sent["id"].(string)
	w = env.do(t, http.MethodPost, "/api/messages/"+id+"/mark-as-read/", cleaner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/messages/chat/"+database.SeedChatID+"/mark-all-read/", cleaner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"updated":1`)

	w = env.do(t, http.MethodGet, "/api/messages/unread-count", cleaner, nil)
	require.JSONEq(t, `{"unread_count":0}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/messages/chat/unknown/messages", cleaner, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
