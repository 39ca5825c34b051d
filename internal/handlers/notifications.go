package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/tidylink/internal/services"
	"github.com/charlesng35/tidylink/pkg/response"
)

// NotificationHandler exposes the marketplace notification endpoints.
type NotificationHandler struct {
	service *services.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List returns the caller's notifications. Without a page query the full list is
// returned as a bare array; with one, a paginated envelope with next/previous links.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	page := parseIntQuery(c, "page", 0)
	if page < 0 {
		page = 0
	}
	list, err := h.service.List(requestContext(c), services.ListNotificationsInput{
		UserID:   userID,
		Page:     page,
		PageSize: parseIntQuery(c, "page_size", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if list.Page == 0 {
		response.Raw(c, http.StatusOK, list.Items)
		return
	}

	out := response.Page{Results: list.Items, Count: list.Count}
	if list.HasNext {
		next := pageURL(c, list.Page+1, list.PageSize)
		out.Next = &next
	}
	if list.Page > 1 {
		prev := pageURL(c, list.Page-1, list.PageSize)
		out.Previous = &prev
	}
	response.Paginated(c, out)
}

// UnreadCount returns {"unread_count": n}.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead marks a single notification read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := h.service.MarkRead(requestContext(c), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, gin.H{"status": "read", "id": id})
}

// MarkAllRead marks all of the caller's notifications read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	updated, err := h.service.MarkAllRead(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, gin.H{"status": "read", "updated": updated})
}

// CreateNotificationRequest seeds a notification for a user. The payload is
// stored as-is; any shape the classifier understands is accepted.
type CreateNotificationRequest struct {
	UserID  string         `json:"user_id" validate:"required"`
	Payload map[string]any `json:"payload" validate:"required"`
}

// Create stores a notification payload. It backs the dev-only endpoint used to
// exercise the classifier against arbitrary shapes.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req CreateNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	item, err := h.service.Create(requestContext(c), req.UserID, req.Payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusCreated, item)
}

func pageURL(c *gin.Context, page, size int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := c.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}

	query := c.Request.URL.Query()
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(size))

	u := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: query.Encode(),
	}
	return u.String()
}
