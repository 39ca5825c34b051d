package client

import (
	"context"
	"net/http"
	"net/url"
)

// Fallback messages used when a failed response carries no usable body.
const (
	MsgFetchNotifications       = "Failed to fetch notifications"
	MsgFetchNotificationsUnread = "Failed to fetch unread notifications count"
	MsgMarkNotificationRead     = "Failed to mark notification as read"
	MsgMarkAllNotificationsRead = "Failed to mark all notifications as read"
	MsgFetchMessagesUnread      = "Failed to fetch unread count"
	MsgFetchMessages            = "Failed to fetch messages"
	MsgSendMessage              = "Failed to send message"
	MsgMarkMessageRead          = "Failed to mark as read"
	MsgMarkChatAllRead          = "Failed to mark all read"
)

// ListNotifications fetches the raw notification list. params are passed as
// query parameters (page, page_size, ...).
func (c *Client) ListNotifications(ctx context.Context, params url.Values) (List, error) {
	var list List
	err := c.do(ctx, http.MethodGet, "/api/notifications/", params, nil, &list, MsgFetchNotifications)
	return list, err
}

// NotificationUnreadCount returns the authoritative notification unread count.
func (c *Client) NotificationUnreadCount(ctx context.Context) (int, error) {
	var out unreadCount
	if err := c.do(ctx, http.MethodGet, "/api/notifications/unread_count/", nil, nil, &out, MsgFetchNotificationsUnread); err != nil {
		return 0, err
	}
	return out.count(), nil
}

// MarkNotificationRead marks a single notification as read on the server.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := "/api/notifications/" + url.PathEscape(id) + "/mark_as_read/"
	return c.do(ctx, http.MethodPost, path, nil, nil, nil, MsgMarkNotificationRead)
}

// MarkAllNotificationsRead marks every notification as read on the server.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/mark_all_as_read/", nil, nil, nil, MsgMarkAllNotificationsRead)
}

// ListChatMessages fetches the raw message history of one chat.
func (c *Client) ListChatMessages(ctx context.Context, chatID string, params url.Values) (List, error) {
	var list List
	path := "/api/messages/chat/" + url.PathEscape(chatID) + "/messages"
	err := c.do(ctx, http.MethodGet, path, params, nil, &list, MsgFetchMessages)
	return list, err
}

type sendMessageRequest struct {
	Chat    string `json:"chat"`
	Content string `json:"content"`
}

// SendMessage posts a message to a chat and returns the stored message payload.
func (c *Client) SendMessage(ctx context.Context, chatID, content string) (map[string]any, error) {
	var out map[string]any
	body := sendMessageRequest{Chat: chatID, Content: content}
	if err := c.do(ctx, http.MethodPost, "/api/messages/", nil, body, &out, MsgSendMessage); err != nil {
		return nil, err
	}
	return out, nil
}

// MessageUnreadCount returns the authoritative message unread count.
func (c *Client) MessageUnreadCount(ctx context.Context) (int, error) {
	var out unreadCount
	if err := c.do(ctx, http.MethodGet, "/api/messages/unread-count", nil, nil, &out, MsgFetchMessagesUnread); err != nil {
		return 0, err
	}
	return out.count(), nil
}

// MarkMessageRead marks a single message as read on the server.
func (c *Client) MarkMessageRead(ctx context.Context, messageID string) error {
	path := "/api/messages/" + url.PathEscape(messageID) + "/mark-as-read/"
	return c.do(ctx, http.MethodPost, path, nil, nil, nil, MsgMarkMessageRead)
}

// MarkChatAllRead marks every message in a chat as read on the server.
func (c *Client) MarkChatAllRead(ctx context.Context, chatID string) error {
	path := "/api/messages/chat/" + url.PathEscape(chatID) + "/mark-all-read/"
	return c.do(ctx, http.MethodPost, path, nil, nil, nil, MsgMarkChatAllRead)
}
