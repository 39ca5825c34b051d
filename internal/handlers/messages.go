package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/tidylink/internal/services"
	"github.com/charlesng35/tidylink/pkg/response"
)

// MessageHandler exposes the marketplace chat message endpoints.
type MessageHandler struct {
	chats *services.ChatService
}

// NewMessageHandler constructs a message handler.
func NewMessageHandler(chats *services.ChatService) *MessageHandler {
	return &MessageHandler{chats: chats}
}

// SendMessageRequest is the body of POST /api/messages/.
type SendMessageRequest struct {
	Chat    string `json:"chat" validate:"required"`
	Content string `json:"content" validate:"required,max=4000"`
}

// List returns the chat history oldest first.
func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	items, err := h.chats.ListMessages(requestContext(c), strings.TrimSpace(c.Param("chatId")), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, response.Page{Results: items, Count: int64(len(items))})
}

// Send posts a message to a chat. The stored message is returned and also
// broadcast to the chat's sockets.
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	msg, err := h.chats.PostMessage(requestContext(c), services.PostMessageParams{
		ChatID:   strings.TrimSpace(req.Chat),
		SenderID: userID,
		Content:  req.Content,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusCreated, msg)
}

// UnreadCount returns {"unread_count": n} across all of the caller's chats.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.chats.UnreadCount(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead marks one message read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := h.chats.MarkRead(requestContext(c), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, gin.H{"status": "read", "id": id})
}

// MarkAllRead marks every message the caller received in the chat as read.
func (h *MessageHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	updated, err := h.chats.MarkAllRead(requestContext(c), userID, strings.TrimSpace(c.Param("chatId")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, gin.H{"status": "read", "updated": updated})
}
