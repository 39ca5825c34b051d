package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/tidylink/internal/middleware"
	"github.com/charlesng35/tidylink/internal/realtime"
	"github.com/charlesng35/tidylink/internal/services"
	"github.com/charlesng35/tidylink/pkg/errors"
	"github.com/charlesng35/tidylink/pkg/logger"
	"github.com/charlesng35/tidylink/pkg/response"
)

// ChatSocketHandler upgrades authenticated chat participants onto the chat room.
type ChatSocketHandler struct {
	hub   *realtime.Hub
	chats *services.ChatService
	log   *zap.Logger
}

// NewChatSocketHandler constructs a chat socket handler.
func NewChatSocketHandler(hub *realtime.Hub, chats *services.ChatService) *ChatSocketHandler {
	return &ChatSocketHandler{hub: hub, chats: chats, log: logger.WithModule("handlers.chat_socket")}
}

// Stream checks membership before the upgrade so that strangers get a plain
// HTTP error instead of a socket that closes immediately.
func (h *ChatSocketHandler) Stream(c *gin.Context) {
	if h.hub == nil || h.chats == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	chatID := strings.TrimSpace(c.Param("chatId"))
	_, user, err := h.chats.Participant(requestContext(c), chatID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	who := realtime.Participant{UserID: user.ID, Role: user.Role, Name: user.Name}
	h.hub.Serve(chatID, who, c.Writer, c.Request, h.handleFrame(requestContext(c)))
}

func (h *ChatSocketHandler) handleFrame(ctx context.Context) realtime.FrameHandler {
	return func(peer *realtime.Peer, frame realtime.Frame) {
		switch frame.Type() {
		case realtime.FrameMessage, "":
			_, err := h.chats.PostMessage(ctx, services.PostMessageParams{
				ChatID:   peer.Room(),
				SenderID: peer.UserID,
				Content:  frame.String("message", "content"),
			})
			if err != nil {
				h.reject(peer, err)
			}
		case realtime.FrameTyping:
			typing, _ := frame["is_typing"].(bool)
			h.hub.BroadcastExcept(peer.Room(), peer, map[string]any{
				"type":      realtime.FrameTyping,
				"user_id":   peer.UserID,
				"user_name": peer.Name,
				"is_typing": typing,
			})
		case realtime.FrameRead:
			if _, err := h.chats.MarkReadUpTo(ctx, peer.UserID, peer.Room(), frame.LastReadID()); err != nil {
				h.reject(peer, err)
			}
		default:
			peer.Send(map[string]any{"type": realtime.FrameError, "message": "unsupported frame type"})
		}
	}
}

func (h *ChatSocketHandler) reject(peer *realtime.Peer, err error) {
	appErr := errors.FromError(err)
	h.log.Debug("frame rejected",
		zap.String("room", peer.Room()),
		zap.String("user_id", peer.UserID),
		zap.Error(err),
	)
	peer.Send(map[string]any{"type": realtime.FrameError, "code": appErr.Code, "message": appErr.Message})
}

// NotificationSocketHandler streams a user's pushed notifications. The feed is
// server to client only; inbound frames other than keepalives are refused.
type NotificationSocketHandler struct {
	hub *realtime.Hub
}

// NewNotificationSocketHandler constructs a notification socket handler.
func NewNotificationSocketHandler(hub *realtime.Hub) *NotificationSocketHandler {
	return &NotificationSocketHandler{hub: hub}
}

// Stream joins the caller to their own notification room.
func (h *NotificationSocketHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	who := realtime.Participant{UserID: userID, Role: c.GetString(middleware.CtxRoleKey)}
	h.hub.Serve(services.NotificationRoom(userID), who, c.Writer, c.Request, func(peer *realtime.Peer, frame realtime.Frame) {
		switch frame.Type() {
		case realtime.FramePing:
			peer.Send(map[string]any{"type": realtime.FramePong})
		case realtime.FramePong:
		default:
			peer.Send(map[string]any{"type": realtime.FrameError, "message": "notification feed is read-only"})
		}
	})
}
