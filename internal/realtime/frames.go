package realtime

import (
	"math"
	"strconv"
	"strings"
)

// Frame types exchanged on a chat socket.
const (
	FrameMessage     = "message"
	FrameChatMessage = "chat_message"
	FrameNewMessage  = "new_message"
	FrameTyping      = "typing"
	FrameRead        = "read"
	FrameStatus      = "status"
	FrameError       = "error"
	FrameConnected   = "connected"
	FrameConnection  = "connection"
	FramePing        = "ping"
	FramePong        = "pong"
)

// Frame is a decoded inbound JSON frame.
type Frame map[string]any

// Type returns the normalised frame type; frames without one are messages.
func (f Frame) Type() string {
	t, _ := f["type"].(string)
	return strings.ToLower(strings.TrimSpace(t))
}

// String returns the first non-empty scalar found under the keys.
func (f Frame) String(keys ...string) string {
	for _, key := range keys {
		switch v := f[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v == math.Trunc(v) {
				return strconv.FormatInt(int64(v), 10)
			}
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// LastReadID extracts the id carried by a read receipt.
func (f Frame) LastReadID() string {
	return f.String("last_read_message_id", "last_read_id", "message_id", "id")
}

// MessageFrame is sent to post a chat message.
type MessageFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TypingFrame toggles the typing indicator.
type TypingFrame struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// ReadFrame acknowledges every message up to LastReadMessageID.
type ReadFrame struct {
	Type              string `json:"type"`
	LastReadMessageID string `json:"last_read_message_id"`
}
