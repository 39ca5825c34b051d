// Package chat converts server chat payloads, from REST lists and socket frames
// alike, into canonical messages.
package chat

import (
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"

	"github.com/charlesng35/tidylink/internal/notify"
)

// wireMessage lists every field alias seen on the wire. Decoding is weakly typed so
// numeric ids arrive as strings.
type wireMessage struct {
	ID           string `mapstructure:"id"`
	PK           string `mapstructure:"pk"`
	MessageID    string `mapstructure:"message_id"`
	Content      string `mapstructure:"content"`
	Message      string `mapstructure:"message"`
	Text         string `mapstructure:"text"`
	SentAt       string `mapstructure:"sent_at"`
	CreatedAt    string `mapstructure:"created_at"`
	Timestamp    string `mapstructure:"timestamp"`
	Time         string `mapstructure:"time"`
	SenderID     string `mapstructure:"sender_id"`
	SenderUserID string `mapstructure:"sender_user_id"`
	SenderRole   string `mapstructure:"sender_role"`
	SenderRoleJS string `mapstructure:"senderRole"`
	Role         string `mapstructure:"role"`
	SenderName   string `mapstructure:"sender_name"`
	SenderNameJS string `mapstructure:"senderName"`
	Sender       any    `mapstructure:"sender"`
	IsRead       any    `mapstructure:"is_read"`
}

// dropComposite turns objects and arrays aimed at string fields into empty strings
// instead of failing the whole decode.
func dropComposite(from, to reflect.Kind, data any) (any, error) {
	if to != reflect.String {
		return data, nil
	}
	switch from {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return "", nil
	}
	return data, nil
}

func decodeWire(payload map[string]any) (wireMessage, error) {
	var wire wireMessage
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncKind(dropComposite),
		WeaklyTypedInput: true,
		Result:           &wire,
	})
	if err != nil {
		return wire, err
	}
	return wire, decoder.Decode(payload)
}

// Normalize converts a payload into a Message for chatID. The message may be nested
// under a "message" object. Payloads without content are rejected; payloads without
// an id get a random UUID so they can still be deduplicated by identity.
func Normalize(chatID string, payload map[string]any) (Message, bool) {
	if payload == nil {
		return Message{}, false
	}
	if nested, ok := payload["message"].(map[string]any); ok {
		payload = nested
	}

	wire, err := decodeWire(payload)
	if err != nil {
		return Message{}, false
	}

	content := strings.TrimSpace(first(wire.Content, wire.Message, wire.Text))
	if content == "" {
		return Message{}, false
	}

	sender, _ := wire.Sender.(map[string]any)
	id := first(wire.ID, wire.PK, wire.MessageID)
	if id == "" {
		id = uuid.NewString()
	}
	sentRaw := first(wire.SentAt, wire.CreatedAt, wire.Timestamp, wire.Time)
	isRead, _ := wire.IsRead.(bool)

	return Message{
		ID:         id,
		ChatID:     chatID,
		Content:    content,
		SenderRole: ParseRole(first(wire.SenderRole, wire.SenderRoleJS, wire.Role), wire.Sender),
		SenderID:   first(wire.SenderID, wire.SenderUserID, nestedString(sender, "id"), nestedString(nestedMap(sender, "user"), "id")),
		SenderName: first(wire.SenderName, wire.SenderNameJS, nestedString(sender, "name")),
		SentAt:     notify.ParseTime(sentRaw),
		SentAtRaw:  sentRaw,
		IsRead:     isRead,
	}, true
}

// NormalizeAll normalises a list, skipping rejected items and preserving order.
func NormalizeAll(chatID string, items []map[string]any) []Message {
	out := make([]Message, 0, len(items))
	for _, item := range items {
		if msg, ok := Normalize(chatID, item); ok {
			out = append(out, msg)
		}
	}
	return out
}

// ParseRole maps the wire role to a SenderRole. "employer" or the "e" sender code
// mean employer; anything else is the cleaner.
func ParseRole(role string, sender any) SenderRole {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "employer", "e":
		return RoleEmployer
	case "cleaner", "c":
		return RoleCleaner
	}
	if code, ok := sender.(string); ok && strings.EqualFold(code, "e") {
		return RoleEmployer
	}
	return RoleCleaner
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nestedMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	nested, _ := m[key].(map[string]any)
	return nested
}

func nestedString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	var out string
	if err := mapstructure.WeakDecode(m[key], &out); err != nil {
		return ""
	}
	return out
}
