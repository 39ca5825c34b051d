package chat

import "time"

// SenderRole identifies which side of the marketplace wrote a message.
type SenderRole string

const (
	RoleEmployer SenderRole = "employer"
	RoleCleaner  SenderRole = "cleaner"
)

// Code returns the single-letter role code used by the marketplace API.
func (r SenderRole) Code() string {
	if r == RoleEmployer {
		return "e"
	}
	return "c"
}

// Message is a single chat message in canonical form.
type Message struct {
	ID         string     `json:"id"`
	ChatID     string     `json:"chat"`
	Content    string     `json:"content"`
	SenderRole SenderRole `json:"sender_role"`
	SenderID   string     `json:"sender_id,omitempty"`
	SenderName string     `json:"sender_name,omitempty"`
	SentAt     time.Time  `json:"sent_at"`
	SentAtRaw  string     `json:"-"`
	IsRead     bool       `json:"is_read"`
}
