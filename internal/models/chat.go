package models

import "time"

// Chat is a conversation between one employer and one cleaner.
type Chat struct {
	BaseModel

	Title      string `gorm:"type:varchar(255)" json:"title"`
	EmployerID string `gorm:"type:uuid;index;not null" json:"employer_id"`
	CleanerID  string `gorm:"type:uuid;index;not null" json:"cleaner_id"`
	Employer   *User  `gorm:"foreignKey:EmployerID" json:"employer,omitempty"`
	Cleaner    *User  `gorm:"foreignKey:CleanerID" json:"cleaner,omitempty"`
}

// HasParticipant reports whether userID belongs to the chat.
func (c *Chat) HasParticipant(userID string) bool {
	return userID != "" && (c.EmployerID == userID || c.CleanerID == userID)
}

// Message is a single chat message.
type Message struct {
	BaseModel

	ChatID     string     `gorm:"type:uuid;index;not null" json:"chat"`
	SenderID   string     `gorm:"type:uuid;index;not null" json:"sender_id"`
	SenderRole string     `gorm:"type:varchar(16);not null" json:"sender_role"`
	SenderName string     `gorm:"type:varchar(255)" json:"sender_name"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	IsRead     bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}
