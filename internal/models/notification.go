package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app notification for a user. Payload keeps the
// free-form body exactly as the producer wrote it; list responses merge it with
// the id, read flag and timestamp.
type Notification struct {
	BaseModel

	UserID  string         `gorm:"type:uuid;index;not null" json:"user_id"`
	Payload datatypes.JSON `json:"payload"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
