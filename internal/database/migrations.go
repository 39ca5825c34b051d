package database

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/tidylink/internal/models"
)

// Fixed identifiers of the seeded demo data.
const (
	SeedEmployerID = "8f0c6a52-0d1e-4c59-9d0a-5c1f7e0b1a01"
	SeedCleanerID  = "8f0c6a52-0d1e-4c59-9d0a-5c1f7e0b1a02"
	SeedChatID     = "8f0c6a52-0d1e-4c59-9d0a-5c1f7e0b1a10"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.Message{},
		&models.Notification{},
	)
}

// SeedData inserts a demo employer, cleaner, chat and a set of notifications in
// the different shapes producers actually send. It is idempotent.
func SeedData(db *gorm.DB) error {
	users := []models.User{
		{BaseModel: models.BaseModel{ID: SeedEmployerID}, Name: "Ana Employer", Role: models.RoleEmployer},
		{BaseModel: models.BaseModel{ID: SeedCleanerID}, Name: "Ben Cleaner", Role: models.RoleCleaner},
	}
	for _, user := range users {
		if err := db.Where(models.User{BaseModel: models.BaseModel{ID: user.ID}}).Attrs(user).FirstOrCreate(&models.User{}).Error; err != nil {
			return fmt.Errorf("seed user %s: %w", user.ID, err)
		}
	}

	chat := models.Chat{
		BaseModel:  models.BaseModel{ID: SeedChatID},
		Title:      "Deep clean, 3 bedroom flat",
		EmployerID: SeedEmployerID,
		CleanerID:  SeedCleanerID,
	}
	var chatCount int64
	if err := db.Model(&models.Chat{}).Where("id = ?", chat.ID).Count(&chatCount).Error; err != nil {
		return err
	}
	if chatCount > 0 {
		return nil
	}
	if err := db.Create(&chat).Error; err != nil {
		return fmt.Errorf("seed chat: %w", err)
	}

	messages := []models.Message{
		{ChatID: SeedChatID, SenderID: SeedEmployerID, SenderRole: models.RoleEmployer, SenderName: "Ana Employer", Content: "Hi Ben, are you free on Saturday?"},
		{ChatID: SeedChatID, SenderID: SeedCleanerID, SenderRole: models.RoleCleaner, SenderName: "Ben Cleaner", Content: "Yes, from 9am."},
	}
	if err := db.Create(&messages).Error; err != nil {
		return fmt.Errorf("seed messages: %w", err)
	}

	payloads := []map[string]any{
		{"type": "alert", "target": map[string]any{"type": "chat", "id": SeedChatID}, "actor_name": "Ana Employer", "message": "Hi Ben, are you free on Saturday?"},
		{"verb": "Ana Employer sent you a message", "chat_id": SeedChatID},
		{"kind": "booking", "event": "created", "actor": map[string]any{"name": "Ana Employer"}, "target_title": "Deep clean"},
		{"category": "booking", "booking_status": "paid", "job_title": "Deep clean"},
		{"title": "Booking confirmed", "status": "confirmed", "booking_id": 42},
		{"type": "job", "title": "Office cleaning", "job_id": 7},
		{"type": "system", "title": "Welcome to the marketplace", "body": "Complete your profile to get more bookings."},
	}
	for _, payload := range payloads {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		n := models.Notification{UserID: SeedCleanerID, Payload: datatypes.JSON(raw)}
		if err := db.Create(&n).Error; err != nil {
			return fmt.Errorf("seed notification: %w", err)
		}
	}

	return nil
}
