package models

// Marketplace roles.
const (
	RoleEmployer = "employer"
	RoleCleaner  = "cleaner"
)

// User is a marketplace participant: an employer booking cleaners or a cleaner.
type User struct {
	BaseModel

	Name string `gorm:"type:varchar(255);not null" json:"name"`
	Role string `gorm:"type:varchar(16);not null;index" json:"role"`
}
