// Package notify normalises heterogeneous backend notification payloads into one
// canonical record. Classification is pure: no I/O, no shared state, no panics.
package notify

import "time"

// Category is the normalised notification category.
type Category string

const (
	CategoryJob     Category = "job"
	CategoryMessage Category = "message"
	CategoryBooking Category = "booking"
	CategoryAlert   Category = "alert"
)

// Categories lists every valid category.
var Categories = []Category{CategoryJob, CategoryMessage, CategoryBooking, CategoryAlert}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryJob, CategoryMessage, CategoryBooking, CategoryAlert:
		return true
	}
	return false
}

// Label returns the title-case label shown next to a notification.
func (c Category) Label() string {
	switch c {
	case CategoryJob:
		return "Job"
	case CategoryMessage:
		return "Message"
	case CategoryBooking:
		return "Booking"
	}
	return "Alert"
}

// Target points from a notification to the job, booking or chat it concerns.
type Target struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Notification is the canonical notification record.
type Notification struct {
	ID           string         `json:"id"`
	Category     Category       `json:"category"`
	Type         string         `json:"type"`
	TypeRaw      string         `json:"type_raw"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	CreatedAt    time.Time      `json:"created_at"`
	CreatedAtRaw string         `json:"created_at_raw,omitempty"`
	IsRead       bool           `json:"is_read"`
	Target       *Target        `json:"target,omitempty"`
	ActorName    string         `json:"actor_name,omitempty"`
	TargetTitle  string         `json:"target_title,omitempty"`
	MessageID    string         `json:"message_id,omitempty"`
	Icon         string         `json:"icon"`
	IconColor    string         `json:"icon_color"`
	IconBg       string         `json:"icon_bg"`
	Raw          map[string]any `json:"-"`
}

// Icon bundles the presentation hints of a category.
type Icon struct {
	Name  string
	Color string
	Bg    string
}

var icons = map[Category]Icon{
	CategoryJob:     {Name: "la-briefcase", Color: "#2e7d32", Bg: "#e8f5e9"},
	CategoryMessage: {Name: "la-comments", Color: "#ff9800", Bg: "#fff3e0"},
	CategoryBooking: {Name: "la-calendar-check", Color: "#1967d2", Bg: "#e8f0ff"},
	CategoryAlert:   {Name: "la-bell", Color: "#1967d2", Bg: "#f0f5ff"},
}

// IconFor returns the fixed presentation hints of a category. Unknown categories
// get the alert icon.
func IconFor(c Category) Icon {
	if icon, ok := icons[c]; ok {
		return icon
	}
	return icons[CategoryAlert]
}
