package user

import (
	"time"

	"github.com/google/uuid"
)

// Presence statuses
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

// ValidStatus reports whether s is a known presence status.
func ValidStatus(s string) bool {
	return s == StatusOnline || s == StatusAway || s == StatusOffline
}

// User represents the users table. Identity originates in VitroCAD; the local
// row is an upserted mirror keyed on VitroCADID. Users are never hard-deleted,
// only deactivated.
type User struct {
	ID         uuid.UUID
	VitroCADID string // unique external identity id
	Name       string
	Email      string
	Login      string
	Avatar     string
	Status     string // online, away, offline
	LastSeen   time.Time
	GroupList  string // JSON array of VitroCAD group ids

	// Settings
	NotificationsEnabled bool
	SoundEnabled         bool
	Theme                string // light, dark

	IsAdmin   bool
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}
