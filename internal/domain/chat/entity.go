package chat

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Conversation types
const (
	TypeFile   = "FILE"
	TypeGroup  = "GROUP"
	TypeDirect = "DIRECT"
)

// Member roles
const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// Conversation represents the chats table. A FILE conversation is bound to a
// VitroCAD document; at most one active FILE conversation may exist per file
// id (enforced by a partial unique index, see migrations).
type Conversation struct {
	ID          uuid.UUID
	Name        string
	Type        string // FILE, GROUP, DIRECT
	Description string
	CreatorID   uuid.UUID

	// VitroCAD file binding (FILE conversations only)
	FileID   sql.NullString
	FileName sql.NullString
	ListID   sql.NullString
	ParentID sql.NullString

	// Settings
	IsPrivate        bool
	AllowFileSharing bool
	MaxMembers       int

	LastMessageID uuid.NullUUID
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Relationships
	Members []Member `gorm:"foreignKey:ConversationID"`
}

// Member represents the chat_members table. PK (conversation_id, user_id).
type Member struct {
	ConversationID    uuid.UUID `gorm:"primaryKey"`
	UserID            uuid.UUID `gorm:"primaryKey"`
	Role              string    // ADMIN, MEMBER
	JoinedAt          time.Time
	LastReadMessageID uuid.NullUUID
}

func (Conversation) TableName() string {
	return "chats"
}

func (Member) TableName() string {
	return "chat_members"
}

// MemberRole returns the role of userID in c, or "" when not a member.
func (c *Conversation) MemberRole(userID uuid.UUID) string {
	for _, m := range c.Members {
		if m.UserID == userID {
			return m.Role
		}
	}
	return ""
}

// IsMember reports whether userID participates in c. Membership is keyed
// on the user id alone; the role may be empty.
func (c *Conversation) IsMember(userID uuid.UUID) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
