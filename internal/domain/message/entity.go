package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Message types
const (
	TypeText   = "TEXT"
	TypeFile   = "FILE"
	TypeImage  = "IMAGE"
	TypeSystem = "SYSTEM"
)

// Delivery statuses (coarse, derived)
const (
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
	StatusRead      = "READ"
)

// MaxTextLength bounds the text body of a message.
const MaxTextLength = 4000

// Message represents the messages table. Messages are never hard-deleted;
// deletion and edits are content-preserving flags.
type Message struct {
	ID       uuid.UUID
	ChatID   uuid.UUID
	SenderID uuid.UUID
	Type     string // TEXT, FILE, IMAGE, SYSTEM
	Text     sql.NullString

	// File descriptor (FILE/IMAGE messages)
	FileOriginalName sql.NullString
	FileObjectKey    sql.NullString
	FileSize         sql.NullInt64
	FileMimeType     sql.NullString

	// SystemPayload holds the serialized SystemEvent (SYSTEM messages).
	SystemPayload sql.NullString

	ReplyToID uuid.NullUUID
	Status    string // SENT, DELIVERED, READ

	// Edit record: only the immediately-prior text is retained.
	IsEdited  bool
	EditedAt  sql.NullTime
	PriorText sql.NullString

	// Soft-delete record
	IsDeleted bool
	DeletedAt sql.NullTime
	DeletedBy uuid.NullUUID

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	ReadBy []ReadReceipt `gorm:"foreignKey:MessageID"`
}

// ReadReceipt represents the message_read_receipts table. At most one receipt
// per (message, user); the sender is never implicitly included.
type ReadReceipt struct {
	MessageID uuid.UUID `gorm:"primaryKey"`
	UserID    uuid.UUID `gorm:"primaryKey"`
	ReadAt    time.Time
}

func (Message) TableName() string {
	return "messages"
}

func (ReadReceipt) TableName() string {
	return "message_read_receipts"
}

// IsReadBy reports whether userID has acknowledged m.
func (m *Message) IsReadBy(userID uuid.UUID) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
