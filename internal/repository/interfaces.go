package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nexuschat/internal/domain/chat"
	"nexuschat/internal/domain/message"
	"nexuschat/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByVitroCADID(ctx context.Context, vitrocadID string) (user.User, error)
	Update(ctx context.Context, u user.User) error
	Deactivate(ctx context.Context, id uuid.UUID) error

	UpdateStatus(ctx context.Context, userID uuid.UUID, status string, lastSeen time.Time) error
	UpdateSettings(ctx context.Context, userID uuid.UUID, notifications, sound *bool, theme *string) error
	SearchActive(ctx context.Context, query string, limit int) ([]user.User, error)
}

type ChatRepository interface {
	Create(ctx context.Context, c *chat.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (chat.Conversation, error)
	GetActiveByFileID(ctx context.Context, fileID string) (chat.Conversation, error)
	Update(ctx context.Context, c chat.Conversation) error
	Archive(ctx context.Context, id uuid.UUID) error

	GetUserChats(ctx context.Context, userID uuid.UUID) ([]chat.Conversation, error)
	UpdateLastMessage(ctx context.Context, chatID, messageID uuid.UUID) error

	AddMember(ctx context.Context, m *chat.Member) error
	RemoveMember(ctx context.Context, chatID, userID uuid.UUID) error
	GetMember(ctx context.Context, chatID, userID uuid.UUID) (chat.Member, error)
	IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
	UpdateMemberLastRead(ctx context.Context, chatID, userID, messageID uuid.UUID) error
	MemberUserIDs(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	Update(ctx context.Context, m message.Message) error

	// GetChatMessages returns undeleted messages in chronological order.
	GetChatMessages(ctx context.Context, chatID uuid.UUID, page, limit int) ([]message.Message, error)
	// GetChatMessagesWithDeleted includes soft-deleted rows (admin path).
	GetChatMessagesWithDeleted(ctx context.Context, chatID uuid.UUID, page, limit int) ([]message.Message, error)

	SoftDelete(ctx context.Context, messageID, actorID uuid.UUID) error

	// MarkChatRead appends a receipt for every undeleted message in chatID not
	// sent by userID and not already receipted; returns the number appended.
	MarkChatRead(ctx context.Context, chatID, userID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, chatID, userID uuid.UUID) (int64, error)
	GetLatest(ctx context.Context, chatID uuid.UUID) (message.Message, error)
}
