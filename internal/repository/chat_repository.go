package repository

import (
	"context"
	"errors"

	"nexuschat/internal/domain/chat"
	nexus_errors "nexuschat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &PostgresChatRepository{db: db}
}

func (r *PostgresChatRepository) Create(ctx context.Context, c *chat.Conversation) error {
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nexus_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresChatRepository) GetByID(ctx context.Context, id uuid.UUID) (chat.Conversation, error) {
	var c chat.Conversation
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Conversation{}, nexus_errors.ErrNotFound
		}
		return chat.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresChatRepository) GetActiveByFileID(ctx context.Context, fileID string) (chat.Conversation, error) {
	var c chat.Conversation
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("file_id = ? AND type = ? AND is_active = true", fileID, chat.TypeFile).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Conversation{}, nexus_errors.ErrNotFound
		}
		return chat.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresChatRepository) Update(ctx context.Context, c chat.Conversation) error {
	res := r.db.WithContext(ctx).Omit("Members").Save(&c)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nexus_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresChatRepository) Archive(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&chat.Conversation{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nexus_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresChatRepository) GetUserChats(ctx context.Context, userID uuid.UUID) ([]chat.Conversation, error) {
	var chats []chat.Conversation

	subQuery := r.db.Model(&chat.Member{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("id IN (?) AND is_active = true", subQuery).
		Order("updated_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *PostgresChatRepository) UpdateLastMessage(ctx context.Context, chatID, messageID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&chat.Conversation{}).
		Where("id = ?", chatID).
		Update("last_message_id", messageID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nexus_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresChatRepository) AddMember(ctx context.Context, m *chat.Member) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nexus_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresChatRepository) RemoveMember(ctx context.Context, chatID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Delete(&chat.Member{}, "conversation_id = ? AND user_id = ?", chatID, userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nexus_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresChatRepository) GetMember(ctx context.Context, chatID, userID uuid.UUID) (chat.Member, error) {
	var m chat.Member
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", chatID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Member{}, nexus_errors.ErrNotFound
		}
		return chat.Member{}, err
	}
	return m, nil
}

func (r *PostgresChatRepository) IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&chat.Member{}).
		Where("conversation_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresChatRepository) UpdateMemberLastRead(ctx context.Context, chatID, userID, messageID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&chat.Member{}).
		Where("conversation_id = ? AND user_id = ?", chatID, userID).
		Update("last_read_message_id", messageID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nexus_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresChatRepository) MemberUserIDs(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&chat.Member{}).
		Where("conversation_id = ?", chatID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
