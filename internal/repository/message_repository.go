package repository

import (
	"context"
	"errors"
	"time"

	"nexuschat/internal/domain/message"
	nexus_errors "nexuschat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nexus_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Preload("ReadBy").
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, nexus_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) Update(ctx context.Context, m message.Message) error {
	res := r.db.WithContext(ctx).Omit("ReadBy").Save(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nexus_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) GetChatMessages(ctx context.Context, chatID uuid.UUID, page, limit int) ([]message.Message, error) {
	return r.getChatMessages(ctx, chatID, page, limit, false)
}

func (r *PostgresMessageRepository) GetChatMessagesWithDeleted(ctx context.Context, chatID uuid.UUID, page, limit int) ([]message.Message, error) {
	return r.getChatMessages(ctx, chatID, page, limit, true)
}

func (r *PostgresMessageRepository) getChatMessages(ctx context.Context, chatID uuid.UUID, page, limit int, includeDeleted bool) ([]message.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	q := r.db.WithContext(ctx).
		Preload("ReadBy").
		Where("chat_id = ?", chatID)
	if !includeDeleted {
		q = q.Where("is_deleted = false")
	}

	var messages []message.Message
	err := q.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Pages are fetched newest-first; callers expect chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, messageID, actorID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND is_deleted = false", messageID).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": time.Now(),
			"deleted_by": actorID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nexus_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) MarkChatRead(ctx context.Context, chatID, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		INSERT INTO message_read_receipts (message_id, user_id, read_at)
		SELECT m.id, ?, NOW()
		FROM messages m
		WHERE m.chat_id = ?
		  AND m.sender_id <> ?
		  AND m.is_deleted = false
		  AND NOT EXISTS (
			SELECT 1 FROM message_read_receipts r
			WHERE r.message_id = m.id AND r.user_id = ?
		  )`, userID, chatID, userID, userID)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresMessageRepository) UnreadCount(ctx context.Context, chatID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("chat_id = ? AND sender_id <> ? AND is_deleted = false", chatID, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_read_receipts r WHERE r.message_id = messages.id AND r.user_id = ?)", userID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostgresMessageRepository) GetLatest(ctx context.Context, chatID uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND is_deleted = false", chatID).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, nexus_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}
