package repository

import (
	"context"
	"errors"
	"time"

	"nexuschat/internal/domain/user"
	nexus_errors "nexuschat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	res := r.db.WithContext(ctx).Create(u)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nexus_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, nexus_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByVitroCADID(ctx context.Context, vitrocadID string) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).
		Where("vitro_cad_id = ?", vitrocadID).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, nexus_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, u user.User) error {
	res := r.db.WithContext(ctx).Save(&u)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nexus_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&user.User{}).
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

func (r *PostgresUserRepository) UpdateStatus(ctx context.Context, userID uuid.UUID, status string, lastSeen time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&user.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"status":    status,
			"last_seen": lastSeen,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nexus_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) UpdateSettings(ctx context.Context, userID uuid.UUID, notifications, sound *bool, theme *string) error {
	updates := map[string]interface{}{}
	if notifications != nil {
		updates["notifications_enabled"] = *notifications
	}
	if sound != nil {
		updates["sound_enabled"] = *sound
	}
	if theme != nil {
		updates["theme"] = *theme
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&user.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nexus_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) SearchActive(ctx context.Context, query string, limit int) ([]user.User, error) {
	var users []user.User
	pattern := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Where("is_active = true").
		Where("name ILIKE ? OR email ILIKE ? OR login ILIKE ?", pattern, pattern, pattern).
		Order("name ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
