package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"nexuschat/internal/domain/user"
	"nexuschat/internal/repository"
	"nexuschat/internal/vitrocad"
	nexus_errors "nexuschat/pkg/errors"
	"nexuschat/pkg/logger"
)

// UserSync mirrors VitroCAD accounts into the local users table. Local rows
// are keyed on the immutable VitroCAD id; profile fields are refreshed on
// every sync.
type UserSync struct {
	userRepo repository.UserRepository
	provider vitrocad.API
	logger   *logger.Logger
}

func NewUserSync(userRepo repository.UserRepository, provider vitrocad.API, log *logger.Logger) *UserSync {
	return &UserSync{userRepo: userRepo, provider: provider, logger: log}
}

// UpsertAccount creates or refreshes the local mirror of a VitroCAD account.
// A concurrent create losing the unique-index race falls back to the
// existing row.
func (s *UserSync) UpsertAccount(ctx context.Context, acc *vitrocad.Account) (user.User, error) {
	if acc == nil || acc.ID == "" {
		return user.User{}, nexus_errors.ErrInvalidInput
	}

	existing, err := s.userRepo.GetByVitroCADID(ctx, acc.ID)
	if err == nil {
		existing.Name = acc.Name()
		if email := acc.Email(); email != "" {
			existing.Email = email
		}
		if acc.Login != "" {
			existing.Login = acc.Login
		}
		if avatar := acc.Avatar(); avatar != "" {
			existing.Avatar = avatar
		}
		if len(acc.GroupList) > 0 {
			existing.GroupList = acc.GroupIDs()
		}
		existing.IsAdmin = acc.IsAdmin
		existing.IsActive = acc.Active()
		if err := s.userRepo.Update(ctx, existing); err != nil {
			return user.User{}, err
		}
		return existing, nil
	}
	if !errors.Is(err, nexus_errors.ErrNotFound) {
		return user.User{}, err
	}

	newUser := &user.User{
		ID:                   uuid.New(),
		VitroCADID:           acc.ID,
		Name:                 acc.Name(),
		Email:                acc.Email(),
		Login:                acc.Login,
		Avatar:               acc.Avatar(),
		Status:               user.StatusOffline,
		LastSeen:             time.Now(),
		GroupList:            acc.GroupIDs(),
		NotificationsEnabled: true,
		SoundEnabled:         true,
		Theme:                "light",
		IsAdmin:              acc.IsAdmin,
		IsActive:             acc.Active(),
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, nexus_errors.ErrAlreadyExists) {
			return s.userRepo.GetByVitroCADID(ctx, acc.ID)
		}
		return user.User{}, err
	}
	return *newUser, nil
}

// EnsureByVitroCADID returns the local user for a VitroCAD principal,
// creating a placeholder row when the provider cannot describe it. The
// placeholder keeps reconciliation moving; a later login refreshes it.
func (s *UserSync) EnsureByVitroCADID(ctx context.Context, token, vitrocadID string) (user.User, error) {
	if vitrocadID == "" {
		return user.User{}, nexus_errors.ErrInvalidInput
	}

	existing, err := s.userRepo.GetByVitroCADID(ctx, vitrocadID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, nexus_errors.ErrNotFound) {
		return user.User{}, err
	}

	acc := s.describePrincipal(ctx, token, vitrocadID)
	return s.UpsertAccount(ctx, acc)
}

func (s *UserSync) describePrincipal(ctx context.Context, token, vitrocadID string) *vitrocad.Account {
	if token != "" {
		if item, err := s.provider.GetItem(ctx, token, vitrocadID); err == nil {
			return &vitrocad.Account{ID: vitrocadID, FieldValueMap: item.FieldValueMap}
		} else {
			s.logger.Warnf("principal lookup failed for %s: %v", vitrocadID, err)
		}
	}
	return &vitrocad.Account{
		ID:            vitrocadID,
		FieldValueMap: map[string]string{"NAME": placeholderName(vitrocadID)},
	}
}

func placeholderName(vitrocadID string) string {
	short := vitrocadID
	if len(short) > 8 {
		short = short[:8]
	}
	return "User " + short
}
