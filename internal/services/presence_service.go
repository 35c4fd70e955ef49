package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nexuschat/internal/domain/user"
	"nexuschat/internal/redis"
	"nexuschat/internal/repository"
	nexus_errors "nexuschat/pkg/errors"
	"nexuschat/pkg/logger"
)

// PresenceService tracks who is online and who is typing. Presence changes
// are broadcast to every connected client; a user's status is global, not
// per chat. The database keeps the durable status and last-seen timestamp,
// Redis keeps the TTL-guarded advisory copy.
type PresenceService struct {
	userRepo repository.UserRepository
	chatRepo repository.ChatRepository
	store    *redis.PresenceStore
	notifier Notifier
	logger   *logger.Logger
}

func NewPresenceService(userRepo repository.UserRepository, chatRepo repository.ChatRepository, store *redis.PresenceStore, notifier Notifier, log *logger.Logger) *PresenceService {
	return &PresenceService{
		userRepo: userRepo,
		chatRepo: chatRepo,
		store:    store,
		notifier: notifier,
		logger:   log,
	}
}

// Connected marks a user online when their first connection registers.
func (s *PresenceService) Connected(ctx context.Context, userID uuid.UUID) {
	s.setStatus(ctx, userID, user.StatusOnline)
}

// Disconnected marks a user offline once their last connection drops.
func (s *PresenceService) Disconnected(ctx context.Context, userID uuid.UUID) {
	s.setStatus(ctx, userID, user.StatusOffline)
}

// UpdateStatus applies a user-chosen status.
func (s *PresenceService) UpdateStatus(ctx context.Context, userID uuid.UUID, status string) error {
	if !user.ValidStatus(status) {
		return fmt.Errorf("%w: unknown status %q", nexus_errors.ErrInvalidInput, status)
	}
	s.setStatus(ctx, userID, status)
	return nil
}

func (s *PresenceService) setStatus(ctx context.Context, userID uuid.UUID, status string) {
	now := time.Now()
	if err := s.userRepo.UpdateStatus(ctx, userID, status, now); err != nil {
		s.logger.Warnf("status persist failed for %s: %v", userID, err)
	}
	if s.store != nil {
		if err := s.store.SetStatus(ctx, userID.String(), status); err != nil {
			s.logger.Warnf("presence cache update failed for %s: %v", userID, err)
		}
	}
	// The affected user's own connections already know; everyone else hears
	// about the change.
	s.notifier.BroadcastExcept(userID, EventUserStatusChanged, map[string]any{
		"user_id":   userID,
		"status":    status,
		"last_seen": now,
	})
}

// Typing starts or stops a typing indicator in a chat. Only members may
// signal; the event goes to everyone else in the room.
func (s *PresenceService) Typing(ctx context.Context, userID, chatID uuid.UUID, started bool) error {
	ok, err := s.chatRepo.IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return nexus_errors.ErrForbidden
	}

	if s.store != nil {
		var cacheErr error
		if started {
			cacheErr = s.store.SetTyping(ctx, chatID.String(), userID.String())
		} else {
			cacheErr = s.store.ClearTyping(ctx, chatID.String(), userID.String())
		}
		if cacheErr != nil {
			s.logger.Warnf("typing cache update failed for %s: %v", chatID, cacheErr)
		}
	}

	event := EventUserTyping
	if !started {
		event = EventUserStoppedTyping
	}
	name := ""
	if u, err := s.userRepo.GetByID(ctx, userID); err == nil {
		name = u.Name
	}
	s.notifier.ToChatExcept(chatID, userID, event, map[string]any{
		"chat_id":   chatID,
		"user_id":   userID,
		"user_name": name,
	})
	return nil
}

// OnlineUsers returns the ids of currently online users from the cache.
func (s *PresenceService) OnlineUsers(ctx context.Context) ([]string, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.GetOnlineUsers(ctx)
}

// TypingUsers returns the ids currently typing in a chat. The viewer must
// be a member; without the cache the roster is empty.
func (s *PresenceService) TypingUsers(ctx context.Context, viewerID, chatID uuid.UUID) ([]string, error) {
	ok, err := s.chatRepo.IsMember(ctx, chatID, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nexus_errors.ErrForbidden
	}
	if s.store == nil {
		return nil, nil
	}
	return s.store.TypingUsers(ctx, chatID.String())
}

// Heartbeat refreshes the cached presence TTL for a connected user.
func (s *PresenceService) Heartbeat(ctx context.Context, userID uuid.UUID) {
	if s.store == nil {
		return
	}
	if err := s.store.Heartbeat(ctx, userID.String()); err != nil {
		s.logger.Warnf("presence heartbeat failed for %s: %v", userID, err)
	}
}

// PresenceInfo is one user's presence as reported to clients.
type PresenceInfo struct {
	UserID   uuid.UUID `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// Status returns a user's presence, preferring the TTL-guarded cache and
// falling back to the durable copy on a miss.
func (s *PresenceService) Status(ctx context.Context, userID uuid.UUID) (PresenceInfo, error) {
	if s.store != nil {
		if rec, err := s.store.GetStatus(ctx, userID.String()); err == nil && !rec.LastSeen.IsZero() {
			return PresenceInfo{UserID: userID, Status: rec.Status, LastSeen: rec.LastSeen}, nil
		}
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return PresenceInfo{}, err
	}
	return PresenceInfo{UserID: userID, Status: u.Status, LastSeen: u.LastSeen}, nil
}
