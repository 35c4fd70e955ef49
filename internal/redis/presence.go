package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus is the cached presence record for one user.
type PresenceStatus struct {
	UserID   string    `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceStore keeps advisory presence and typing state in Redis with a
// TTL, so a crashed server node never leaves users permanently online.
// The in-process hub remains the source of truth for fan-out.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

const (
	presenceKeyPrefix = "presence:"
	presenceOnlineSet = "presence:online"
	typingKeyPrefix   = "typing:"

	typingTTL = 10 * time.Second
)

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{client: client, ttl: ttl}
}

// SetStatus records a user's presence. An offline status removes the user
// from the online set; anything else refreshes the TTL.
func (p *PresenceStore) SetStatus(ctx context.Context, userID, status string) error {
	now := time.Now()
	record := PresenceStatus{UserID: userID, Status: status, LastSeen: now}
	data, _ := json.Marshal(record)

	pipe := p.client.Pipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, data, p.ttl)
	if status == "offline" {
		pipe.SRem(ctx, presenceOnlineSet, userID)
	} else {
		pipe.SAdd(ctx, presenceOnlineSet, userID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Heartbeat refreshes the TTL without changing the stored status.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID string) error {
	return p.client.Expire(ctx, presenceKeyPrefix+userID, p.ttl).Err()
}

// GetStatus returns the cached presence record, defaulting to offline when
// the key expired or never existed.
func (p *PresenceStore) GetStatus(ctx context.Context, userID string) (*PresenceStatus, error) {
	data, err := p.client.Get(ctx, presenceKeyPrefix+userID).Result()
	if err == goredis.Nil {
		return &PresenceStatus{UserID: userID, Status: "offline"}, nil
	}
	if err != nil {
		return nil, err
	}
	var record PresenceStatus
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetOnlineUsers returns the ids currently in the online set.
func (p *PresenceStore) GetOnlineUsers(ctx context.Context) ([]string, error) {
	return p.client.SMembers(ctx, presenceOnlineSet).Result()
}

// SetTyping marks a user as typing in a chat. The key expires on its own if
// the client never sends a stop event.
func (p *PresenceStore) SetTyping(ctx context.Context, chatID, userID string) error {
	pipe := p.client.Pipeline()
	pipe.SAdd(ctx, typingKeyPrefix+chatID, userID)
	pipe.Expire(ctx, typingKeyPrefix+chatID, typingTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// ClearTyping removes a user's typing marker for a chat.
func (p *PresenceStore) ClearTyping(ctx context.Context, chatID, userID string) error {
	return p.client.SRem(ctx, typingKeyPrefix+chatID, userID).Err()
}

// TypingUsers returns ids currently typing in a chat.
func (p *PresenceStore) TypingUsers(ctx context.Context, chatID string) ([]string, error) {
	return p.client.SMembers(ctx, typingKeyPrefix+chatID).Result()
}
