package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nexuschat/internal/domain/chat"
	"nexuschat/internal/domain/message"
	"nexuschat/internal/domain/user"
	"nexuschat/internal/vitrocad"
	nexus_errors "nexuschat/pkg/errors"
)

// In-memory repository and provider fakes shared by the service tests.

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]user.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[uuid.UUID]user.User{}}
}

func (r *memUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.VitroCADID == u.VitroCADID {
			return nexus_errors.ErrAlreadyExists
		}
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.User{}, nexus_errors.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) GetByVitroCADID(_ context.Context, vitrocadID string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.VitroCADID == vitrocadID {
			return u, nil
		}
	}
	return user.User{}, nexus_errors.ErrNotFound
}

func (r *memUserRepo) Update(_ context.Context, u user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return nexus_errors.ErrNotFound
	}
	u.UpdatedAt = time.Now()
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nexus_errors.ErrNotFound
	}
	u.IsActive = false
	r.users[id] = u
	return nil
}

func (r *memUserRepo) UpdateStatus(_ context.Context, userID uuid.UUID, status string, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nexus_errors.ErrNotFound
	}
	u.Status = status
	u.LastSeen = lastSeen
	r.users[userID] = u
	return nil
}

func (r *memUserRepo) UpdateSettings(_ context.Context, userID uuid.UUID, notifications, sound *bool, theme *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nexus_errors.ErrNotFound
	}
	if notifications != nil {
		u.NotificationsEnabled = *notifications
	}
	if sound != nil {
		u.SoundEnabled = *sound
	}
	if theme != nil {
		u.Theme = *theme
	}
	r.users[userID] = u
	return nil
}

func (r *memUserRepo) SearchActive(_ context.Context, query string, limit int) ([]user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(query)
	var out []user.User
	for _, u := range r.users {
		if !u.IsActive {
			continue
		}
		if strings.Contains(strings.ToLower(u.Name), q) ||
			strings.Contains(strings.ToLower(u.Email), q) ||
			strings.Contains(strings.ToLower(u.Login), q) {
			out = append(out, u)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memChatRepo struct {
	mu    sync.Mutex
	chats map[uuid.UUID]chat.Conversation
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{chats: map[uuid.UUID]chat.Conversation{}}
}

func (r *memChatRepo) Create(_ context.Context, c *chat.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Type == chat.TypeFile && c.FileID.Valid {
		for _, existing := range r.chats {
			if existing.Type == chat.TypeFile && existing.IsActive &&
				existing.FileID.Valid && existing.FileID.String == c.FileID.String {
				return nexus_errors.ErrAlreadyExists
			}
		}
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.chats[c.ID] = cloneChat(*c)
	return nil
}

func (r *memChatRepo) GetByID(_ context.Context, id uuid.UUID) (chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return chat.Conversation{}, nexus_errors.ErrNotFound
	}
	return cloneChat(c), nil
}

func (r *memChatRepo) GetActiveByFileID(_ context.Context, fileID string) (chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chats {
		if c.Type == chat.TypeFile && c.IsActive && c.FileID.Valid && c.FileID.String == fileID {
			return cloneChat(c), nil
		}
	}
	return chat.Conversation{}, nexus_errors.ErrNotFound
}

func (r *memChatRepo) Update(_ context.Context, c chat.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.chats[c.ID]
	if !ok {
		return nexus_errors.ErrNotFound
	}
	// Members are managed through AddMember/RemoveMember.
	c.Members = existing.Members
	r.chats[c.ID] = cloneChat(c)
	return nil
}

func (r *memChatRepo) Archive(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return nexus_errors.ErrNotFound
	}
	c.IsActive = false
	r.chats[id] = c
	return nil
}

func (r *memChatRepo) GetUserChats(_ context.Context, userID uuid.UUID) ([]chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.Conversation
	for _, c := range r.chats {
		if !c.IsActive {
			continue
		}
		if c.IsMember(userID) {
			out = append(out, cloneChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memChatRepo) UpdateLastMessage(_ context.Context, chatID, messageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return nexus_errors.ErrNotFound
	}
	c.LastMessageID = uuid.NullUUID{UUID: messageID, Valid: true}
	r.chats[chatID] = c
	return nil
}

func (r *memChatRepo) AddMember(_ context.Context, m *chat.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[m.ConversationID]
	if !ok {
		return nexus_errors.ErrNotFound
	}
	for _, existing := range c.Members {
		if existing.UserID == m.UserID {
			return nexus_errors.ErrAlreadyExists
		}
	}
	c.Members = append(c.Members, *m)
	r.chats[m.ConversationID] = c
	return nil
}

func (r *memChatRepo) RemoveMember(_ context.Context, chatID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return nexus_errors.ErrNotFound
	}
	for i, m := range c.Members {
		if m.UserID == userID {
			c.Members = append(c.Members[:i], c.Members[i+1:]...)
			r.chats[chatID] = c
			return nil
		}
	}
	return nexus_errors.ErrNotFound
}

func (r *memChatRepo) GetMember(_ context.Context, chatID, userID uuid.UUID) (chat.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return chat.Member{}, nexus_errors.ErrNotFound
	}
	for _, m := range c.Members {
		if m.UserID == userID {
			return m, nil
		}
	}
	return chat.Member{}, nexus_errors.ErrNotFound
}

func (r *memChatRepo) IsMember(_ context.Context, chatID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return false, nil
	}
	return c.IsMember(userID), nil
}

func (r *memChatRepo) UpdateMemberLastRead(_ context.Context, chatID, userID, messageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return nexus_errors.ErrNotFound
	}
	for i, m := range c.Members {
		if m.UserID == userID {
			c.Members[i].LastReadMessageID = uuid.NullUUID{UUID: messageID, Valid: true}
			r.chats[chatID] = c
			return nil
		}
	}
	return nexus_errors.ErrNotFound
}

func (r *memChatRepo) MemberUserIDs(_ context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return nil, nexus_errors.ErrNotFound
	}
	ids := make([]uuid.UUID, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func cloneChat(c chat.Conversation) chat.Conversation {
	members := make([]chat.Member, len(c.Members))
	copy(members, c.Members)
	c.Members = members
	return c
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages map[uuid.UUID]message.Message
	receipts map[uuid.UUID]map[uuid.UUID]time.Time
	seq      int
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{
		messages: map[uuid.UUID]message.Message{},
		receipts: map[uuid.UUID]map[uuid.UUID]time.Time{},
	}
}

func (r *memMessageRepo) Create(_ context.Context, m *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	// Spread timestamps so ordering is deterministic.
	m.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	m.UpdatedAt = m.CreatedAt
	r.messages[m.ID] = *m
	return nil
}

func (r *memMessageRepo) GetByID(_ context.Context, id uuid.UUID) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return message.Message{}, nexus_errors.ErrNotFound
	}
	return m, nil
}

func (r *memMessageRepo) Update(_ context.Context, m message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[m.ID]; !ok {
		return nexus_errors.ErrNotFound
	}
	m.UpdatedAt = time.Now()
	r.messages[m.ID] = m
	return nil
}

func (r *memMessageRepo) GetChatMessages(ctx context.Context, chatID uuid.UUID, page, limit int) ([]message.Message, error) {
	return r.page(chatID, page, limit, false), nil
}

func (r *memMessageRepo) GetChatMessagesWithDeleted(ctx context.Context, chatID uuid.UUID, page, limit int) ([]message.Message, error) {
	return r.page(chatID, page, limit, true), nil
}

func (r *memMessageRepo) page(chatID uuid.UUID, page, limit int, includeDeleted bool) []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []message.Message
	for _, m := range r.messages {
		if m.ChatID != chatID {
			continue
		}
		if m.IsDeleted && !includeDeleted {
			continue
		}
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	// Newest page first, returned in chronological order.
	end := len(all) - (page-1)*limit
	if end <= 0 {
		return nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	return all[start:end]
}

func (r *memMessageRepo) SoftDelete(_ context.Context, messageID, actorID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok || m.IsDeleted {
		return nexus_errors.ErrNotFound
	}
	m.IsDeleted = true
	m.DeletedAt = toNullTime(time.Now())
	m.DeletedBy = uuid.NullUUID{UUID: actorID, Valid: true}
	r.messages[messageID] = m
	return nil
}

func (r *memMessageRepo) MarkChatRead(_ context.Context, chatID, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, m := range r.messages {
		if m.ChatID != chatID || m.SenderID == userID || m.IsDeleted {
			continue
		}
		if _, ok := r.receipts[id][userID]; ok {
			continue
		}
		if r.receipts[id] == nil {
			r.receipts[id] = map[uuid.UUID]time.Time{}
		}
		r.receipts[id][userID] = time.Now()
		count++
	}
	return count, nil
}

func (r *memMessageRepo) UnreadCount(_ context.Context, chatID, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, m := range r.messages {
		if m.ChatID != chatID || m.SenderID == userID || m.IsDeleted {
			continue
		}
		if _, ok := r.receipts[id][userID]; !ok {
			count++
		}
	}
	return count, nil
}

func (r *memMessageRepo) GetLatest(_ context.Context, chatID uuid.UUID) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *message.Message
	for _, m := range r.messages {
		if m.ChatID != chatID || m.IsDeleted {
			continue
		}
		m := m
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = &m
		}
	}
	if latest == nil {
		return message.Message{}, nexus_errors.ErrNotFound
	}
	return *latest, nil
}

// recordedEvent captures one notifier call.
type recordedEvent struct {
	Scope   string // chat, chat_except, user, broadcast
	ChatID  uuid.UUID
	UserID  uuid.UUID
	Event   string
	Payload any
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *fakeNotifier) ToChat(chatID uuid.UUID, event string, payload any) {
	n.record(recordedEvent{Scope: "chat", ChatID: chatID, Event: event, Payload: payload})
}

func (n *fakeNotifier) ToChatExcept(chatID, exceptUserID uuid.UUID, event string, payload any) {
	n.record(recordedEvent{Scope: "chat_except", ChatID: chatID, UserID: exceptUserID, Event: event, Payload: payload})
}

func (n *fakeNotifier) ToUser(userID uuid.UUID, event string, payload any) {
	n.record(recordedEvent{Scope: "user", UserID: userID, Event: event, Payload: payload})
}

func (n *fakeNotifier) Broadcast(event string, payload any) {
	n.record(recordedEvent{Scope: "broadcast", Event: event, Payload: payload})
}

func (n *fakeNotifier) BroadcastExcept(exceptUserID uuid.UUID, event string, payload any) {
	n.record(recordedEvent{Scope: "broadcast_except", UserID: exceptUserID, Event: event, Payload: payload})
}

func (n *fakeNotifier) record(ev recordedEvent) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *fakeNotifier) byEvent(event string) []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []recordedEvent
	for _, ev := range n.events {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

// fakeProvider is a scriptable in-memory VitroCAD.
type fakeProvider struct {
	mu          sync.Mutex
	accounts    map[string]vitrocad.Account // login -> account
	tokens      map[string]vitrocad.Account // token -> account
	items       map[string]vitrocad.Item
	lists       map[string][]vitrocad.Item
	permissions map[string][]vitrocad.Permission
	failAll     bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts:    map[string]vitrocad.Account{},
		tokens:      map[string]vitrocad.Account{},
		items:       map[string]vitrocad.Item{},
		lists:       map[string][]vitrocad.Item{},
		permissions: map[string][]vitrocad.Permission{},
	}
}

func (p *fakeProvider) Login(_ context.Context, login, password string) (*vitrocad.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return nil, nexus_errors.ErrServiceUnavailable
	}
	acc, ok := p.accounts[login]
	if !ok || password != "good-password" {
		return nil, nexus_errors.ErrUnauthorized
	}
	return &acc, nil
}

func (p *fakeProvider) GetCurrentUser(_ context.Context, token string) (*vitrocad.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return nil, nexus_errors.ErrServiceUnavailable
	}
	acc, ok := p.tokens[token]
	if !ok {
		return nil, nexus_errors.ErrUnauthorized
	}
	return &acc, nil
}

func (p *fakeProvider) GetItem(_ context.Context, _, itemID string) (*vitrocad.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return nil, nexus_errors.ErrServiceUnavailable
	}
	item, ok := p.items[itemID]
	if !ok {
		return nil, nexus_errors.ErrNotFound
	}
	return &item, nil
}

func (p *fakeProvider) GetList(_ context.Context, _, listID string) ([]vitrocad.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return nil, nexus_errors.ErrServiceUnavailable
	}
	return p.lists[listID], nil
}

func (p *fakeProvider) GetItemPermissions(_ context.Context, _, itemID string) ([]vitrocad.Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAll {
		return nil, nexus_errors.ErrServiceUnavailable
	}
	perms, ok := p.permissions[itemID]
	if !ok {
		return nil, nexus_errors.ErrNotFound
	}
	return perms, nil
}

func toNullTime(t time.Time) (out sql.NullTime) {
	out.Time = t
	out.Valid = true
	return out
}
