package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"nexuschat/internal/domain/chat"
	"nexuschat/internal/domain/message"
	"nexuschat/internal/repository"
	"nexuschat/internal/transport/httpdto"
	nexus_errors "nexuschat/pkg/errors"
	"nexuschat/pkg/logger"
)

type ChatService struct {
	chatRepo repository.ChatRepository
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
	notifier Notifier
	logger   *logger.Logger
}

func NewChatService(chatRepo repository.ChatRepository, msgRepo repository.MessageRepository, userRepo repository.UserRepository, notifier Notifier, log *logger.Logger) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		notifier: notifier,
		logger:   log,
	}
}

// ChatSummary is a conversation plus the per-viewer derived fields the chat
// list needs.
type ChatSummary struct {
	Chat        chat.Conversation
	UnreadCount int64
	LastMessage *message.Message
}

// ListUserChats returns the viewer's active conversations with unread counts
// and last messages.
func (s *ChatService) ListUserChats(ctx context.Context, userID uuid.UUID) ([]ChatSummary, error) {
	chats, err := s.chatRepo.GetUserChats(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		summary := ChatSummary{Chat: c}

		if summary.UnreadCount, err = s.msgRepo.UnreadCount(ctx, c.ID, userID); err != nil {
			return nil, err
		}
		last, err := s.msgRepo.GetLatest(ctx, c.ID)
		switch {
		case err == nil:
			summary.LastMessage = &last
		case !errors.Is(err, nexus_errors.ErrNotFound):
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

type CreateFileChatInput struct {
	FileID    string
	FileName  string
	ListID    string
	ParentID  string
	MemberIDs []uuid.UUID
}

// CreateFileChat creates the conversation bound to a VitroCAD file. At most
// one active conversation exists per file: a concurrent create that loses
// the unique-index race resolves to the winner's row.
func (s *ChatService) CreateFileChat(ctx context.Context, creatorID uuid.UUID, in CreateFileChatInput) (chat.Conversation, bool, error) {
	in.FileID = strings.TrimSpace(in.FileID)
	if in.FileID == "" {
		return chat.Conversation{}, false, fmt.Errorf("%w: file id is required", nexus_errors.ErrInvalidInput)
	}
	if in.FileName == "" {
		in.FileName = in.FileID
	}

	if existing, err := s.chatRepo.GetActiveByFileID(ctx, in.FileID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, nexus_errors.ErrNotFound) {
		return chat.Conversation{}, false, err
	}

	now := time.Now()
	conv := &chat.Conversation{
		ID:               uuid.New(),
		Name:             in.FileName,
		Type:             chat.TypeFile,
		CreatorID:        creatorID,
		FileID:           sql.NullString{String: in.FileID, Valid: true},
		FileName:         sql.NullString{String: in.FileName, Valid: true},
		ListID:           nullString(in.ListID),
		ParentID:         nullString(in.ParentID),
		AllowFileSharing: true,
		IsActive:         true,
		Members:          []chat.Member{{UserID: creatorID, Role: chat.RoleAdmin, JoinedAt: now}},
	}
	for _, id := range in.MemberIDs {
		if id == creatorID {
			continue
		}
		conv.Members = append(conv.Members, chat.Member{UserID: id, Role: chat.RoleMember, JoinedAt: now})
	}
	for i := range conv.Members {
		conv.Members[i].ConversationID = conv.ID
	}

	if err := s.chatRepo.Create(ctx, conv); err != nil {
		if errors.Is(err, nexus_errors.ErrAlreadyExists) {
			existing, rerr := s.chatRepo.GetActiveByFileID(ctx, in.FileID)
			if rerr != nil {
				return chat.Conversation{}, false, err
			}
			return existing, false, nil
		}
		return chat.Conversation{}, false, err
	}

	if err := s.recordSystemMessage(ctx, conv.ID, creatorID, message.SystemEvent{
		Action:      message.ActionChatCreated,
		ChatCreated: &message.ChatCreatedData{FileID: in.FileID, FileName: in.FileName, Creator: creatorID},
	}); err != nil {
		s.logger.Warnf("chat_created system message failed for %s: %v", conv.ID, err)
	}

	dto := httpdto.NewChatDTO(*conv)
	for _, m := range conv.Members {
		s.notifier.ToUser(m.UserID, EventChatCreated, dto)
	}
	return *conv, true, nil
}

// GetChat returns one conversation; the viewer must be a member.
func (s *ChatService) GetChat(ctx context.Context, viewerID, chatID uuid.UUID) (chat.Conversation, error) {
	conv, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return chat.Conversation{}, err
	}
	if !conv.IsMember(viewerID) {
		return chat.Conversation{}, nexus_errors.ErrForbidden
	}
	return conv, nil
}

// AddMember adds userID to the chat. Only chat admins may add members.
// Adding an existing member is a no-op.
func (s *ChatService) AddMember(ctx context.Context, actorID, chatID, userID uuid.UUID) error {
	conv, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if conv.MemberRole(actorID) != chat.RoleAdmin {
		return nexus_errors.ErrForbidden
	}
	if conv.IsMember(userID) {
		return nil
	}
	if conv.MaxMembers > 0 && len(conv.Members) >= conv.MaxMembers {
		return fmt.Errorf("%w: member limit reached", nexus_errors.ErrConflict)
	}

	added, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	member := &chat.Member{ConversationID: chatID, UserID: userID, Role: chat.RoleMember, JoinedAt: time.Now()}
	if err := s.chatRepo.AddMember(ctx, member); err != nil {
		if errors.Is(err, nexus_errors.ErrAlreadyExists) {
			return nil
		}
		return err
	}

	if err := s.recordSystemMessage(ctx, chatID, actorID, message.SystemEvent{
		Action:     message.ActionUserJoined,
		UserJoined: &message.UserJoinedData{UserID: userID, UserName: added.Name, AddedBy: actorID},
	}); err != nil {
		s.logger.Warnf("user_joined system message failed for %s: %v", chatID, err)
	}

	s.notifier.ToChat(chatID, EventMemberAdded, map[string]any{"chat_id": chatID, "user_id": userID})
	s.notifier.ToUser(userID, EventChatCreated, httpdto.NewChatDTO(conv))
	return nil
}

// RemoveMember removes userID from the chat. Admins may remove anyone;
// members may remove themselves.
func (s *ChatService) RemoveMember(ctx context.Context, actorID, chatID, userID uuid.UUID) error {
	conv, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if actorID != userID && conv.MemberRole(actorID) != chat.RoleAdmin {
		return nexus_errors.ErrForbidden
	}
	if !conv.IsMember(userID) {
		return nexus_errors.ErrNotFound
	}

	if err := s.chatRepo.RemoveMember(ctx, chatID, userID); err != nil {
		return err
	}

	if err := s.recordSystemMessage(ctx, chatID, actorID, message.SystemEvent{
		Action:   message.ActionUserLeft,
		UserLeft: &message.UserLeftData{UserID: userID, RemovedBy: actorID},
	}); err != nil {
		s.logger.Warnf("user_left system message failed for %s: %v", chatID, err)
	}

	s.notifier.ToChat(chatID, EventMemberRemoved, map[string]any{"chat_id": chatID, "user_id": userID})
	return nil
}

// ArchiveChat deactivates a conversation. Chat admins and site admins may
// archive; archiving an inactive chat is a no-op. For FILE chats this frees
// the file binding, so a later upload starts a fresh conversation.
func (s *ChatService) ArchiveChat(ctx context.Context, actorID, chatID uuid.UUID) error {
	conv, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if conv.MemberRole(actorID) != chat.RoleAdmin {
		actor, err := s.userRepo.GetByID(ctx, actorID)
		if err != nil || !actor.IsAdmin {
			return nexus_errors.ErrForbidden
		}
	}
	if !conv.IsActive {
		return nil
	}

	if err := s.chatRepo.Archive(ctx, chatID); err != nil {
		return err
	}

	memberIDs, err := s.chatRepo.MemberUserIDs(ctx, chatID)
	if err != nil {
		s.logger.Warnf("member enumeration failed for %s: %v", chatID, err)
		return nil
	}
	for _, id := range memberIDs {
		s.notifier.ToUser(id, EventNotification, map[string]any{
			"chat_id":     chatID,
			"chat_name":   conv.Name,
			"archived":    true,
			"archived_by": actorID,
		})
	}
	return nil
}

// MarkRead acknowledges every unread message in the chat for the viewer and
// returns how many receipts were appended. Safe to repeat.
func (s *ChatService) MarkRead(ctx context.Context, viewerID, chatID uuid.UUID) (int64, error) {
	member, err := s.chatRepo.GetMember(ctx, chatID, viewerID)
	if err != nil {
		return 0, err
	}

	count, err := s.msgRepo.MarkChatRead(ctx, chatID, viewerID)
	if err != nil {
		return 0, err
	}

	if latest, err := s.msgRepo.GetLatest(ctx, chatID); err == nil {
		if !member.LastReadMessageID.Valid || member.LastReadMessageID.UUID != latest.ID {
			if err := s.chatRepo.UpdateMemberLastRead(ctx, chatID, viewerID, latest.ID); err != nil {
				s.logger.Warnf("last-read update failed for %s/%s: %v", chatID, viewerID, err)
			}
		}
	} else if !errors.Is(err, nexus_errors.ErrNotFound) {
		return count, err
	}

	if count > 0 {
		s.notifier.ToChatExcept(chatID, viewerID, EventMessagesRead, map[string]any{
			"chat_id": chatID,
			"user_id": viewerID,
			"count":   count,
		})
	}
	return count, nil
}

func (s *ChatService) recordSystemMessage(ctx context.Context, chatID, senderID uuid.UUID, ev message.SystemEvent) error {
	_, err := appendSystemMessage(ctx, s.msgRepo, s.chatRepo, s.notifier, chatID, senderID, ev)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
