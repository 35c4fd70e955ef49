package services

import (
	"context"
	"database/sql"
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

type MessageService struct {
	msgRepo  repository.MessageRepository
	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
	notifier Notifier
	logger   *logger.Logger
}

func NewMessageService(msgRepo repository.MessageRepository, chatRepo repository.ChatRepository, userRepo repository.UserRepository, notifier Notifier, log *logger.Logger) *MessageService {
	return &MessageService{
		msgRepo:  msgRepo,
		chatRepo: chatRepo,
		userRepo: userRepo,
		notifier: notifier,
		logger:   log,
	}
}

type SendInput struct {
	Type             string
	Text             string
	FileOriginalName string
	FileObjectKey    string
	FileSize         int64
	FileMimeType     string
	ReplyToID        *uuid.UUID
}

// Send creates a message in a chat and fans it out to the room. The sender
// must be a member; SYSTEM messages cannot be sent through this path.
func (s *MessageService) Send(ctx context.Context, senderID, chatID uuid.UUID, in SendInput) (message.Message, error) {
	if in.Type == "" {
		in.Type = message.TypeText
	}
	if in.Type == message.TypeSystem {
		return message.Message{}, fmt.Errorf("%w: system messages are server-generated", nexus_errors.ErrInvalidInput)
	}

	conv, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return message.Message{}, err
	}
	if !conv.IsMember(senderID) {
		return message.Message{}, nexus_errors.ErrForbidden
	}
	if !conv.IsActive {
		return message.Message{}, fmt.Errorf("%w: chat is archived", nexus_errors.ErrConflict)
	}

	msg := message.Message{
		ID:       uuid.New(),
		ChatID:   chatID,
		SenderID: senderID,
		Type:     in.Type,
		Status:   message.StatusSent,
	}

	switch in.Type {
	case message.TypeText:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return message.Message{}, fmt.Errorf("%w: text is required", nexus_errors.ErrInvalidInput)
		}
		if len(text) > message.MaxTextLength {
			return message.Message{}, fmt.Errorf("%w: text exceeds %d characters", nexus_errors.ErrInvalidInput, message.MaxTextLength)
		}
		msg.Text = sql.NullString{String: text, Valid: true}
	case message.TypeFile, message.TypeImage:
		if !conv.AllowFileSharing {
			return message.Message{}, fmt.Errorf("%w: file sharing is disabled for this chat", nexus_errors.ErrForbidden)
		}
		if in.FileObjectKey == "" || in.FileOriginalName == "" {
			return message.Message{}, fmt.Errorf("%w: file key and name are required", nexus_errors.ErrInvalidInput)
		}
		msg.FileOriginalName = sql.NullString{String: in.FileOriginalName, Valid: true}
		msg.FileObjectKey = sql.NullString{String: in.FileObjectKey, Valid: true}
		msg.FileSize = sql.NullInt64{Int64: in.FileSize, Valid: in.FileSize > 0}
		msg.FileMimeType = sql.NullString{String: in.FileMimeType, Valid: in.FileMimeType != ""}
		if caption := strings.TrimSpace(in.Text); caption != "" {
			msg.Text = sql.NullString{String: caption, Valid: true}
		}
	default:
		return message.Message{}, fmt.Errorf("%w: unknown message type %q", nexus_errors.ErrInvalidInput, in.Type)
	}

	if in.ReplyToID != nil {
		parent, err := s.msgRepo.GetByID(ctx, *in.ReplyToID)
		if err != nil {
			return message.Message{}, fmt.Errorf("%w: reply target", nexus_errors.ErrInvalidInput)
		}
		if parent.ChatID != chatID {
			return message.Message{}, fmt.Errorf("%w: reply target is in another chat", nexus_errors.ErrInvalidInput)
		}
		msg.ReplyToID = uuid.NullUUID{UUID: *in.ReplyToID, Valid: true}
	}

	if err := s.msgRepo.Create(ctx, &msg); err != nil {
		return message.Message{}, err
	}
	if err := s.chatRepo.UpdateLastMessage(ctx, chatID, msg.ID); err != nil {
		s.logger.Warnf("last-message update failed for %s: %v", chatID, err)
	}

	s.notifier.ToChat(chatID, EventNewMessage, s.wireMessage(ctx, msg))
	s.notifyOffRoomMembers(ctx, conv, msg)
	return msg, nil
}

// wireMessage builds the fan-out payload: the message DTO with the sender
// profile and reply target resolved. Raw entities never go on the wire; the
// DTO carries no prior-edit text and no deletion audit fields.
func (s *MessageService) wireMessage(ctx context.Context, msg message.Message) httpdto.MessageDTO {
	dto := httpdto.NewMessageDTO(msg)
	if sender, err := s.userRepo.GetByID(ctx, msg.SenderID); err == nil {
		sd := httpdto.NewUserSummaryDTO(sender)
		dto.Sender = &sd
	}
	if msg.ReplyToID.Valid {
		if parent, err := s.msgRepo.GetByID(ctx, msg.ReplyToID.UUID); err == nil {
			pd := httpdto.NewMessageDTO(parent)
			dto.ReplyTo = &pd
		}
	}
	return dto
}

// Edit replaces a message's text. Only the sender may edit, only TEXT
// messages are editable, and only the immediately-prior text is retained.
func (s *MessageService) Edit(ctx context.Context, actorID, messageID uuid.UUID, newText string) (message.Message, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return message.Message{}, fmt.Errorf("%w: text is required", nexus_errors.ErrInvalidInput)
	}
	if len(newText) > message.MaxTextLength {
		return message.Message{}, fmt.Errorf("%w: text exceeds %d characters", nexus_errors.ErrInvalidInput, message.MaxTextLength)
	}

	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if msg.SenderID != actorID {
		return message.Message{}, nexus_errors.ErrForbidden
	}
	if msg.IsDeleted {
		return message.Message{}, fmt.Errorf("%w: message is deleted", nexus_errors.ErrConflict)
	}
	if msg.Type != message.TypeText {
		return message.Message{}, fmt.Errorf("%w: only text messages can be edited", nexus_errors.ErrInvalidInput)
	}

	msg.PriorText = msg.Text
	msg.Text = sql.NullString{String: newText, Valid: true}
	msg.IsEdited = true
	msg.EditedAt = sql.NullTime{Time: time.Now(), Valid: true}

	if err := s.msgRepo.Update(ctx, msg); err != nil {
		return message.Message{}, err
	}

	s.notifier.ToChat(msg.ChatID, EventMessageEdited, s.wireMessage(ctx, msg))
	return msg, nil
}

// Delete soft-deletes a message. The sender or a chat admin may delete;
// content stays in the row for the admin audit path.
func (s *MessageService) Delete(ctx context.Context, actorID, messageID uuid.UUID) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		return nil
	}

	if msg.SenderID != actorID {
		member, err := s.chatRepo.GetMember(ctx, msg.ChatID, actorID)
		if err != nil || member.Role != chat.RoleAdmin {
			return nexus_errors.ErrForbidden
		}
	}

	if err := s.msgRepo.SoftDelete(ctx, messageID, actorID); err != nil {
		return err
	}

	s.notifier.ToChat(msg.ChatID, EventMessageDeleted, map[string]any{
		"chat_id":    msg.ChatID,
		"message_id": messageID,
		"deleted_by": actorID,
	})
	return nil
}

// History returns a page of undeleted messages in chronological order. The
// viewer must be a member.
func (s *MessageService) History(ctx context.Context, viewerID, chatID uuid.UUID, page, limit int) ([]message.Message, error) {
	ok, err := s.chatRepo.IsMember(ctx, chatID, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nexus_errors.ErrForbidden
	}
	return s.msgRepo.GetChatMessages(ctx, chatID, page, limit)
}

// AdminHistory includes soft-deleted messages. Site admins only.
func (s *MessageService) AdminHistory(ctx context.Context, actorID, chatID uuid.UUID, page, limit int) ([]message.Message, error) {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin {
		return nil, nexus_errors.ErrForbidden
	}
	return s.msgRepo.GetChatMessagesWithDeleted(ctx, chatID, page, limit)
}

// notifyOffRoomMembers pings members not subscribed to the room so unread
// badges stay current. The hub drops events for users with no connection.
func (s *MessageService) notifyOffRoomMembers(ctx context.Context, conv chat.Conversation, msg message.Message) {
	for _, m := range conv.Members {
		if m.UserID == msg.SenderID {
			continue
		}
		s.notifier.ToUser(m.UserID, EventNotification, map[string]any{
			"chat_id":    conv.ID,
			"chat_name":  conv.Name,
			"message_id": msg.ID,
			"sender_id":  msg.SenderID,
		})
	}
}
