package services

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"nexuschat/internal/domain/message"
	"nexuschat/internal/repository"
	"nexuschat/internal/transport/httpdto"
)

// appendSystemMessage stores a SYSTEM message, advances the chat's last
// message pointer and fans the message out to the room.
func appendSystemMessage(ctx context.Context, msgRepo repository.MessageRepository, chatRepo repository.ChatRepository, notifier Notifier, chatID, senderID uuid.UUID, ev message.SystemEvent) (message.Message, error) {
	payload, err := ev.Encode()
	if err != nil {
		return message.Message{}, err
	}
	msg := message.Message{
		ID:            uuid.New(),
		ChatID:        chatID,
		SenderID:      senderID,
		Type:          message.TypeSystem,
		SystemPayload: sql.NullString{String: payload, Valid: true},
		Status:        message.StatusSent,
	}
	if err := msgRepo.Create(ctx, &msg); err != nil {
		return message.Message{}, err
	}
	if err := chatRepo.UpdateLastMessage(ctx, chatID, msg.ID); err != nil {
		return message.Message{}, err
	}
	notifier.ToChat(chatID, EventNewMessage, httpdto.NewMessageDTO(msg))
	return msg, nil
}
