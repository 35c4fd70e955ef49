package handler

import (
	"nexuschat/internal/domain/chat"
	"nexuschat/internal/domain/message"
	"nexuschat/internal/domain/user"
	"nexuschat/internal/services"
	"nexuschat/internal/transport/httpdto"
)

func toUserDTO(u user.User) httpdto.UserDTO {
	return httpdto.NewUserDTO(u)
}

func toChatDTO(c chat.Conversation) httpdto.ChatDTO {
	return httpdto.NewChatDTO(c)
}

func toMessageDTO(m message.Message) httpdto.MessageDTO {
	return httpdto.NewMessageDTO(m)
}

func toMessageDTOs(msgs []message.Message) []httpdto.MessageDTO {
	out := make([]httpdto.MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageDTO(m))
	}
	return out
}

func toChatSummaryDTO(s services.ChatSummary) httpdto.ChatSummaryDTO {
	dto := httpdto.ChatSummaryDTO{
		Chat:        toChatDTO(s.Chat),
		UnreadCount: s.UnreadCount,
	}
	if s.LastMessage != nil {
		m := toMessageDTO(*s.LastMessage)
		dto.LastMessage = &m
	}
	return dto
}
