package httpdto

import (
	"nexuschat/internal/domain/chat"
	"nexuschat/internal/domain/message"
	"nexuschat/internal/domain/user"
)

// The constructors below are the single place entities become wire shapes.
// Both the HTTP handlers and the websocket fan-out go through them, so
// clients see the same JSON regardless of transport.

func NewUserDTO(u user.User) UserDTO {
	return UserDTO{
		ID:                   u.ID.String(),
		VitroCADID:           u.VitroCADID,
		Name:                 u.Name,
		Email:                u.Email,
		Login:                u.Login,
		Avatar:               u.Avatar,
		Status:               u.Status,
		LastSeen:             u.LastSeen,
		NotificationsEnabled: u.NotificationsEnabled,
		SoundEnabled:         u.SoundEnabled,
		Theme:                u.Theme,
		IsAdmin:              u.IsAdmin,
	}
}

func NewUserSummaryDTO(u user.User) UserSummaryDTO {
	return UserSummaryDTO{
		ID:     u.ID.String(),
		Name:   u.Name,
		Avatar: u.Avatar,
		Status: u.Status,
	}
}

func NewChatDTO(c chat.Conversation) ChatDTO {
	dto := ChatDTO{
		ID:               c.ID.String(),
		Name:             c.Name,
		Type:             c.Type,
		Description:      c.Description,
		CreatorID:        c.CreatorID.String(),
		IsPrivate:        c.IsPrivate,
		AllowFileSharing: c.AllowFileSharing,
		IsActive:         c.IsActive,
		CreatedAt:        c.CreatedAt,
	}
	if c.FileID.Valid {
		dto.FileID = c.FileID.String
	}
	if c.FileName.Valid {
		dto.FileName = c.FileName.String
	}
	if c.ListID.Valid {
		dto.ListID = c.ListID.String
	}
	if c.ParentID.Valid {
		dto.ParentID = c.ParentID.String
	}
	for _, m := range c.Members {
		dto.Members = append(dto.Members, MemberDTO{
			UserID:   m.UserID.String(),
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		})
	}
	return dto
}

func NewMessageDTO(m message.Message) MessageDTO {
	dto := MessageDTO{
		ID:        m.ID.String(),
		ChatID:    m.ChatID.String(),
		SenderID:  m.SenderID.String(),
		Type:      m.Type,
		Status:    m.Status,
		IsEdited:  m.IsEdited,
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
	}
	if m.IsDeleted {
		// Content is withheld from regular views; the row itself survives.
		return dto
	}
	if m.Text.Valid {
		dto.Text = m.Text.String
	}
	if m.FileOriginalName.Valid {
		dto.FileOriginalName = m.FileOriginalName.String
	}
	if m.FileObjectKey.Valid {
		dto.FileObjectKey = m.FileObjectKey.String
	}
	if m.FileSize.Valid {
		dto.FileSize = m.FileSize.Int64
	}
	if m.FileMimeType.Valid {
		dto.FileMimeType = m.FileMimeType.String
	}
	if m.SystemPayload.Valid {
		dto.SystemPayload = m.SystemPayload.String
	}
	if m.ReplyToID.Valid {
		dto.ReplyToID = m.ReplyToID.UUID.String()
	}
	if m.EditedAt.Valid {
		t := m.EditedAt.Time
		dto.EditedAt = &t
	}
	return dto
}
