package httpdto

import "time"

type CreateFileChatRequest struct {
	FileID    string   `json:"file_id" binding:"required"`
	FileName  string   `json:"file_name"`
	ListID    string   `json:"list_id"`
	ParentID  string   `json:"parent_id"`
	MemberIDs []string `json:"member_ids"`
}

type ChatDTO struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Type             string      `json:"type"`
	Description      string      `json:"description,omitempty"`
	CreatorID        string      `json:"creator_id"`
	FileID           string      `json:"file_id,omitempty"`
	FileName         string      `json:"file_name,omitempty"`
	ListID           string      `json:"list_id,omitempty"`
	ParentID         string      `json:"parent_id,omitempty"`
	IsPrivate        bool        `json:"is_private"`
	AllowFileSharing bool        `json:"allow_file_sharing"`
	IsActive         bool        `json:"is_active"`
	CreatedAt        time.Time   `json:"created_at"`
	Members          []MemberDTO `json:"members,omitempty"`
}

type MemberDTO struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type ChatSummaryDTO struct {
	Chat        ChatDTO     `json:"chat"`
	UnreadCount int64       `json:"unread_count"`
	LastMessage *MessageDTO `json:"last_message,omitempty"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// UserSummaryDTO is the slim profile embedded in fan-out payloads. It
// carries no account settings.
type UserSummaryDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Status string `json:"status"`
}

type MessageDTO struct {
	ID               string          `json:"id"`
	ChatID           string          `json:"chat_id"`
	SenderID         string          `json:"sender_id"`
	Sender           *UserSummaryDTO `json:"sender,omitempty"`
	Type             string          `json:"type"`
	Text             string          `json:"text,omitempty"`
	FileOriginalName string          `json:"file_original_name,omitempty"`
	FileObjectKey    string          `json:"file_object_key,omitempty"`
	FileSize         int64           `json:"file_size,omitempty"`
	FileMimeType     string          `json:"file_mime_type,omitempty"`
	SystemPayload    string          `json:"system_payload,omitempty"`
	ReplyToID        string          `json:"reply_to_id,omitempty"`
	ReplyTo          *MessageDTO     `json:"reply_to,omitempty"`
	Status           string          `json:"status"`
	IsEdited         bool            `json:"is_edited"`
	EditedAt         *time.Time      `json:"edited_at,omitempty"`
	IsDeleted        bool            `json:"is_deleted"`
	CreatedAt        time.Time       `json:"created_at"`
}

type SendMessageRequest struct {
	Type             string `json:"type"`
	Text             string `json:"text"`
	FileOriginalName string `json:"file_original_name"`
	FileObjectKey    string `json:"file_object_key"`
	FileSize         int64  `json:"file_size"`
	FileMimeType     string `json:"file_mime_type"`
	ReplyToID        string `json:"reply_to_id"`
}

type MarkReadResponse struct {
	MarkedCount int64 `json:"marked_count"`
}
