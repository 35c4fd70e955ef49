package websocket

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Client-sent event names.
const (
	eventJoinChats     = "join_chats"
	eventJoinChat      = "join_chat"
	eventLeaveChat     = "leave_chat"
	eventSendMessage   = "send_message"
	eventEditMessage   = "edit_message"
	eventDeleteMessage = "delete_message"
	eventTypingStart   = "typing_start"
	eventTypingStop    = "typing_stop"
	eventUpdateStatus  = "update_status"
	eventMarkRead      = "mark_read"
)

// envelope is the wire frame for both directions: an event name plus its
// JSON payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: event, Data: data})
}

type chatRefPayload struct {
	ChatID uuid.UUID `json:"chat_id"`
}

type sendMessagePayload struct {
	ChatID           uuid.UUID  `json:"chat_id"`
	Type             string     `json:"type,omitempty"`
	Text             string     `json:"text,omitempty"`
	FileOriginalName string     `json:"file_original_name,omitempty"`
	FileObjectKey    string     `json:"file_object_key,omitempty"`
	FileSize         int64      `json:"file_size,omitempty"`
	FileMimeType     string     `json:"file_mime_type,omitempty"`
	ReplyToID        *uuid.UUID `json:"reply_to_id,omitempty"`
}

type editMessagePayload struct {
	MessageID uuid.UUID `json:"message_id"`
	Text      string    `json:"text"`
}

type deleteMessagePayload struct {
	MessageID uuid.UUID `json:"message_id"`
}

type updateStatusPayload struct {
	Status string `json:"status"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
