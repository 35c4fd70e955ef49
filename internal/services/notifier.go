package services

import "github.com/google/uuid"

// Server-pushed event names.
const (
	EventNewMessage        = "new_message"
	EventMessageEdited     = "message_edited"
	EventMessageDeleted    = "message_deleted"
	EventMessagesRead      = "messages_read"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventUserStatusChanged = "user_status_changed"
	EventChatCreated       = "chat_created"
	EventMemberAdded       = "member_added"
	EventMemberRemoved     = "member_removed"
	EventNotification      = "notification"
)

// Notifier delivers events to connected clients. The websocket hub provides
// the production implementation; tests substitute a recording fake.
type Notifier interface {
	// ToChat sends to every connection subscribed to the chat room.
	ToChat(chatID uuid.UUID, event string, payload any)
	// ToChatExcept sends to the chat room, skipping one user's connections.
	ToChatExcept(chatID, exceptUserID uuid.UUID, event string, payload any)
	// ToUser sends to every connection of a single user.
	ToUser(userID uuid.UUID, event string, payload any)
	// Broadcast sends to every connected client.
	Broadcast(event string, payload any)
	// BroadcastExcept sends to every connected client, skipping one user's
	// connections.
	BroadcastExcept(exceptUserID uuid.UUID, event string, payload any)
}
