package websocket

import (
	"github.com/google/uuid"

	"nexuschat/internal/services"
	"nexuschat/pkg/logger"
)

// roomName is the hub room for a chat.
func roomName(chatID uuid.UUID) string {
	return "chat:" + chatID.String()
}

// HubNotifier implements services.Notifier on top of the hub.
type HubNotifier struct {
	hub    *Hub
	logger *logger.Logger
}

var _ services.Notifier = (*HubNotifier)(nil)

func NewHubNotifier(hub *Hub, log *logger.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, logger: log}
}

func (n *HubNotifier) ToChat(chatID uuid.UUID, event string, payload any) {
	msg, err := encodeEvent(event, payload)
	if err != nil {
		n.logger.Warnf("event encode failed for %s: %v", event, err)
		return
	}
	n.hub.BroadcastRoom(roomName(chatID), msg)
}

func (n *HubNotifier) ToChatExcept(chatID, exceptUserID uuid.UUID, event string, payload any) {
	msg, err := encodeEvent(event, payload)
	if err != nil {
		n.logger.Warnf("event encode failed for %s: %v", event, err)
		return
	}
	n.hub.BroadcastRoomExcept(roomName(chatID), exceptUserID.String(), msg)
}

func (n *HubNotifier) ToUser(userID uuid.UUID, event string, payload any) {
	msg, err := encodeEvent(event, payload)
	if err != nil {
		n.logger.Warnf("event encode failed for %s: %v", event, err)
		return
	}
	n.hub.BroadcastToUser(userID.String(), msg)
}

func (n *HubNotifier) Broadcast(event string, payload any) {
	msg, err := encodeEvent(event, payload)
	if err != nil {
		n.logger.Warnf("event encode failed for %s: %v", event, err)
		return
	}
	n.hub.BroadcastAll(msg)
}

func (n *HubNotifier) BroadcastExcept(exceptUserID uuid.UUID, event string, payload any) {
	msg, err := encodeEvent(event, payload)
	if err != nil {
		n.logger.Warnf("event encode failed for %s: %v", event, err)
		return
	}
	n.hub.BroadcastAllExcept(exceptUserID.String(), msg)
}
