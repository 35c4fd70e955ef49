package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"nexuschat/internal/domain/chat"
	"nexuschat/internal/domain/message"
	"nexuschat/internal/services"
	"nexuschat/internal/transport/httpdto"
	"nexuschat/pkg/logger"
)

// The service surfaces the socket layer dispatches into. The concrete
// services satisfy them; tests substitute stubs.
type tokenParser interface {
	ParseToken(token string) (services.AccessClaims, error)
}

type chatAPI interface {
	ListUserChats(ctx context.Context, userID uuid.UUID) ([]services.ChatSummary, error)
	GetChat(ctx context.Context, viewerID, chatID uuid.UUID) (chat.Conversation, error)
	MarkRead(ctx context.Context, viewerID, chatID uuid.UUID) (int64, error)
}

type messageAPI interface {
	Send(ctx context.Context, senderID, chatID uuid.UUID, in services.SendInput) (message.Message, error)
	Edit(ctx context.Context, actorID, messageID uuid.UUID, text string) (message.Message, error)
	Delete(ctx context.Context, actorID, messageID uuid.UUID) error
}

type presenceAPI interface {
	Connected(ctx context.Context, userID uuid.UUID)
	Disconnected(ctx context.Context, userID uuid.UUID)
	Typing(ctx context.Context, userID, chatID uuid.UUID, started bool) error
	UpdateStatus(ctx context.Context, userID uuid.UUID, status string) error
	Heartbeat(ctx context.Context, userID uuid.UUID)
}

// Handler upgrades authenticated HTTP requests to WebSocket connections and
// dispatches client events to the services.
type Handler struct {
	auth     tokenParser
	chats    chatAPI
	messages messageAPI
	presence presenceAPI
	hub      *Hub
	logger   *logger.Logger
}

func NewHandler(auth tokenParser, chats chatAPI, messages messageAPI, presence presenceAPI, hub *Hub, log *logger.Logger) *Handler {
	return &Handler{
		auth:     auth,
		chats:    chats,
		messages: messages,
		presence: presence,
		hub:      hub,
		logger:   log,
	}
}

// Connect handles GET /ws?token=<jwt>.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	claims, err := h.auth.ParseToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID.String(), claims.VitroCADToken)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firstConn := h.hub.UserConnectionCount(client.UserID) == 0
	h.hub.Register(client)
	go client.WriteLoop(ctx)
	if firstConn {
		h.presence.Connected(ctx, userID)
	}

	h.readLoop(ctx, client, userID)

	lastConn := h.hub.UserConnectionCount(client.UserID) == 1
	h.hub.Unregister(client)
	if lastConn {
		h.presence.Disconnected(context.Background(), userID)
	}
}

func (h *Handler) readLoop(ctx context.Context, client *Client, userID uuid.UUID) {
	conn := client.Conn
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		h.presence.Heartbeat(ctx, userID)
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(client, "malformed event", "INVALID_EVENT")
			continue
		}
		h.dispatch(ctx, client, userID, env)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, userID uuid.UUID, env envelope) {
	switch env.Event {
	case eventJoinChats:
		// No payload: the server enumerates the user's conversations and
		// subscribes this connection to every room.
		summaries, err := h.chats.ListUserChats(ctx, userID)
		if err != nil {
			h.sendServiceError(client, err)
			return
		}
		for _, sum := range summaries {
			h.hub.Subscribe(client, roomName(sum.Chat.ID))
		}

	case eventJoinChat:
		var p chatRefPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.joinChat(ctx, client, userID, p.ChatID, true)

	case eventLeaveChat:
		var p chatRefPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		h.hub.Unsubscribe(client, roomName(p.ChatID))

	case eventSendMessage:
		var p sendMessagePayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		_, err := h.messages.Send(ctx, userID, p.ChatID, services.SendInput{
			Type:             p.Type,
			Text:             p.Text,
			FileOriginalName: p.FileOriginalName,
			FileObjectKey:    p.FileObjectKey,
			FileSize:         p.FileSize,
			FileMimeType:     p.FileMimeType,
			ReplyToID:        p.ReplyToID,
		})
		if err != nil {
			h.sendServiceError(client, err)
		}

	case eventEditMessage:
		var p editMessagePayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		if _, err := h.messages.Edit(ctx, userID, p.MessageID, p.Text); err != nil {
			h.sendServiceError(client, err)
		}

	case eventDeleteMessage:
		var p deleteMessagePayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		if err := h.messages.Delete(ctx, userID, p.MessageID); err != nil {
			h.sendServiceError(client, err)
		}

	case eventTypingStart, eventTypingStop:
		var p chatRefPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		if err := h.presence.Typing(ctx, userID, p.ChatID, env.Event == eventTypingStart); err != nil {
			h.sendServiceError(client, err)
		}

	case eventUpdateStatus:
		var p updateStatusPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		if err := h.presence.UpdateStatus(ctx, userID, p.Status); err != nil {
			h.sendServiceError(client, err)
		}

	case eventMarkRead:
		var p chatRefPayload
		if !h.decode(client, env.Data, &p) {
			return
		}
		if _, err := h.chats.MarkRead(ctx, userID, p.ChatID); err != nil {
			h.sendServiceError(client, err)
		}

	default:
		h.sendError(client, "unknown event "+env.Event, "UNKNOWN_EVENT")
	}
}

// joinChat subscribes the connection to a chat room after a membership
// check. Opening a chat also acknowledges its unread messages.
func (h *Handler) joinChat(ctx context.Context, client *Client, userID, chatID uuid.UUID, markRead bool) {
	if _, err := h.chats.GetChat(ctx, userID, chatID); err != nil {
		h.sendServiceError(client, err)
		return
	}
	h.hub.Subscribe(client, roomName(chatID))

	if markRead {
		if _, err := h.chats.MarkRead(ctx, userID, chatID); err != nil {
			h.logger.Warnf("mark read on join failed for %s/%s: %v", chatID, userID, err)
		}
	}
}

func (h *Handler) decode(client *Client, raw json.RawMessage, dst any) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		h.sendError(client, "malformed event payload", "INVALID_EVENT")
		return false
	}
	return true
}

func (h *Handler) sendError(client *Client, msg, code string) {
	if payload, err := encodeEvent("error", errorPayload{Message: msg, Code: code}); err == nil {
		client.SendMessage(payload)
	}
}

func (h *Handler) sendServiceError(client *Client, err error) {
	h.sendError(client, err.Error(), httpdto.ErrorCode(services.HTTPStatus(err)))
}
