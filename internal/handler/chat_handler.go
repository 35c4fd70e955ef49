package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nexuschat/internal/domain/message"
	"nexuschat/internal/middleware"
	"nexuschat/internal/services"
	"nexuschat/internal/transport/httpdto"
	nexus_errors "nexuschat/pkg/errors"
)

// ChatHandler handles conversation and message HTTP endpoints.
type ChatHandler struct {
	chats    *services.ChatService
	messages *services.MessageService
	presence *services.PresenceService
}

func NewChatHandler(chats *services.ChatService, messages *services.MessageService, presence *services.PresenceService) *ChatHandler {
	return &ChatHandler{chats: chats, messages: messages, presence: presence}
}

// List returns the caller's chats with unread counts.
func (h *ChatHandler) List(c *gin.Context) {
	summaries, err := h.chats.ListUserChats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]httpdto.ChatSummaryDTO, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toChatSummaryDTO(s))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

// CreateFileChat creates (or returns) the chat bound to a file.
func (h *ChatHandler) CreateFileChat(c *gin.Context) {
	var req httpdto.CreateFileChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	memberIDs := make([]uuid.UUID, 0, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid member id", "INVALID_REQUEST"))
			return
		}
		memberIDs = append(memberIDs, id)
	}

	conv, created, err := h.chats.CreateFileChat(c.Request.Context(), middleware.UserID(c), services.CreateFileChatInput{
		FileID:    req.FileID,
		FileName:  req.FileName,
		ListID:    req.ListID,
		ParentID:  req.ParentID,
		MemberIDs: memberIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, httpdto.NewSuccessResponse(toChatDTO(conv)))
}

// Get returns one chat.
func (h *ChatHandler) Get(c *gin.Context) {
	chatID, ok := pathUUID(c, "chatId")
	if !ok {
		return
	}

	conv, err := h.chats.GetChat(c.Request.Context(), middleware.UserID(c), chatID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toChatDTO(conv)))
}

// Archive deactivates the chat.
func (h *ChatHandler) Archive(c *gin.Context) {
	chatID, ok := pathUUID(c, "chatId")
	if !ok {
		return
	}

	if err := h.chats.ArchiveChat(c.Request.Context(), middleware.UserID(c), chatID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"archived": true}))
}

// AddMember adds a user to the chat.
func (h *ChatHandler) AddMember(c *gin.Context) {
	chatID, ok := pathUUID(c, "chatId")
	if !ok {
		return
	}

	var req httpdto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	if err := h.chats.AddMember(c.Request.Context(), middleware.UserID(c), chatID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"added": true}))
}

// RemoveMember removes a user from the chat.
func (h *ChatHandler) RemoveMember(c *gin.Context) {
	chatID, ok := pathUUID(c, "chatId")
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	if err := h.chats.RemoveMember(c.Request.Context(), middleware.UserID(c), chatID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"removed": true}))
}

// Typing returns the ids of members currently typing in the chat.
func (h *ChatHandler) Typing(c *gin.Context) {
	chatID, ok := pathUUID(c, "chatId")
	if !ok {
		return
	}
	ids, err := h.presence.TypingUsers(c.Request.Context(), middleware.UserID(c), chatID)
	if err != nil {
		writeError(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"user_ids": ids}))
}

// Messages returns a page of chat history.
func (h *ChatHandler) Messages(c *gin.Context) {
	chatID, ok := pathUUID(c, "chatId")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	var msgs []message.Message
	var err error
	if c.Query("include_deleted") == "true" {
		msgs, err = h.messages.AdminHistory(c.Request.Context(), middleware.UserID(c), chatID, page, limit)
	} else {
		msgs, err = h.messages.History(c.Request.Context(), middleware.UserID(c), chatID, page, limit)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toMessageDTOs(msgs)))
}

// SendMessage posts a message over HTTP; the WebSocket path is equivalent.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	chatID, ok := pathUUID(c, "chatId")
	if !ok {
		return
	}

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	in := services.SendInput{
		Type:             req.Type,
		Text:             req.Text,
		FileOriginalName: req.FileOriginalName,
		FileObjectKey:    req.FileObjectKey,
		FileSize:         req.FileSize,
		FileMimeType:     req.FileMimeType,
	}
	if req.ReplyToID != "" {
		replyTo, err := uuid.Parse(req.ReplyToID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid reply id", "INVALID_REQUEST"))
			return
		}
		in.ReplyToID = &replyTo
	}

	msg, err := h.messages.Send(c.Request.Context(), middleware.UserID(c), chatID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(toMessageDTO(msg)))
}

// MarkRead acknowledges all unread messages in the chat.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatID, ok := pathUUID(c, "chatId")
	if !ok {
		return
	}

	count, err := h.chats.MarkRead(c.Request.Context(), middleware.UserID(c), chatID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkReadResponse{MarkedCount: count}))
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		writeError(c, nexus_errors.ErrInvalidInput)
		return uuid.Nil, false
	}
	return id, true
}
