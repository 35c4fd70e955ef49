package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nexuschat/internal/middleware"
	"nexuschat/internal/services"
	"nexuschat/internal/transport/httpdto"
)

// UploadHandler hands out presigned URLs for chat attachments.
type UploadHandler struct {
	service *services.UploadService
}

func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// Presign issues an upload ticket for a chat attachment.
func (h *UploadHandler) Presign(c *gin.Context) {
	var req httpdto.PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid chat id", "INVALID_REQUEST"))
		return
	}

	ticket, err := h.service.PresignUpload(c.Request.Context(), middleware.UserID(c), chatID, req.Filename, req.ContentType, req.SizeBytes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PresignUploadResponse{
		ObjectKey: ticket.ObjectKey,
		URL:       ticket.URL,
		Headers:   ticket.Headers,
	}))
}

// Complete confirms a finished direct upload and returns the attachment URL.
func (h *UploadHandler) Complete(c *gin.Context) {
	var req httpdto.CompleteUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	att, err := h.service.CompleteUpload(c.Request.Context(), middleware.UserID(c), req.ObjectKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CompleteUploadResponse{
		ObjectKey: att.ObjectKey,
		URL:       att.URL,
	}))
}

// Download resolves an object key to a presigned download URL.
func (h *UploadHandler) Download(c *gin.Context) {
	key := c.Query("key")
	url, err := h.service.DownloadURL(c.Request.Context(), middleware.UserID(c), key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.DownloadURLResponse{URL: url}))
}
