package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nexuschat/internal/middleware"
	"nexuschat/internal/services"
	"nexuschat/internal/transport/httpdto"
	"nexuschat/internal/vitrocad"
)

// VitroCADHandler exposes document-server lookups, webhook intake and the
// polling monitor's controls.
type VitroCADHandler struct {
	service *services.VitroCADService
	monitor *services.FileMonitorService
}

func NewVitroCADHandler(service *services.VitroCADService, monitor *services.FileMonitorService) *VitroCADHandler {
	return &VitroCADHandler{service: service, monitor: monitor}
}

// ListUsers proxies the items of a VitroCAD user list.
func (h *VitroCADHandler) ListUsers(c *gin.Context) {
	items, err := h.service.ListItems(c.Request.Context(), middleware.VitroCADToken(c), c.Param("listId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(items))
}

// GetFile returns one document item.
func (h *VitroCADHandler) GetFile(c *gin.Context) {
	item, err := h.service.GetFile(c.Request.Context(), middleware.VitroCADToken(c), c.Param("fileId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(item))
}

// GetFilePermissions returns the principals with access to a document.
func (h *VitroCADHandler) GetFilePermissions(c *gin.Context) {
	perms, err := h.service.GetFilePermissions(c.Request.Context(), middleware.VitroCADToken(c), c.Param("fileId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(perms))
}

// SyncUser upserts the local mirror of a posted VitroCAD account.
func (h *VitroCADHandler) SyncUser(c *gin.Context) {
	var req httpdto.SyncUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	acc := vitrocad.Account{
		ID:            req.ID,
		Login:         req.Login,
		FieldValueMap: req.FieldValueMap,
	}
	for _, gid := range req.GroupIDs {
		acc.GroupList = append(acc.GroupList, vitrocad.Group{ID: gid})
	}

	u, err := h.service.SyncUser(c.Request.Context(), acc)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toUserDTO(u)))
}

// WebhookFileUpload receives a single file upload notification.
func (h *VitroCADHandler) WebhookFileUpload(c *gin.Context) {
	var req httpdto.WebhookFileUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	res, err := h.monitor.HandleFileUploaded(c.Request.Context(), webhookToEvent(req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FileEventResultDTO{
		ChatID:       res.ChatID.String(),
		Created:      res.Created,
		AddedMembers: res.AddedMembers,
	}))
}

// WebhookBulkUpload receives a batch of upload notifications. Each file is
// reconciled independently; one failure does not abort the rest.
func (h *VitroCADHandler) WebhookBulkUpload(c *gin.Context) {
	var req httpdto.WebhookBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	events := make([]services.FileEvent, 0, len(req.Files))
	for _, f := range req.Files {
		events = append(events, webhookToEvent(f))
	}

	results := h.monitor.HandleBulk(c.Request.Context(), events)
	out := make([]httpdto.BulkItemResultDTO, 0, len(results))
	for _, r := range results {
		item := httpdto.BulkItemResultDTO{FileID: r.FileID, Created: r.Created, Error: r.Error}
		if r.Error == "" {
			item.ChatID = r.ChatID.String()
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

// MonitorStats reports the poller's state. Admin only.
func (h *VitroCADHandler) MonitorStats(c *gin.Context) {
	stats := h.monitor.Stats()
	dto := httpdto.MonitorStatsDTO{
		IsMonitoring: stats.IsMonitoring,
		IntervalMs:   stats.IntervalMs,
	}
	if !stats.LastCheckTime.IsZero() {
		dto.LastCheckTime = stats.LastCheckTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(dto))
}

// StartMonitoring starts the poller. Admin only.
func (h *VitroCADHandler) StartMonitoring(c *gin.Context) {
	var req httpdto.MonitorControlRequest
	_ = c.ShouldBindJSON(&req)
	h.monitor.StartMonitoring(req.IntervalMs)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"monitoring": true}))
}

// StopMonitoring stops the poller. Admin only.
func (h *VitroCADHandler) StopMonitoring(c *gin.Context) {
	h.monitor.StopMonitoring()
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"monitoring": false}))
}

func webhookToEvent(req httpdto.WebhookFileUploadRequest) services.FileEvent {
	return services.FileEvent{
		FileID:             req.FileID,
		FileName:           req.FileName,
		ListID:             req.ListID,
		ParentID:           req.ParentID,
		UploaderVitroCADID: req.UploaderID,
		Token:              req.Token,
	}
}
