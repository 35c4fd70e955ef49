// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nexuschat/internal/middleware"
	"nexuschat/internal/services"
	"nexuschat/internal/transport/httpdto"
)

// AuthHandler handles authentication HTTP endpoints.
type AuthHandler struct {
	service  *services.AuthService
	presence *services.PresenceService
}

func NewAuthHandler(service *services.AuthService, presence *services.PresenceService) *AuthHandler {
	return &AuthHandler{service: service, presence: presence}
}

func writeError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	c.JSON(status, httpdto.NewErrorResponse(err.Error(), httpdto.ErrorCode(status)))
}

// Login authenticates against VitroCAD credentials.
func (h *AuthHandler) Login(c *gin.Context) {
	var req httpdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), services.LoginInput{
		Login:    req.Login,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AuthResponse{
		Token:     res.Token,
		ExpiresIn: res.ExpiresIn,
		User:      toUserDTO(res.User),
	}))
}

// ValidateVitroCADToken exchanges a document-server session for a JWT.
func (h *AuthHandler) ValidateVitroCADToken(c *gin.Context) {
	var req httpdto.ValidateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	res, err := h.service.ValidateVitroCADToken(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AuthResponse{
		Token:     res.Token,
		ExpiresIn: res.ExpiresIn,
		User:      toUserDTO(res.User),
	}))
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.service.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toUserDTO(u)))
}

// Logout marks the user offline.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"logged_out": true}))
}

// UpdateSettings applies partial settings changes.
func (h *AuthHandler) UpdateSettings(c *gin.Context) {
	var req httpdto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	u, err := h.service.UpdateSettings(c.Request.Context(), middleware.UserID(c), services.SettingsInput{
		NotificationsEnabled: req.NotificationsEnabled,
		SoundEnabled:         req.SoundEnabled,
		Theme:                req.Theme,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toUserDTO(u)))
}

// UpdateStatus applies a user-chosen presence status.
func (h *AuthHandler) UpdateStatus(c *gin.Context) {
	var req httpdto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	if err := h.presence.UpdateStatus(c.Request.Context(), middleware.UserID(c), req.Status); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": req.Status}))
}

// DeactivateUser disables an account. Admin only.
func (h *AuthHandler) DeactivateUser(c *gin.Context) {
	targetID, ok := pathUUID(c, "userId")
	if !ok {
		return
	}
	if err := h.service.DeactivateUser(c.Request.Context(), middleware.UserID(c), targetID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deactivated": true}))
}

// OnlineUsers lists the ids of users the presence cache reports online.
func (h *AuthHandler) OnlineUsers(c *gin.Context) {
	ids, err := h.presence.OnlineUsers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"user_ids": ids}))
}

// UserStatus returns one user's presence.
func (h *AuthHandler) UserStatus(c *gin.Context) {
	targetID, ok := pathUUID(c, "userId")
	if !ok {
		return
	}
	info, err := h.presence.Status(c.Request.Context(), targetID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(info))
}

// SearchUsers finds active users by name, email or login.
func (h *AuthHandler) SearchUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	users, err := h.service.SearchUsers(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]httpdto.UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}
