package httpdto

import "time"

type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ValidateTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type AuthResponse struct {
	Token     string  `json:"token"`
	ExpiresIn int64   `json:"expires_in"`
	User      UserDTO `json:"user"`
}

type UserDTO struct {
	ID                   string    `json:"id"`
	VitroCADID           string    `json:"vitrocad_id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email,omitempty"`
	Login                string    `json:"login,omitempty"`
	Avatar               string    `json:"avatar,omitempty"`
	Status               string    `json:"status"`
	LastSeen             time.Time `json:"last_seen"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	SoundEnabled         bool      `json:"sound_enabled"`
	Theme                string    `json:"theme"`
	IsAdmin              bool      `json:"is_admin"`
}

type UpdateSettingsRequest struct {
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	SoundEnabled         *bool   `json:"sound_enabled"`
	Theme                *string `json:"theme"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
