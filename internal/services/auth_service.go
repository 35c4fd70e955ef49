package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"nexuschat/config"
	"nexuschat/internal/domain/user"
	"nexuschat/internal/repository"
	"nexuschat/internal/vitrocad"
	nexus_errors "nexuschat/pkg/errors"
	"nexuschat/pkg/logger"
)

// AuthService authenticates users against VitroCAD and issues application
// JWTs. There is no local password store; VitroCAD is the source of truth
// for credentials and the session token it returns is embedded in the JWT
// so later provider calls can act as the user.
type AuthService struct {
	userRepo  repository.UserRepository
	provider  vitrocad.API
	userSync  *UserSync
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, provider vitrocad.API, userSync *UserSync, cfg *config.Config, log *logger.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		provider:  provider,
		userSync:  userSync,
		jwtSecret: []byte(cfg.JWTSecret),
		tokenTTL:  time.Duration(cfg.JWTExpiryHr) * time.Hour,
		logger:    log,
	}
}

type LoginInput struct {
	Login    string
	Password string
}

type AuthResponse struct {
	Token     string
	ExpiresIn int64
	User      user.User
}

// AccessClaims is the application JWT payload. VitroCADToken rides along so
// provider calls made on the user's behalf use their own session.
type AccessClaims struct {
	UserID        string `json:"sub"`
	VitroCADID    string `json:"vid"`
	VitroCADToken string `json:"vct"`
	IsAdmin       bool   `json:"adm"`
	jwt.RegisteredClaims
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	in.Login = strings.TrimSpace(in.Login)
	if in.Login == "" || in.Password == "" {
		return AuthResponse{}, fmt.Errorf("%w: login and password are required", nexus_errors.ErrInvalidInput)
	}

	acc, err := s.provider.Login(ctx, in.Login, in.Password)
	if err != nil {
		return AuthResponse{}, err
	}
	return s.establishSession(ctx, acc)
}

// ValidateVitroCADToken exchanges an existing VitroCAD session token for an
// application JWT. Used by clients already signed in to the document server.
func (s *AuthService) ValidateVitroCADToken(ctx context.Context, token string) (AuthResponse, error) {
	if token == "" {
		return AuthResponse{}, fmt.Errorf("%w: token is required", nexus_errors.ErrInvalidInput)
	}

	acc, err := s.provider.GetCurrentUser(ctx, token)
	if err != nil {
		return AuthResponse{}, err
	}
	if acc.Token == "" {
		acc.Token = token
	}
	return s.establishSession(ctx, acc)
}

func (s *AuthService) establishSession(ctx context.Context, acc *vitrocad.Account) (AuthResponse, error) {
	u, err := s.userSync.UpsertAccount(ctx, acc)
	if err != nil {
		return AuthResponse{}, err
	}
	if !u.IsActive {
		return AuthResponse{}, nexus_errors.ErrForbidden
	}

	now := time.Now()
	if err := s.userRepo.UpdateStatus(ctx, u.ID, user.StatusOnline, now); err != nil {
		s.logger.Warnf("status update on login failed for %s: %v", u.ID, err)
	}
	u.Status = user.StatusOnline
	u.LastSeen = now

	token, err := s.issueToken(u, acc.Token)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{
		Token:     token,
		ExpiresIn: int64(s.tokenTTL.Seconds()),
		User:      u,
	}, nil
}

func (s *AuthService) issueToken(u user.User, vitrocadToken string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:        u.ID.String(),
		VitroCADID:    u.VitroCADID,
		VitroCADToken: vitrocadToken,
		IsAdmin:       u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// ParseToken validates an application JWT and returns its claims.
func (s *AuthService) ParseToken(tokenString string) (AccessClaims, error) {
	var claims AccessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return AccessClaims{}, nexus_errors.ErrUnauthorized
	}
	return claims, nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (user.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// Logout marks the user offline. The JWT is stateless and simply expires.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.userRepo.UpdateStatus(ctx, userID, user.StatusOffline, time.Now())
}

// DeactivateUser soft-disables an account. Site admins only; a deactivated
// user disappears from search until a provider login re-syncs the mirror.
func (s *AuthService) DeactivateUser(ctx context.Context, actorID, targetID uuid.UUID) error {
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin {
		return nexus_errors.ErrForbidden
	}
	if actorID == targetID {
		return fmt.Errorf("%w: cannot deactivate own account", nexus_errors.ErrInvalidInput)
	}
	return s.userRepo.Deactivate(ctx, targetID)
}

type SettingsInput struct {
	NotificationsEnabled *bool
	SoundEnabled         *bool
	Theme                *string
}

func (s *AuthService) UpdateSettings(ctx context.Context, userID uuid.UUID, in SettingsInput) (user.User, error) {
	if in.Theme != nil && *in.Theme != "light" && *in.Theme != "dark" {
		return user.User{}, fmt.Errorf("%w: unknown theme %q", nexus_errors.ErrInvalidInput, *in.Theme)
	}
	if err := s.userRepo.UpdateSettings(ctx, userID, in.NotificationsEnabled, in.SoundEnabled, in.Theme); err != nil {
		return user.User{}, err
	}
	return s.userRepo.GetByID(ctx, userID)
}

func (s *AuthService) SearchUsers(ctx context.Context, query string, limit int) ([]user.User, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, fmt.Errorf("%w: query must be at least 2 characters", nexus_errors.ErrInvalidInput)
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.userRepo.SearchActive(ctx, query, limit)
}

// HTTPStatus maps service errors to HTTP response codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, nexus_errors.ErrInvalidInput):
		return 400
	case errors.Is(err, nexus_errors.ErrUnauthorized):
		return 401
	case errors.Is(err, nexus_errors.ErrForbidden):
		return 403
	case errors.Is(err, nexus_errors.ErrNotFound):
		return 404
	case errors.Is(err, nexus_errors.ErrAlreadyExists), errors.Is(err, nexus_errors.ErrConflict):
		return 409
	case errors.Is(err, nexus_errors.ErrServiceUnavailable):
		return 503
	default:
		return 500
	}
}
