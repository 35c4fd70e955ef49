package services

import (
	"context"

	"nexuschat/internal/domain/user"
	"nexuschat/internal/vitrocad"
	nexus_errors "nexuschat/pkg/errors"
	"nexuschat/pkg/logger"
)

// VitroCADService exposes document-server lookups to the HTTP surface and
// keeps local user mirrors in sync. All calls act with the requesting
// user's own VitroCAD session token.
type VitroCADService struct {
	provider vitrocad.API
	userSync *UserSync
	logger   *logger.Logger
}

func NewVitroCADService(provider vitrocad.API, userSync *UserSync, log *logger.Logger) *VitroCADService {
	return &VitroCADService{provider: provider, userSync: userSync, logger: log}
}

// ListItems returns the items of a VitroCAD list.
func (s *VitroCADService) ListItems(ctx context.Context, token, listID string) ([]vitrocad.Item, error) {
	if listID == "" {
		return nil, nexus_errors.ErrInvalidInput
	}
	return s.provider.GetList(ctx, token, listID)
}

// GetFile returns a single document item.
func (s *VitroCADService) GetFile(ctx context.Context, token, fileID string) (*vitrocad.Item, error) {
	if fileID == "" {
		return nil, nexus_errors.ErrInvalidInput
	}
	return s.provider.GetItem(ctx, token, fileID)
}

// GetFilePermissions returns the principals with access to a document.
func (s *VitroCADService) GetFilePermissions(ctx context.Context, token, fileID string) ([]vitrocad.Permission, error) {
	if fileID == "" {
		return nil, nexus_errors.ErrInvalidInput
	}
	return s.provider.GetItemPermissions(ctx, token, fileID)
}

// SyncUser upserts the local mirror of a VitroCAD account posted by a
// client that already holds the account data.
func (s *VitroCADService) SyncUser(ctx context.Context, acc vitrocad.Account) (user.User, error) {
	return s.userSync.UpsertAccount(ctx, &acc)
}
