package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"nexuschat/internal/repository"
	"nexuschat/internal/storage"
	nexus_errors "nexuschat/pkg/errors"
	"nexuschat/pkg/logger"
)

// maxUploadBytes caps a single attachment.
const maxUploadBytes = 100 << 20

// UploadService hands out presigned S3 URLs for chat attachments. The
// client uploads directly to the bucket and then sends a FILE or IMAGE
// message referencing the object key.
type UploadService struct {
	store    *storage.Client
	chatRepo repository.ChatRepository
	logger   *logger.Logger
}

func NewUploadService(store *storage.Client, chatRepo repository.ChatRepository, log *logger.Logger) *UploadService {
	return &UploadService{store: store, chatRepo: chatRepo, logger: log}
}

type UploadTicket struct {
	ObjectKey string
	URL       string
	Headers   map[string]string
}

// PresignUpload issues an upload ticket for a chat attachment. The caller
// must be a member of a chat that allows file sharing.
func (s *UploadService) PresignUpload(ctx context.Context, userID, chatID uuid.UUID, filename, contentType string, sizeBytes int64) (UploadTicket, error) {
	if s.store == nil {
		return UploadTicket{}, fmt.Errorf("%w: attachment storage is not configured", nexus_errors.ErrServiceUnavailable)
	}
	filename = sanitizeFilename(filename)
	if filename == "" {
		return UploadTicket{}, fmt.Errorf("%w: filename is required", nexus_errors.ErrInvalidInput)
	}
	if sizeBytes <= 0 || sizeBytes > maxUploadBytes {
		return UploadTicket{}, fmt.Errorf("%w: size must be between 1 byte and %d bytes", nexus_errors.ErrInvalidInput, int64(maxUploadBytes))
	}

	conv, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return UploadTicket{}, err
	}
	if !conv.IsMember(userID) {
		return UploadTicket{}, nexus_errors.ErrForbidden
	}
	if !conv.AllowFileSharing {
		return UploadTicket{}, fmt.Errorf("%w: file sharing is disabled for this chat", nexus_errors.ErrForbidden)
	}

	key := fmt.Sprintf("chats/%s/%s-%s", chatID, uuid.NewString(), filename)
	url, headers, err := s.store.PresignPut(ctx, key, contentType, sizeBytes)
	if err != nil {
		return UploadTicket{}, err
	}
	return UploadTicket{ObjectKey: key, URL: url, Headers: headers}, nil
}

// Attachment describes a finished upload, ready to be referenced by a FILE
// or IMAGE message.
type Attachment struct {
	ObjectKey string
	URL       string
}

// CompleteUpload verifies that the client finished its direct upload and
// returns the URL to reference in the attachment message.
func (s *UploadService) CompleteUpload(ctx context.Context, userID uuid.UUID, objectKey string) (Attachment, error) {
	if s.store == nil {
		return Attachment{}, fmt.Errorf("%w: attachment storage is not configured", nexus_errors.ErrServiceUnavailable)
	}
	chatID, err := chatIDFromObjectKey(objectKey)
	if err != nil {
		return Attachment{}, err
	}

	ok, err := s.chatRepo.IsMember(ctx, chatID, userID)
	if err != nil {
		return Attachment{}, err
	}
	if !ok {
		return Attachment{}, nexus_errors.ErrForbidden
	}

	exists, err := s.store.ObjectExists(ctx, objectKey)
	if err != nil {
		return Attachment{}, err
	}
	if !exists {
		return Attachment{}, fmt.Errorf("%w: object was not uploaded", nexus_errors.ErrNotFound)
	}

	url := s.store.FileURL(objectKey)
	if url == "" {
		url, err = s.store.PresignGet(ctx, objectKey)
		if err != nil {
			return Attachment{}, err
		}
	}
	return Attachment{ObjectKey: objectKey, URL: url}, nil
}

// DownloadURL resolves an object key to a presigned download URL. The key
// must belong to a chat the caller is a member of.
func (s *UploadService) DownloadURL(ctx context.Context, userID uuid.UUID, objectKey string) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("%w: attachment storage is not configured", nexus_errors.ErrServiceUnavailable)
	}
	chatID, err := chatIDFromObjectKey(objectKey)
	if err != nil {
		return "", err
	}

	ok, err := s.chatRepo.IsMember(ctx, chatID, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nexus_errors.ErrForbidden
	}
	return s.store.PresignGet(ctx, objectKey)
}

// chatIDFromObjectKey extracts the owning chat from a "chats/<id>/..." key.
func chatIDFromObjectKey(key string) (uuid.UUID, error) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || parts[0] != "chats" {
		return uuid.Nil, fmt.Errorf("%w: malformed object key", nexus_errors.ErrInvalidInput)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed object key", nexus_errors.ErrInvalidInput)
	}
	return id, nil
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.TrimSpace(strings.ReplaceAll(name, "\\", "/")))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
