package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nexuschat/config"
	"nexuschat/internal/domain/chat"
	"nexuschat/internal/domain/message"
	"nexuschat/internal/repository"
	"nexuschat/internal/transport/httpdto"
	"nexuschat/internal/vitrocad"
	nexus_errors "nexuschat/pkg/errors"
	"nexuschat/pkg/logger"
)

// FileEvent describes one file upload observed in VitroCAD, regardless of
// whether a webhook pushed it or the poller found it.
type FileEvent struct {
	FileID             string
	FileName           string
	ListID             string
	ParentID           string
	UploaderVitroCADID string
	// Token is the VitroCAD session token to act with; the monitor's
	// service token is used when empty.
	Token string
}

// FileEventResult reports what reconciling one event did.
type FileEventResult struct {
	ChatID       uuid.UUID
	Created      bool
	AddedMembers int
}

// BulkItemResult is the per-event outcome of a bulk reconciliation.
type BulkItemResult struct {
	FileID  string
	ChatID  uuid.UUID
	Created bool
	Error   string
}

// MonitorStats is the observable state of the polling monitor.
type MonitorStats struct {
	IsMonitoring  bool
	LastCheckTime time.Time
	IntervalMs    int
}

// FileMonitorService reconciles VitroCAD file uploads with conversations:
// the first upload of a file creates its chat, later uploads post an update
// notice and pull newly permitted users into the membership. Events arrive
// from webhooks and from a periodic list poll; both paths converge on
// HandleFileUploaded.
type FileMonitorService struct {
	chatRepo repository.ChatRepository
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
	provider vitrocad.API
	userSync *UserSync
	notifier Notifier
	logger   *logger.Logger

	serviceToken string
	listID       string
	interval     time.Duration

	mu        sync.Mutex
	cancel    context.CancelFunc
	lastCheck time.Time
}

func NewFileMonitorService(chatRepo repository.ChatRepository, msgRepo repository.MessageRepository, userRepo repository.UserRepository, provider vitrocad.API, userSync *UserSync, notifier Notifier, cfg *config.Config, log *logger.Logger) *FileMonitorService {
	return &FileMonitorService{
		chatRepo:     chatRepo,
		msgRepo:      msgRepo,
		userRepo:     userRepo,
		provider:     provider,
		userSync:     userSync,
		notifier:     notifier,
		logger:       log,
		serviceToken: cfg.VitroCADToken,
		listID:       cfg.MonitorListID,
		interval:     time.Duration(cfg.MonitorIntervalMs) * time.Millisecond,
	}
}

// HandleFileUploaded reconciles one upload event. Creating the chat races
// with concurrent events for the same file; the loser of the unique-index
// race re-reads the winner's chat and proceeds as an update.
func (s *FileMonitorService) HandleFileUploaded(ctx context.Context, ev FileEvent) (FileEventResult, error) {
	ev.FileID = strings.TrimSpace(ev.FileID)
	ev.FileName = strings.TrimSpace(ev.FileName)
	ev.UploaderVitroCADID = strings.TrimSpace(ev.UploaderVitroCADID)
	if ev.FileID == "" || ev.FileName == "" || ev.UploaderVitroCADID == "" {
		return FileEventResult{}, fmt.Errorf("%w: file id, file name and uploader are required", nexus_errors.ErrInvalidInput)
	}
	token := ev.Token
	if token == "" {
		token = s.serviceToken
	}

	members, uploader, err := s.resolveParticipants(ctx, token, ev)
	if err != nil {
		return FileEventResult{}, err
	}

	conv, err := s.chatRepo.GetActiveByFileID(ctx, ev.FileID)
	switch {
	case err == nil:
		return s.applyUpdate(ctx, conv, ev, members, uploader)
	case errors.Is(err, nexus_errors.ErrNotFound):
		return s.createChat(ctx, ev, members, uploader)
	default:
		return FileEventResult{}, err
	}
}

// HandleBulk reconciles a batch of events. Failures are isolated per event.
func (s *FileMonitorService) HandleBulk(ctx context.Context, events []FileEvent) []BulkItemResult {
	results := make([]BulkItemResult, 0, len(events))
	for _, ev := range events {
		res, err := s.HandleFileUploaded(ctx, ev)
		item := BulkItemResult{FileID: ev.FileID, ChatID: res.ChatID, Created: res.Created}
		if err != nil {
			item.Error = err.Error()
			s.logger.Warnf("bulk reconcile failed for file %s: %v", ev.FileID, err)
		}
		results = append(results, item)
	}
	return results
}

// resolveParticipants maps the file's permitted principals plus the uploader
// to local users. A provider outage degrades to the uploader alone.
func (s *FileMonitorService) resolveParticipants(ctx context.Context, token string, ev FileEvent) ([]uuid.UUID, uuid.UUID, error) {
	principalIDs := make([]string, 0, 8)
	principalIDs = append(principalIDs, ev.UploaderVitroCADID)

	perms, err := s.provider.GetItemPermissions(ctx, token, ev.FileID)
	if err != nil {
		s.logger.Warnf("permission lookup failed for file %s: %v", ev.FileID, err)
	} else {
		for _, p := range perms {
			principalIDs = append(principalIDs, p.PrincipalID)
		}
	}
	var uploader uuid.UUID
	seen := make(map[string]bool, len(principalIDs))
	memberIDs := make([]uuid.UUID, 0, len(principalIDs))
	for _, pid := range principalIDs {
		if pid == "" || seen[pid] {
			continue
		}
		seen[pid] = true

		u, err := s.userSync.EnsureByVitroCADID(ctx, token, pid)
		if err != nil {
			s.logger.Warnf("user resolve failed for principal %s: %v", pid, err)
			continue
		}
		memberIDs = append(memberIDs, u.ID)
		if pid == ev.UploaderVitroCADID {
			uploader = u.ID
		}
	}
	if uploader == uuid.Nil {
		return nil, uuid.Nil, fmt.Errorf("%w: uploader unresolvable for file %s", nexus_errors.ErrInvalidInput, ev.FileID)
	}
	return memberIDs, uploader, nil
}

func (s *FileMonitorService) createChat(ctx context.Context, ev FileEvent, memberIDs []uuid.UUID, uploader uuid.UUID) (FileEventResult, error) {
	now := time.Now()
	conv := &chat.Conversation{
		ID:               uuid.New(),
		Name:             ev.FileName,
		Type:             chat.TypeFile,
		CreatorID:        uploader,
		FileID:           sql.NullString{String: ev.FileID, Valid: true},
		FileName:         sql.NullString{String: ev.FileName, Valid: true},
		ListID:           nullString(ev.ListID),
		ParentID:         nullString(ev.ParentID),
		AllowFileSharing: true,
		IsActive:         true,
	}
	for _, id := range memberIDs {
		role := chat.RoleMember
		if id == uploader {
			role = chat.RoleAdmin
		}
		conv.Members = append(conv.Members, chat.Member{
			ConversationID: conv.ID,
			UserID:         id,
			Role:           role,
			JoinedAt:       now,
		})
	}

	if err := s.chatRepo.Create(ctx, conv); err != nil {
		if errors.Is(err, nexus_errors.ErrAlreadyExists) {
			existing, rerr := s.chatRepo.GetActiveByFileID(ctx, ev.FileID)
			if rerr != nil {
				return FileEventResult{}, err
			}
			return s.applyUpdate(ctx, existing, ev, memberIDs, uploader)
		}
		return FileEventResult{}, err
	}

	if _, err := appendSystemMessage(ctx, s.msgRepo, s.chatRepo, s.notifier, conv.ID, uploader, message.SystemEvent{
		Action:      message.ActionChatCreated,
		ChatCreated: &message.ChatCreatedData{FileID: ev.FileID, FileName: ev.FileName, Creator: uploader},
	}); err != nil {
		s.logger.Warnf("chat_created system message failed for %s: %v", conv.ID, err)
	}
	for _, m := range conv.Members {
		if m.UserID == uploader {
			continue
		}
		s.recordAutoAdd(ctx, conv.ID, uploader, m.UserID)
	}

	dto := httpdto.NewChatDTO(*conv)
	for _, m := range conv.Members {
		s.notifier.ToUser(m.UserID, EventChatCreated, dto)
	}
	return FileEventResult{ChatID: conv.ID, Created: true, AddedMembers: len(conv.Members)}, nil
}

func (s *FileMonitorService) applyUpdate(ctx context.Context, conv chat.Conversation, ev FileEvent, memberIDs []uuid.UUID, uploader uuid.UUID) (FileEventResult, error) {
	added := 0
	uploaderAdded := false
	dto := httpdto.NewChatDTO(conv)
	for _, id := range memberIDs {
		if conv.IsMember(id) {
			continue
		}
		role := chat.RoleMember
		if id == uploader {
			role = chat.RoleAdmin
		}
		member := &chat.Member{ConversationID: conv.ID, UserID: id, Role: role, JoinedAt: time.Now()}
		if err := s.chatRepo.AddMember(ctx, member); err != nil {
			if errors.Is(err, nexus_errors.ErrAlreadyExists) {
				continue
			}
			return FileEventResult{}, err
		}
		added++
		s.notifier.ToUser(id, EventChatCreated, dto)

		if id == uploader {
			// The uploader's arrival is announced by file_updated below.
			uploaderAdded = true
			continue
		}
		s.recordAutoAdd(ctx, conv.ID, uploader, id)
	}

	if ev.FileName != "" && (!conv.FileName.Valid || conv.FileName.String != ev.FileName) {
		conv.FileName = sql.NullString{String: ev.FileName, Valid: true}
		conv.Name = ev.FileName
		if err := s.chatRepo.Update(ctx, conv); err != nil {
			s.logger.Warnf("file name refresh failed for %s: %v", conv.ID, err)
		}
	}

	// Redelivering an event that changed nothing must not spam the chat:
	// the update notice fires only when the uploader just joined.
	if uploaderAdded {
		if _, err := appendSystemMessage(ctx, s.msgRepo, s.chatRepo, s.notifier, conv.ID, uploader, message.SystemEvent{
			Action:      message.ActionFileUpdated,
			FileUpdated: &message.FileUpdatedData{FileID: ev.FileID, FileName: ev.FileName, UpdatedBy: uploader},
		}); err != nil {
			s.logger.Warnf("file_updated system message failed for %s: %v", conv.ID, err)
		}
	}

	return FileEventResult{ChatID: conv.ID, Created: false, AddedMembers: added}, nil
}

// recordAutoAdd posts the user_auto_added system message for one member
// pulled in through file permissions.
func (s *FileMonitorService) recordAutoAdd(ctx context.Context, chatID, uploader, userID uuid.UUID) {
	name := ""
	if u, err := s.userRepo.GetByID(ctx, userID); err == nil {
		name = u.Name
	}
	if _, err := appendSystemMessage(ctx, s.msgRepo, s.chatRepo, s.notifier, chatID, uploader, message.SystemEvent{
		Action:        message.ActionUserAutoAdded,
		UserAutoAdded: &message.UserAutoAddedData{UserID: userID, UserName: name, Reason: "file_permission"},
	}); err != nil {
		s.logger.Warnf("user_auto_added system message failed for %s: %v", chatID, err)
	}
}

// StartMonitoring begins the periodic list poll. Calling it while running
// is a no-op.
func (s *FileMonitorService) StartMonitoring(intervalMs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	if intervalMs > 0 {
		s.interval = time.Duration(intervalMs) * time.Millisecond
	}
	if s.interval <= 0 {
		s.interval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.lastCheck = time.Now()
	go s.loop(ctx, s.interval)
	s.logger.Infof("file monitor started, interval %s", s.interval)
}

// StopMonitoring halts the poll loop. Calling it while stopped is a no-op.
func (s *FileMonitorService) StopMonitoring() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.logger.Infof("file monitor stopped")
}

// Stats reports the monitor's current state.
func (s *FileMonitorService) Stats() MonitorStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MonitorStats{
		IsMonitoring:  s.cancel != nil,
		LastCheckTime: s.lastCheck,
		IntervalMs:    int(s.interval / time.Millisecond),
	}
}

func (s *FileMonitorService) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll fetches the monitored list and replays items modified since the last
// check through the normal upload path.
func (s *FileMonitorService) poll(ctx context.Context) {
	if s.listID == "" {
		return
	}

	s.mu.Lock()
	since := s.lastCheck
	s.mu.Unlock()
	checkedAt := time.Now()

	items, err := s.provider.GetList(ctx, s.serviceToken, s.listID)
	if err != nil {
		s.logger.Warnf("monitor poll failed: %v", err)
		return
	}

	for _, item := range items {
		modified := parseProviderTime(item.Modified)
		if modified.IsZero() || !modified.After(since) {
			continue
		}
		uploader := item.EditorID
		if uploader == "" {
			uploader = item.CreatorID
		}
		if _, err := s.HandleFileUploaded(ctx, FileEvent{
			FileID:             item.ID,
			FileName:           item.Name(),
			ListID:             item.ListID,
			ParentID:           item.ParentID,
			UploaderVitroCADID: uploader,
		}); err != nil {
			s.logger.Warnf("monitor reconcile failed for file %s: %v", item.ID, err)
		}
	}

	s.mu.Lock()
	s.lastCheck = checkedAt
	s.mu.Unlock()
}

func parseProviderTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
