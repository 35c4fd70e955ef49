package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexuschat/config"
	"nexuschat/internal/domain/chat"
	"nexuschat/internal/domain/message"
	"nexuschat/internal/vitrocad"
	nexus_errors "nexuschat/pkg/errors"
	"nexuschat/pkg/logger"
)

type monitorFixture struct {
	svc      *FileMonitorService
	users    *memUserRepo
	chats    *memChatRepo
	msgs     *memMessageRepo
	notifier *fakeNotifier
	provider *fakeProvider
}

func newMonitorFixture() *monitorFixture {
	users := newMemUserRepo()
	chats := newMemChatRepo()
	msgs := newMemMessageRepo()
	notifier := &fakeNotifier{}
	provider := newFakeProvider()
	log := logger.NewNop()
	sync := NewUserSync(users, provider, log)
	cfg := &config.Config{
		VitroCADToken:     "service-token",
		MonitorIntervalMs: 50,
		MonitorListID:     "list-1",
	}
	return &monitorFixture{
		svc:      NewFileMonitorService(chats, msgs, users, provider, sync, notifier, cfg, log),
		users:    users,
		chats:    chats,
		msgs:     msgs,
		notifier: notifier,
		provider: provider,
	}
}

func (f *monitorFixture) grantAccess(fileID string, principalIDs ...string) {
	perms := make([]vitrocad.Permission, 0, len(principalIDs))
	for _, id := range principalIDs {
		perms = append(perms, vitrocad.Permission{PrincipalID: id})
	}
	f.provider.permissions[fileID] = perms
}

func (f *monitorFixture) systemActions(t *testing.T, chatID uuid.UUID) []string {
	t.Helper()
	msgs, err := f.msgs.GetChatMessagesWithDeleted(context.Background(), chatID, 1, 100)
	require.NoError(t, err)
	var actions []string
	for _, m := range msgs {
		if m.Type != message.TypeSystem {
			continue
		}
		ev, err := message.DecodeSystemEvent(m.SystemPayload.String)
		require.NoError(t, err)
		actions = append(actions, ev.Action)
	}
	return actions
}

func TestFirstUploadCreatesChatWithPermittedUsers(t *testing.T) {
	f := newMonitorFixture()
	f.grantAccess("file-1", "vc-uploader", "vc-reader")

	res, err := f.svc.HandleFileUploaded(context.Background(), FileEvent{
		FileID:             "file-1",
		FileName:           "plan.dwg",
		UploaderVitroCADID: "vc-uploader",
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 2, res.AddedMembers)

	conv, err := f.chats.GetActiveByFileID(context.Background(), "file-1")
	require.NoError(t, err)
	assert.Equal(t, chat.TypeFile, conv.Type)
	assert.Equal(t, "plan.dwg", conv.Name)
	assert.Len(t, conv.Members, 2)

	uploader, err := f.users.GetByVitroCADID(context.Background(), "vc-uploader")
	require.NoError(t, err)
	assert.Equal(t, chat.RoleAdmin, conv.MemberRole(uploader.ID))

	// Every member pulled in through the ACL is announced; the uploader is
	// the creator and needs no announcement.
	assert.Equal(t, []string{message.ActionChatCreated, message.ActionUserAutoAdded}, f.systemActions(t, conv.ID))
}

func TestNewUploaderPostsUpdateNotice(t *testing.T) {
	f := newMonitorFixture()
	f.grantAccess("file-1", "vc-uploader")

	first, err := f.svc.HandleFileUploaded(context.Background(), FileEvent{
		FileID: "file-1", FileName: "plan.dwg", UploaderVitroCADID: "vc-uploader",
	})
	require.NoError(t, err)

	// A different user uploads the next revision.
	f.grantAccess("file-1", "vc-uploader", "vc-second")
	second, err := f.svc.HandleFileUploaded(context.Background(), FileEvent{
		FileID: "file-1", FileName: "plan.dwg", UploaderVitroCADID: "vc-second",
	})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.ChatID, second.ChatID)
	assert.Equal(t, 1, second.AddedMembers)

	conv, err := f.chats.GetByID(context.Background(), first.ChatID)
	require.NoError(t, err)
	u, err := f.users.GetByVitroCADID(context.Background(), "vc-second")
	require.NoError(t, err)
	assert.Equal(t, chat.RoleAdmin, conv.MemberRole(u.ID))

	assert.Equal(t, []string{message.ActionChatCreated, message.ActionFileUpdated}, f.systemActions(t, first.ChatID))
}

func TestRedeliveredEventPostsNothing(t *testing.T) {
	f := newMonitorFixture()
	f.grantAccess("file-1", "vc-uploader", "vc-reader")

	ev := FileEvent{FileID: "file-1", FileName: "plan.dwg", UploaderVitroCADID: "vc-uploader"}
	first, err := f.svc.HandleFileUploaded(context.Background(), ev)
	require.NoError(t, err)
	before := f.systemActions(t, first.ChatID)

	again, err := f.svc.HandleFileUploaded(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, 0, again.AddedMembers)
	assert.Equal(t, before, f.systemActions(t, first.ChatID))
}

func TestUploadPullsNewlyPermittedUsersIn(t *testing.T) {
	f := newMonitorFixture()
	f.grantAccess("file-1", "vc-uploader")

	first, err := f.svc.HandleFileUploaded(context.Background(), FileEvent{
		FileID: "file-1", FileName: "plan.dwg", UploaderVitroCADID: "vc-uploader",
	})
	require.NoError(t, err)

	// Someone new got read access before the second upload.
	f.grantAccess("file-1", "vc-uploader", "vc-new-reader")
	second, err := f.svc.HandleFileUploaded(context.Background(), FileEvent{
		FileID: "file-1", FileName: "plan.dwg", UploaderVitroCADID: "vc-uploader",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.AddedMembers)

	conv, err := f.chats.GetByID(context.Background(), first.ChatID)
	require.NoError(t, err)
	assert.Len(t, conv.Members, 2)

	actions := f.systemActions(t, first.ChatID)
	assert.Contains(t, actions, message.ActionUserAutoAdded)
}

func TestUploaderUnknownToProviderGetsPlaceholder(t *testing.T) {
	f := newMonitorFixture()
	f.grantAccess("file-1", "vc-ghost-principal")

	_, err := f.svc.HandleFileUploaded(context.Background(), FileEvent{
		FileID: "file-1", FileName: "plan.dwg", UploaderVitroCADID: "vc-ghost-principal",
	})
	require.NoError(t, err)

	u, err := f.users.GetByVitroCADID(context.Background(), "vc-ghost-principal")
	require.NoError(t, err)
	assert.Equal(t, "User vc-ghost", u.Name)
}

func TestPermissionOutageDegradesToUploaderOnly(t *testing.T) {
	f := newMonitorFixture()
	// No permissions entry: lookup returns not found.

	res, err := f.svc.HandleFileUploaded(context.Background(), FileEvent{
		FileID: "file-1", FileName: "plan.dwg", UploaderVitroCADID: "vc-uploader",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.AddedMembers)
}

func TestIncompleteEventRejected(t *testing.T) {
	f := newMonitorFixture()
	ctx := context.Background()

	// File id, file name and uploader are all mandatory.
	_, err := f.svc.HandleFileUploaded(ctx, FileEvent{FileName: "plan.dwg", UploaderVitroCADID: "vc-uploader"})
	assert.ErrorIs(t, err, nexus_errors.ErrInvalidInput)

	_, err = f.svc.HandleFileUploaded(ctx, FileEvent{FileID: "file-1", UploaderVitroCADID: "vc-uploader"})
	assert.ErrorIs(t, err, nexus_errors.ErrInvalidInput)

	_, err = f.svc.HandleFileUploaded(ctx, FileEvent{FileID: "file-1", FileName: "plan.dwg"})
	assert.ErrorIs(t, err, nexus_errors.ErrInvalidInput)
}

func TestBulkIsolatesFailures(t *testing.T) {
	f := newMonitorFixture()
	f.grantAccess("file-ok", "vc-uploader")

	results := f.svc.HandleBulk(context.Background(), []FileEvent{
		{FileID: "file-ok", FileName: "good.dwg", UploaderVitroCADID: "vc-uploader"},
		{FileName: "missing-id.dwg"},
		{FileID: "file-ok2", FileName: "also-good.dwg", UploaderVitroCADID: "vc-uploader"},
	})
	require.Len(t, results, 3)
	assert.Empty(t, results[0].Error)
	assert.True(t, results[0].Created)
	assert.NotEmpty(t, results[1].Error)
	assert.Empty(t, results[2].Error)
}

func TestStartStopMonitoringIdempotent(t *testing.T) {
	f := newMonitorFixture()

	assert.False(t, f.svc.Stats().IsMonitoring)

	f.svc.StartMonitoring(0)
	f.svc.StartMonitoring(0) // second start is a no-op
	stats := f.svc.Stats()
	assert.True(t, stats.IsMonitoring)
	assert.Equal(t, 50, stats.IntervalMs)

	f.svc.StopMonitoring()
	f.svc.StopMonitoring() // second stop is a no-op
	assert.False(t, f.svc.Stats().IsMonitoring)
}

func TestPollReplaysRecentlyModifiedItems(t *testing.T) {
	f := newMonitorFixture()
	f.grantAccess("file-1", "vc-uploader")
	f.provider.lists["list-1"] = []vitrocad.Item{
		{
			ID:            "file-1",
			ListID:        "list-1",
			EditorID:      "vc-uploader",
			Modified:      time.Now().Add(time.Hour).Format(time.RFC3339),
			FieldValueMap: map[string]string{"NAME": "plan.dwg"},
		},
		{
			ID:       "file-old",
			ListID:   "list-1",
			EditorID: "vc-uploader",
			Modified: time.Now().Add(-48 * time.Hour).Format(time.RFC3339),
		},
	}

	f.svc.StartMonitoring(10)
	defer f.svc.StopMonitoring()

	require.Eventually(t, func() bool {
		_, err := f.chats.GetActiveByFileID(context.Background(), "file-1")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	// The stale item was not replayed.
	_, err := f.chats.GetActiveByFileID(context.Background(), "file-old")
	assert.ErrorIs(t, err, nexus_errors.ErrNotFound)
}
