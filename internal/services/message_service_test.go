package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexuschat/internal/domain/message"
	"nexuschat/internal/transport/httpdto"
	nexus_errors "nexuschat/pkg/errors"
)

func setupChatWith(t *testing.T, f *chatFixture, memberNames ...string) (creatorID uuid.UUID, memberIDs []uuid.UUID, chatID uuid.UUID) {
	t.Helper()
	creator := f.addUser(t, "Marina")
	for _, name := range memberNames {
		u := f.addUser(t, name)
		memberIDs = append(memberIDs, u.ID)
	}
	conv, _, err := f.svc.CreateFileChat(context.Background(), creator.ID, CreateFileChatInput{
		FileID:    "file-" + uuid.NewString(),
		MemberIDs: memberIDs,
	})
	require.NoError(t, err)
	return creator.ID, memberIDs, conv.ID
}

func TestSendTextMessage(t *testing.T) {
	f := newChatFixture()
	creator, members, chatID := setupChatWith(t, f, "Pavel")

	msg, err := f.messages.Send(context.Background(), creator, chatID, SendInput{Text: "  hello  "})
	require.NoError(t, err)
	assert.Equal(t, message.TypeText, msg.Type)
	assert.Equal(t, "hello", msg.Text.String)
	assert.Equal(t, message.StatusSent, msg.Status)

	// Fan-out to the room plus an off-room notification for the other member.
	roomEvents := f.notifier.byEvent(EventNewMessage)
	assert.NotEmpty(t, roomEvents)
	notifications := f.notifier.byEvent(EventNotification)
	require.Len(t, notifications, 1)
	assert.Equal(t, members[0], notifications[0].UserID)
}

func TestSendRejectsInvalidInput(t *testing.T) {
	f := newChatFixture()
	creator, _, chatID := setupChatWith(t, f, "Pavel")
	ctx := context.Background()

	_, err := f.messages.Send(ctx, creator, chatID, SendInput{Text: "   "})
	assert.ErrorIs(t, err, nexus_errors.ErrInvalidInput)

	_, err = f.messages.Send(ctx, creator, chatID, SendInput{Text: strings.Repeat("x", message.MaxTextLength+1)})
	assert.ErrorIs(t, err, nexus_errors.ErrInvalidInput)

	_, err = f.messages.Send(ctx, creator, chatID, SendInput{Type: message.TypeSystem, Text: "nope"})
	assert.ErrorIs(t, err, nexus_errors.ErrInvalidInput)

	_, err = f.messages.Send(ctx, creator, chatID, SendInput{Type: "VOICE", Text: "hi"})
	assert.ErrorIs(t, err, nexus_errors.ErrInvalidInput)

	outsider := f.addUser(t, "Olga")
	_, err = f.messages.Send(ctx, outsider.ID, chatID, SendInput{Text: "hi"})
	assert.ErrorIs(t, err, nexus_errors.ErrForbidden)
}

func TestSendFileMessage(t *testing.T) {
	f := newChatFixture()
	creator, _, chatID := setupChatWith(t, f, "Pavel")

	msg, err := f.messages.Send(context.Background(), creator, chatID, SendInput{
		Type:             message.TypeFile,
		FileOriginalName: "report.pdf",
		FileObjectKey:    "chats/" + chatID.String() + "/abc-report.pdf",
		FileSize:         1024,
		FileMimeType:     "application/pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", msg.FileOriginalName.String)
	assert.True(t, msg.FileSize.Valid)

	// Missing descriptor fields are rejected.
	_, err = f.messages.Send(context.Background(), creator, chatID, SendInput{Type: message.TypeImage})
	assert.ErrorIs(t, err, nexus_errors.ErrInvalidInput)
}

func TestReplyMustTargetSameChat(t *testing.T) {
	f := newChatFixture()
	creator, _, chatID := setupChatWith(t, f, "Pavel")
	otherCreator, _, otherChatID := setupChatWith(t, f, "Olga")

	other, err := f.messages.Send(context.Background(), otherCreator, otherChatID, SendInput{Text: "elsewhere"})
	require.NoError(t, err)

	_, err = f.messages.Send(context.Background(), creator, chatID, SendInput{Text: "reply", ReplyToID: &other.ID})
	assert.ErrorIs(t, err, nexus_errors.ErrInvalidInput)

	parent, err := f.messages.Send(context.Background(), creator, chatID, SendInput{Text: "parent"})
	require.NoError(t, err)
	child, err := f.messages.Send(context.Background(), creator, chatID, SendInput{Text: "child", ReplyToID: &parent.ID})
	require.NoError(t, err)
	assert.Equal(t, parent.ID, child.ReplyToID.UUID)
}

func TestEditKeepsOnlyImmediatelyPriorText(t *testing.T) {
	f := newChatFixture()
	creator, _, chatID := setupChatWith(t, f, "Pavel")
	ctx := context.Background()

	msg, err := f.messages.Send(ctx, creator, chatID, SendInput{Text: "v1"})
	require.NoError(t, err)

	edited, err := f.messages.Edit(ctx, creator, msg.ID, "v2")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, "v2", edited.Text.String)
	assert.Equal(t, "v1", edited.PriorText.String)

	// A second edit overwrites the retained prior text; v1 is gone.
	edited, err = f.messages.Edit(ctx, creator, msg.ID, "v3")
	require.NoError(t, err)
	assert.Equal(t, "v3", edited.Text.String)
	assert.Equal(t, "v2", edited.PriorText.String)

	assert.NotEmpty(t, f.notifier.byEvent(EventMessageEdited))
}

func TestEditRules(t *testing.T) {
	f := newChatFixture()
	creator, members, chatID := setupChatWith(t, f, "Pavel")
	ctx := context.Background()

	msg, err := f.messages.Send(ctx, creator, chatID, SendInput{Text: "original"})
	require.NoError(t, err)

	// Only the sender may edit.
	_, err = f.messages.Edit(ctx, members[0], msg.ID, "hijack")
	assert.ErrorIs(t, err, nexus_errors.ErrForbidden)

	// Deleted messages are not editable.
	require.NoError(t, f.messages.Delete(ctx, creator, msg.ID))
	_, err = f.messages.Edit(ctx, creator, msg.ID, "too late")
	assert.ErrorIs(t, err, nexus_errors.ErrConflict)
}

func TestDeleteRules(t *testing.T) {
	f := newChatFixture()
	creator, members, chatID := setupChatWith(t, f, "Pavel")
	ctx := context.Background()

	msg, err := f.messages.Send(ctx, members[0], chatID, SendInput{Text: "mine"})
	require.NoError(t, err)

	other := f.addUser(t, "Olga")
	require.NoError(t, f.svc.AddMember(ctx, creator, chatID, other.ID))

	// A plain member cannot delete someone else's message.
	err = f.messages.Delete(ctx, other.ID, msg.ID)
	assert.ErrorIs(t, err, nexus_errors.ErrForbidden)

	// The chat admin can.
	require.NoError(t, f.messages.Delete(ctx, creator, msg.ID))

	// Deleting again is a no-op.
	require.NoError(t, f.messages.Delete(ctx, creator, msg.ID))

	// Regular history hides it, the admin view keeps the row.
	history, err := f.messages.History(ctx, creator, chatID, 1, 50)
	require.NoError(t, err)
	for _, m := range history {
		assert.NotEqual(t, msg.ID, m.ID)
	}
}

func TestAdminHistoryRequiresSiteAdmin(t *testing.T) {
	f := newChatFixture()
	creator, _, chatID := setupChatWith(t, f, "Pavel")
	ctx := context.Background()

	msg, err := f.messages.Send(ctx, creator, chatID, SendInput{Text: "will delete"})
	require.NoError(t, err)
	require.NoError(t, f.messages.Delete(ctx, creator, msg.ID))

	_, err = f.messages.AdminHistory(ctx, creator, chatID, 1, 50)
	assert.ErrorIs(t, err, nexus_errors.ErrForbidden)

	admin := f.addUser(t, "Root")
	adminUser, err := f.users.GetByID(ctx, admin.ID)
	require.NoError(t, err)
	adminUser.IsAdmin = true
	require.NoError(t, f.users.Update(ctx, adminUser))

	all, err := f.messages.AdminHistory(ctx, admin.ID, chatID, 1, 50)
	require.NoError(t, err)
	found := false
	for _, m := range all {
		if m.ID == msg.ID {
			found = true
			assert.True(t, m.IsDeleted)
		}
	}
	assert.True(t, found)
}

func TestHistoryRequiresMembership(t *testing.T) {
	f := newChatFixture()
	_, _, chatID := setupChatWith(t, f, "Pavel")

	outsider := f.addUser(t, "Olga")
	_, err := f.messages.History(context.Background(), outsider.ID, chatID, 1, 50)
	assert.ErrorIs(t, err, nexus_errors.ErrForbidden)
}

func TestHistoryPagination(t *testing.T) {
	f := newChatFixture()
	creator, _, chatID := setupChatWith(t, f, "Pavel")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.messages.Send(ctx, creator, chatID, SendInput{Text: string(rune('a' + i))})
		require.NoError(t, err)
	}

	// Page 1 is the newest slice, in chronological order.
	page1, err := f.messages.History(ctx, creator, chatID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "d", page1[0].Text.String)
	assert.Equal(t, "e", page1[1].Text.String)

	page2, err := f.messages.History(ctx, creator, chatID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "b", page2[0].Text.String)
	assert.Equal(t, "c", page2[1].Text.String)
}

func TestFanOutCarriesResolvedSenderAndReply(t *testing.T) {
	f := newChatFixture()
	creator, _, chatID := setupChatWith(t, f, "Pavel")
	ctx := context.Background()

	parent, err := f.messages.Send(ctx, creator, chatID, SendInput{Text: "parent"})
	require.NoError(t, err)
	_, err = f.messages.Send(ctx, creator, chatID, SendInput{Text: "child", ReplyToID: &parent.ID})
	require.NoError(t, err)

	events := f.notifier.byEvent(EventNewMessage)
	require.NotEmpty(t, events)
	dto, ok := events[len(events)-1].Payload.(httpdto.MessageDTO)
	require.True(t, ok, "room fan-out must carry the wire shape, not the entity")
	require.NotNil(t, dto.Sender)
	assert.Equal(t, "Marina", dto.Sender.Name)
	require.NotNil(t, dto.ReplyTo)
	assert.Equal(t, "parent", dto.ReplyTo.Text)
}

func TestEditFanOutWithholdsPriorText(t *testing.T) {
	f := newChatFixture()
	creator, _, chatID := setupChatWith(t, f, "Pavel")
	ctx := context.Background()

	msg, err := f.messages.Send(ctx, creator, chatID, SendInput{Text: "secret old text"})
	require.NoError(t, err)
	_, err = f.messages.Edit(ctx, creator, msg.ID, "current text")
	require.NoError(t, err)

	events := f.notifier.byEvent(EventMessageEdited)
	require.Len(t, events, 1)
	dto, ok := events[0].Payload.(httpdto.MessageDTO)
	require.True(t, ok)
	assert.Equal(t, "current text", dto.Text)
	assert.True(t, dto.IsEdited)

	raw, err := json.Marshal(events[0].Payload)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret old text")
}
