package service

import (
	"fmt"
	"strings"
	"testing"

	"chatcore/internal/entity"
	"chatcore/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSend_Validation covers the content rules.
func TestSend_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	_, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "   "})
	assert.ErrorIs(t, err, errors.ErrEmptyContent)

	_, err = env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: strings.Repeat("x", 2001)})
	assert.ErrorIs(t, err, errors.ErrContentTooLong)

	_, err = env.messages.Send(SendParams{ConversationID: id, SenderID: "eve", Content: "hi"})
	assert.ErrorIs(t, err, errors.ErrNotParticipant)

	msg, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "  hello  "})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content, "content is trimmed")
	assert.Equal(t, entity.MessageText, msg.Type)
}

// TestSend_ReplyValidation rejects replies across conversations and to
// deleted messages.
func TestSend_ReplyValidation(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.newUser(t, "carol")
	env.befriend(t, "alice", "bob")
	env.befriend(t, "alice", "carol")
	chatAB := env.newDirect(t, "alice", "bob")
	chatAC := env.newDirect(t, "alice", "carol")

	parent, err := env.messages.Send(SendParams{ConversationID: chatAB, SenderID: "alice", Content: "root"})
	require.NoError(t, err)

	_, err = env.messages.Send(SendParams{ConversationID: chatAC, SenderID: "alice", Content: "x", ReplyToID: parent.ID})
	assert.ErrorIs(t, err, errors.ErrInvalidReply, "reply must stay in its conversation")

	_, err = env.messages.Send(SendParams{ConversationID: chatAB, SenderID: "bob", Content: "x", ReplyToID: "missing"})
	assert.ErrorIs(t, err, errors.ErrInvalidReply)

	reply, err := env.messages.Send(SendParams{ConversationID: chatAB, SenderID: "bob", Content: "ok", ReplyToID: parent.ID})
	require.NoError(t, err)
	assert.Equal(t, parent.ID, reply.ReplyToID)

	require.NoError(t, env.messages.Delete(parent.ID, "alice"))
	_, err = env.messages.Send(SendParams{ConversationID: chatAB, SenderID: "bob", Content: "x", ReplyToID: parent.ID})
	assert.ErrorIs(t, err, errors.ErrInvalidReply, "deleted messages take no replies")
}

// TestSend_Preview keeps the conversation preview in sync, truncated and
// with type placeholders.
func TestSend_Preview(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	long := strings.Repeat("a", 150)
	_, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: long})
	require.NoError(t, err)

	detail, err := env.conversations.GetByID(id, "alice")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 100)+"...", detail.Conversation.LastMessagePreview)

	msg, att, err := env.messages.SendWithAttachment(
		SendParams{ConversationID: id, SenderID: "bob", Type: entity.MessageImage},
		AttachmentParams{Type: entity.AttachmentImage, Filename: "cat.png", MimeType: "image/png", StorageKey: "k/cat.png"},
	)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, att.MessageID)
	assert.Equal(t, entity.UploadUploading, att.UploadStatus)

	detail, err = env.conversations.GetByID(id, "alice")
	require.NoError(t, err)
	assert.Equal(t, "[image]", detail.Conversation.LastMessagePreview)
}

// TestGetPage_IncludesAttachments fetches an attachment message back and
// checks its media metadata comes along with a resolved URL.
func TestGetPage_IncludesAttachments(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	sent, _, err := env.messages.SendWithAttachment(
		SendParams{ConversationID: id, SenderID: "alice", Type: entity.MessageImage},
		AttachmentParams{Type: entity.AttachmentImage, Filename: "cat.png", MimeType: "image/png", StorageKey: "k/cat.png"},
	)
	require.NoError(t, err)
	require.Len(t, sent.Attachments, 1)
	assert.Equal(t, env.objects.URL("k/cat.png"), sent.Attachments[0].URL)

	_, err = env.messages.Send(SendParams{ConversationID: id, SenderID: "bob", Content: "nice"})
	require.NoError(t, err)

	page, err := env.messages.GetPage(id, "bob", timeZero(), 0)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)

	withMedia := page.Messages[0]
	require.Len(t, withMedia.Attachments, 1)
	assert.Equal(t, "cat.png", withMedia.Attachments[0].Filename)
	assert.Equal(t, env.objects.URL("k/cat.png"), withMedia.Attachments[0].URL)
	assert.Empty(t, page.Messages[1].Attachments)
}

// TestStats summarises the ledger from the requester's side.
func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	m1, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "one"})
	require.NoError(t, err)
	m2, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "two"})
	require.NoError(t, err)
	_, err = env.messages.Send(SendParams{ConversationID: id, SenderID: "bob", Content: "three"})
	require.NoError(t, err)

	stats, err := env.messages.Stats(id, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.Sent)
	assert.Equal(t, int64(2), stats.Unread)

	_, err = env.reads.MarkAsRead(id, "bob", []string{m1.ID, m2.ID})
	require.NoError(t, err)

	stats, err = env.messages.Stats(id, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Unread)

	_, err = env.messages.Stats(id, "eve")
	assert.Error(t, err)
}

// TestGetPage walks the whole ledger backwards and checks the cursor
// protocol delivers every message exactly once, oldest first within a page.
func TestGetPage(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	const total = 25
	for i := 0; i < total; i++ {
		_, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: fmt.Sprintf("m%02d", i)})
		require.NoError(t, err)
	}

	var collected []string
	before := timeZero()
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10, "pagination must terminate")
		page, err := env.messages.GetPage(id, "bob", before, 10)
		require.NoError(t, err)

		for i := 1; i < len(page.Messages); i++ {
			assert.True(t, page.Messages[i-1].CreatedAt.Before(page.Messages[i].CreatedAt), "page is ascending")
		}
		// Prepend: pages arrive newest-chunk first.
		ids := make([]string, 0, len(page.Messages))
		for _, m := range page.Messages {
			ids = append(ids, m.Content)
		}
		collected = append(ids, collected...)

		if !page.HasMore {
			break
		}
		before = page.NextCursor
	}

	require.Len(t, collected, total)
	for i, content := range collected {
		assert.Equal(t, fmt.Sprintf("m%02d", i), content)
	}
}

// TestEdit allows only the sender to rewrite text content.
func TestEdit(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	msg, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "typo"})
	require.NoError(t, err)

	assert.ErrorIs(t, env.messages.Edit(msg.ID, "bob", "hax"), errors.ErrNotSender)
	assert.ErrorIs(t, env.messages.Edit(msg.ID, "alice", " "), errors.ErrEmptyContent)

	require.NoError(t, env.messages.Edit(msg.ID, "alice", "fixed"))

	page, err := env.messages.GetPage(id, "bob", timeZero(), 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "fixed", page.Messages[0].Content)
	assert.True(t, page.Messages[0].Edited)
}

// TestDelete_Tombstone keeps the row, blanks the content, and stays
// terminal.
func TestDelete_Tombstone(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	msg, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "secret"})
	require.NoError(t, err)
	keep, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "bob", Content: "stays"})
	require.NoError(t, err)

	assert.ErrorIs(t, env.messages.Delete(msg.ID, "bob"), errors.ErrCannotDelete, "direct peers cannot delete for the sender")
	require.NoError(t, env.messages.Delete(msg.ID, "alice"))
	assert.ErrorIs(t, env.messages.Delete(msg.ID, "alice"), errors.ErrAlreadyDeleted)
	assert.ErrorIs(t, env.messages.Edit(msg.ID, "alice", "resurrect"), errors.ErrAlreadyDeleted)

	page, err := env.messages.GetPage(id, "bob", timeZero(), 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1, "tombstones fall out of pages")
	assert.Equal(t, keep.ID, page.Messages[0].ID)
}

// TestDelete_GroupModerator lets owners remove other members' messages.
func TestDelete_GroupModerator(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.newUser(t, "carol")
	id := env.newGroup(t, "team", "alice", "bob", "carol")

	msg, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "bob", Content: "spam"})
	require.NoError(t, err)

	assert.ErrorIs(t, env.messages.Delete(msg.ID, "carol"), errors.ErrCannotDelete)
	require.NoError(t, env.messages.Delete(msg.ID, "alice"), "owner moderates")
}

// TestSearch matches content within the conversation only.
func TestSearch(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	_, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "deploy on friday"})
	require.NoError(t, err)
	_, err = env.messages.Send(SendParams{ConversationID: id, SenderID: "bob", Content: "never on friday"})
	require.NoError(t, err)
	_, err = env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "monday then"})
	require.NoError(t, err)

	results, err := env.messages.Search(id, "alice", "friday", 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = env.messages.Search(id, "alice", "  ", 0)
	assert.Equal(t, errors.CodeInvalidArgument, errors.CodeOf(err), "blank query")

	_, err = env.messages.Search(id, "eve", "friday", 0)
	assert.ErrorIs(t, err, errors.ErrNotParticipant)
}
