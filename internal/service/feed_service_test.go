package service

import (
	"testing"
	"time"

	"chatcore/internal/entity"
	"chatcore/internal/repository"
	"chatcore/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPoll_ExactlyOnce verifies a change is delivered once and never again
// when polling with the returned watermarks.
func TestPoll_ExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	msg, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "hello"})
	require.NoError(t, err)

	set, err := env.feeds.Poll("bob", Watermarks{})
	require.NoError(t, err)
	require.Contains(t, set.PerConversation, id)
	require.Len(t, set.PerConversation[id].Messages, 1)
	assert.Equal(t, msg.ID, set.PerConversation[id].Messages[0].ID)
	assert.Equal(t, msg.CreatedAt.UnixNano(), set.Next.Messages.UnixNano())

	// Nothing new: the same poll comes back empty.
	set, err = env.feeds.Poll("bob", set.Next)
	require.NoError(t, err)
	assert.Empty(t, set.PerConversation)

	// One more message, only it is delivered.
	second, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "again"})
	require.NoError(t, err)

	set, err = env.feeds.Poll("bob", set.Next)
	require.NoError(t, err)
	require.Contains(t, set.PerConversation, id)
	require.Len(t, set.PerConversation[id].Messages, 1)
	assert.Equal(t, second.ID, set.PerConversation[id].Messages[0].ID)
}

// TestMessagesSince_AccessCheck keeps outsiders off the feed.
func TestMessagesSince_AccessCheck(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.newUser(t, "eve")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	_, err := env.feeds.MessagesSince(id, "eve", time.Time{})
	assert.ErrorIs(t, err, errors.ErrNotParticipant)
}

// TestMessagesSince_IncludesAttachments checks feed messages carry their
// media the same way a fetched page does.
func TestMessagesSince_IncludesAttachments(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	_, _, err := env.messages.SendWithAttachment(
		SendParams{ConversationID: id, SenderID: "alice", Type: entity.MessageFile},
		AttachmentParams{Type: entity.AttachmentFile, Filename: "notes.pdf", MimeType: "application/pdf", StorageKey: "k/notes.pdf"},
	)
	require.NoError(t, err)

	msgs, err := env.feeds.MessagesSince(id, "bob", time.Time{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, "notes.pdf", msgs[0].Attachments[0].Filename)
	assert.Equal(t, env.objects.URL("k/notes.pdf"), msgs[0].Attachments[0].URL)
}

// TestReceiptsSince surfaces other members' read marks, not your own.
func TestReceiptsSince(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.newUser(t, "carol")
	id := env.newGroup(t, "team", "alice", "bob", "carol")

	msg, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "hello"})
	require.NoError(t, err)

	_, err = env.reads.MarkAsRead(id, "bob", []string{msg.ID})
	require.NoError(t, err)
	_, err = env.reads.MarkAsRead(id, "carol", []string{msg.ID})
	require.NoError(t, err)

	receipts, err := env.feeds.ReceiptsSince(id, "alice", time.Time{})
	require.NoError(t, err)
	assert.Len(t, receipts, 2)

	receipts, err = env.feeds.ReceiptsSince(id, "bob", time.Time{})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "carol", receipts[0].UserID, "own receipts are filtered out")
}

// TestConversationsSince picks up preview bumps from new messages.
func TestConversationsSince(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	baseline, err := env.feeds.ConversationsSince("bob", time.Time{})
	require.NoError(t, err)
	require.Len(t, baseline, 1)
	mark := baseline[0].UpdatedAt

	changed, err := env.feeds.ConversationsSince("bob", mark)
	require.NoError(t, err)
	assert.Empty(t, changed)

	_, err = env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "bump"})
	require.NoError(t, err)

	changed, err = env.feeds.ConversationsSince("bob", mark)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "bump", changed[0].LastMessagePreview)
}

// TestPresenceSince reports only friends' heartbeats.
func TestPresenceSince(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.newUser(t, "carol")
	env.befriend(t, "alice", "bob")

	mark := time.Now()
	require.NoError(t, env.users.Heartbeat("bob", entity.PresenceOnline))
	require.NoError(t, env.users.Heartbeat("carol", entity.PresenceOnline))

	profiles, err := env.feeds.PresenceSince("alice", mark)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "bob", profiles[0].UserID)
	assert.Equal(t, entity.PresenceOnline, profiles[0].Presence)
}

// TestFriendRequestsSince delivers incoming pendings and resolutions of
// your own requests.
func TestFriendRequestsSince(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")

	mark := time.Now()
	result, err := env.friends.SendRequest("alice", "bob", "")
	require.NoError(t, err)

	incoming, err := env.feeds.FriendRequestsSince("bob", mark)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, entity.RequestPending, incoming[0].Status)

	require.NoError(t, env.friends.Respond(result.RequestID, "bob", ActionAccept))

	resolved, err := env.feeds.FriendRequestsSince("alice", mark)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, entity.RequestAccepted, resolved[0].Status)
}

// TestParticipantEventsSince reports joins and leaves after the watermark.
func TestParticipantEventsSince(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.newUser(t, "carol")
	id := env.newGroup(t, "team", "alice", "bob")

	mark := time.Now()
	_, err := env.conversations.AddParticipants(id, []string{"carol"}, "alice")
	require.NoError(t, err)
	require.NoError(t, env.conversations.Leave(id, "bob"))

	events, err := env.feeds.ParticipantEventsSince(id, "alice", mark)
	require.NoError(t, err)
	require.Len(t, events, 2)

	byUser := map[string]repository.ParticipantEvent{}
	for _, ev := range events {
		byUser[ev.UserID] = ev
	}
	assert.Equal(t, "joined", byUser["carol"].Type)
	assert.Equal(t, "left", byUser["bob"].Type)
}
