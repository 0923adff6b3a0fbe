package service

import (
	"testing"

	"chatcore/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMarkAsRead_Direct advances the cursor and zeroes the unread count.
func TestMarkAsRead_Direct(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")
	id := env.newDirect(t, "alice", "bob")

	m1, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "one"})
	require.NoError(t, err)
	m2, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "two"})
	require.NoError(t, err)

	unread, err := env.reads.UnreadCount(id, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	unread, err = env.reads.UnreadCount(id, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread, "own messages never count")

	_, err = env.reads.MarkAsRead(id, "bob", []string{m1.ID, m2.ID})
	require.NoError(t, err)

	unread, err = env.reads.UnreadCount(id, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	status, err := env.reads.DeriveStatus(m2)
	require.NoError(t, err)
	assert.Equal(t, StatusRead, status)
}

// TestMarkAsRead_Idempotent verifies repeating a mark changes nothing.
func TestMarkAsRead_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.newUser(t, "carol")
	id := env.newGroup(t, "team", "alice", "bob", "carol")

	msg, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "hello"})
	require.NoError(t, err)

	marked, err := env.reads.MarkAsRead(id, "bob", []string{msg.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	marked, err = env.reads.MarkAsRead(id, "bob", []string{msg.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, marked, "second mark is a no-op")

	marked, err = env.reads.MarkAsRead(id, "alice", []string{msg.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, marked, "own messages are skipped")
}

// TestUnreadCount_Group counts per-member receipts independently.
func TestUnreadCount_Group(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.newUser(t, "carol")
	id := env.newGroup(t, "team", "alice", "bob", "carol")

	m1, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "one"})
	require.NoError(t, err)
	_, err = env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "two"})
	require.NoError(t, err)

	// The creation announcement counts too, for everyone but alice.
	unread, err := env.reads.UnreadCount(id, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	_, err = env.reads.MarkAsRead(id, "bob", []string{m1.ID})
	require.NoError(t, err)

	unread, err = env.reads.UnreadCount(id, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	unread, err = env.reads.UnreadCount(id, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread, "carol's receipts are her own")
}

// TestDeriveStatus_Group walks sent, delivered, and read as receipts
// accumulate.
func TestDeriveStatus_Group(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.newUser(t, "carol")
	id := env.newGroup(t, "team", "alice", "bob", "carol")

	msg, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "hello"})
	require.NoError(t, err)

	status, err := env.reads.DeriveStatus(msg)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, status)

	_, err = env.reads.MarkAsRead(id, "carol", []string{msg.ID})
	require.NoError(t, err)

	status, err = env.reads.DeriveStatus(msg)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, status, "one of two others has read")

	_, err = env.reads.MarkAsRead(id, "bob", []string{msg.ID})
	require.NoError(t, err)

	status, err = env.reads.DeriveStatus(msg)
	require.NoError(t, err)
	assert.Equal(t, StatusRead, status)
}

// TestMarkAsRead_DeleteDropsReceipts verifies tombstoning a message removes
// its receipts.
func TestMarkAsRead_DeleteDropsReceipts(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.newUser(t, "carol")
	id := env.newGroup(t, "team", "alice", "bob", "carol")

	msg, err := env.messages.Send(SendParams{ConversationID: id, SenderID: "alice", Content: "oops"})
	require.NoError(t, err)

	_, err = env.reads.MarkAsRead(id, "bob", []string{msg.ID})
	require.NoError(t, err)

	require.NoError(t, env.messages.Delete(msg.ID, "alice"))

	count, err := env.messageRepo.CountReceipts(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// TestMarkAsRead_AccessChecks keeps outsiders and cross-conversation ids
// out.
func TestMarkAsRead_AccessChecks(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.newUser(t, "carol")
	env.befriend(t, "alice", "bob")
	env.befriend(t, "alice", "carol")
	chatAB := env.newDirect(t, "alice", "bob")
	chatAC := env.newDirect(t, "alice", "carol")

	msg, err := env.messages.Send(SendParams{ConversationID: chatAB, SenderID: "alice", Content: "hi"})
	require.NoError(t, err)

	_, err = env.reads.MarkAsRead(chatAB, "carol", []string{msg.ID})
	assert.ErrorIs(t, err, errors.ErrNotParticipant)

	marked, err := env.reads.MarkAsRead(chatAC, "carol", []string{msg.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, marked, "foreign message ids are ignored")
}
