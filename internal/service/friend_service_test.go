package service

import (
	"testing"

	"chatcore/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSendRequest_Pending verifies the plain request path.
func TestSendRequest_Pending(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")

	result, err := env.friends.SendRequest("alice", "bob", "hi")
	require.NoError(t, err)
	assert.False(t, result.AutoAccepted)
	assert.NotEmpty(t, result.RequestID)

	requests, err := env.friends.ListReceivedRequests("bob")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "alice", requests[0].FromUserID)
	assert.Equal(t, "hi", requests[0].Message)
}

// TestSendRequest_Self rejects requests to your own handle.
func TestSendRequest_Self(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")

	_, err := env.friends.SendRequest("alice", "alice", "")
	assert.ErrorIs(t, err, errors.ErrSelfFriendship)
}

// TestSendRequest_UnknownHandle maps a missing handle to user-not-found.
func TestSendRequest_UnknownHandle(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")

	_, err := env.friends.SendRequest("alice", "nobody", "")
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
}

// TestSendRequest_Duplicate rejects stacking a second pending request in the
// same direction.
func TestSendRequest_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")

	_, err := env.friends.SendRequest("alice", "bob", "")
	require.NoError(t, err)
	_, err = env.friends.SendRequest("alice", "bob", "again")
	assert.ErrorIs(t, err, errors.ErrDuplicatePending)
}

// TestSendRequest_MutualAutoAccept verifies that both users requesting each
// other converges to a single friendship with no pending rows left.
func TestSendRequest_MutualAutoAccept(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")

	first, err := env.friends.SendRequest("alice", "bob", "")
	require.NoError(t, err)

	second, err := env.friends.SendRequest("bob", "alice", "")
	require.NoError(t, err)
	assert.True(t, second.AutoAccepted)
	assert.Equal(t, first.RequestID, second.RequestID)

	rel, err := env.friends.CheckRelationship("alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, RelationFriend, rel)

	requests, err := env.friends.ListReceivedRequests("bob")
	require.NoError(t, err)
	assert.Empty(t, requests)
}

// TestAccept_Symmetry verifies an accepted request makes the friendship
// visible from both sides.
func TestAccept_Symmetry(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")

	aliceFriends, err := env.friends.ListFriends("alice")
	require.NoError(t, err)
	require.Len(t, aliceFriends, 1)
	assert.Equal(t, "bob", aliceFriends[0].UserID)

	bobFriends, err := env.friends.ListFriends("bob")
	require.NoError(t, err)
	require.Len(t, bobFriends, 1)
	assert.Equal(t, "alice", bobFriends[0].UserID)
}

// TestSendRequest_AlreadyFriends rejects a new request between friends.
func TestSendRequest_AlreadyFriends(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")

	_, err := env.friends.SendRequest("alice", "bob", "")
	assert.ErrorIs(t, err, errors.ErrAlreadyFriends)
	_, err = env.friends.SendRequest("bob", "alice", "")
	assert.ErrorIs(t, err, errors.ErrAlreadyFriends)
}

// TestRespond_OnlyTarget ensures nobody but the recipient can resolve a
// request, and that resolution is terminal.
func TestRespond_OnlyTarget(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.newUser(t, "carol")

	result, err := env.friends.SendRequest("alice", "bob", "")
	require.NoError(t, err)

	assert.ErrorIs(t, env.friends.Respond(result.RequestID, "carol", ActionAccept), errors.ErrNotRequestTarget)
	assert.ErrorIs(t, env.friends.Respond(result.RequestID, "alice", ActionAccept), errors.ErrNotRequestTarget)

	require.NoError(t, env.friends.Respond(result.RequestID, "bob", ActionReject))
	assert.ErrorIs(t, env.friends.Respond(result.RequestID, "bob", ActionAccept), errors.ErrAlreadyResolved)

	rel, err := env.friends.CheckRelationship("alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, RelationStranger, rel)
}

// TestCancel_OnlySender ensures only the sender may withdraw a pending
// request.
func TestCancel_OnlySender(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")

	result, err := env.friends.SendRequest("alice", "bob", "")
	require.NoError(t, err)

	assert.ErrorIs(t, env.friends.Cancel(result.RequestID, "bob"), errors.ErrNotRequestSender)
	require.NoError(t, env.friends.Cancel(result.RequestID, "alice"))
	assert.ErrorIs(t, env.friends.Cancel(result.RequestID, "alice"), errors.ErrAlreadyResolved)
}

// TestRemoveFriend deletes the pair from both sides and fails on strangers.
func TestRemoveFriend(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")
	env.befriend(t, "alice", "bob")

	require.NoError(t, env.friends.RemoveFriend("bob", "alice"))

	rel, err := env.friends.CheckRelationship("alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, RelationStranger, rel)

	assert.ErrorIs(t, env.friends.RemoveFriend("bob", "alice"), errors.ErrNotFriendsYet)
}

// TestCheckRelationship covers every reachable state.
func TestCheckRelationship(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")
	env.newUser(t, "bob")

	rel, err := env.friends.CheckRelationship("alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, RelationSelf, rel)

	rel, err = env.friends.CheckRelationship("alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, RelationStranger, rel)

	_, err = env.friends.SendRequest("alice", "bob", "")
	require.NoError(t, err)

	rel, err = env.friends.CheckRelationship("alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, RelationSentPending, rel)

	rel, err = env.friends.CheckRelationship("bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, RelationReceivedPending, rel)
}
