package service

import (
	"testing"
	"time"

	"chatcore/config"
	"chatcore/internal/entity"
	"chatcore/internal/repository"
	"chatcore/internal/storage"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testEnv wires the full service stack over a fresh in-memory database.
type testEnv struct {
	users         UserService
	friends       FriendService
	conversations ConversationService
	messages      MessageService
	reads         ReadService
	feeds         FeedService

	userRepo         repository.UserRepository
	friendRepo       repository.FriendRepository
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	objects          storage.ObjectStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)

	log := logger.Discard()
	userRepo := repository.NewSQLiteUserRepository(db)
	friendRepo := repository.NewSQLiteFriendRepository(db)
	conversationRepo := repository.NewSQLiteConversationRepository(db)
	messageRepo := repository.NewSQLiteMessageRepository(db)

	reads := NewReadService(conversationRepo, messageRepo, log)
	conversations := NewConversationService(conversationRepo, messageRepo, friendRepo, userRepo, reads, log)

	objects, err := storage.NewLocalObjectStore(t.TempDir(), "/objects")
	require.NoError(t, err)

	chatCfg := config.Chat{MaxMessageLength: 2000, PreviewLength: 100, DefaultPageLimit: 20}

	return &testEnv{
		users:            NewUserService(userRepo, log),
		friends:          NewFriendService(friendRepo, userRepo, log),
		conversations:    conversations,
		messages:         NewMessageService(messageRepo, conversations, reads, objects, chatCfg, log),
		reads:            reads,
		feeds:            NewFeedService(conversationRepo, messageRepo, friendRepo, userRepo, conversations, objects, log),
		userRepo:         userRepo,
		friendRepo:       friendRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		objects:          objects,
	}
}

// timeZero is the open "from the latest" page cursor.
func timeZero() time.Time {
	return time.Time{}
}

// newUser creates a profile whose handle equals its id.
func (e *testEnv) newUser(t *testing.T, id string) *entity.UserProfile {
	t.Helper()
	profile, err := e.users.CreateProfile(id, id, "User "+id, "")
	require.NoError(t, err)
	return profile
}

// befriend runs the full request/accept workflow between two users.
func (e *testEnv) befriend(t *testing.T, a, b string) {
	t.Helper()
	result, err := e.friends.SendRequest(a, b, "")
	require.NoError(t, err)
	require.NoError(t, e.friends.Respond(result.RequestID, b, ActionAccept))
}

// newDirect creates a direct conversation between two already-friends users.
func (e *testEnv) newDirect(t *testing.T, a, b string) string {
	t.Helper()
	id, err := e.conversations.Create(CreateConversationParams{
		Type:         entity.ConversationDirect,
		Participants: []string{a, b},
		CreatedBy:    a,
	})
	require.NoError(t, err)
	return id
}

// newGroup creates a group conversation owned by the first member.
func (e *testEnv) newGroup(t *testing.T, name string, members ...string) string {
	t.Helper()
	id, err := e.conversations.Create(CreateConversationParams{
		Type:         entity.ConversationGroup,
		Participants: members,
		Name:         name,
		CreatedBy:    members[0],
	})
	require.NoError(t, err)
	return id
}
