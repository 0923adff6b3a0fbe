package service

import (
	"time"

	"chatcore/internal/entity"
	"chatcore/internal/repository"
	"chatcore/internal/storage"
	"chatcore/pkg/errors"
	"chatcore/pkg/logger"
)

// Watermarks is the client's set of per-scope positions. Each field is the
// newest change time the client has already seen for that scope; the zero
// value means "everything".
type Watermarks struct {
	Messages       time.Time `json:"messages"`
	Receipts       time.Time `json:"receipts"`
	Participants   time.Time `json:"participants"`
	Conversations  time.Time `json:"conversations"`
	Presence       time.Time `json:"presence"`
	FriendRequests time.Time `json:"friendRequests"`
}

// ConversationChanges bundles the per-conversation scopes of one poll.
type ConversationChanges struct {
	Messages     []*entity.Message             `json:"messages,omitempty"`
	Receipts     []*entity.ReadReceipt         `json:"receipts,omitempty"`
	Participants []repository.ParticipantEvent `json:"participants,omitempty"`
}

// ChangeSet is everything that happened after the supplied watermarks, plus
// the watermarks to use on the next poll.
type ChangeSet struct {
	Conversations  []*entity.Conversation  `json:"conversations,omitempty"`
	Presence       []*entity.UserProfile   `json:"presence,omitempty"`
	FriendRequests []*entity.FriendRequest `json:"friendRequests,omitempty"`

	PerConversation map[string]*ConversationChanges `json:"perConversation,omitempty"`

	Next Watermarks `json:"next"`
}

// FeedService answers "what changed since" questions. Clients poll with the
// watermarks from their previous poll; the service reads each scope with a
// strictly-after filter so repeated polls do not replay what was seen.
type FeedService interface {
	MessagesSince(conversationID, userID string, since time.Time) ([]*entity.Message, error)
	ReceiptsSince(conversationID, userID string, since time.Time) ([]*entity.ReadReceipt, error)
	ParticipantEventsSince(conversationID, userID string, since time.Time) ([]repository.ParticipantEvent, error)
	ConversationsSince(userID string, since time.Time) ([]*entity.Conversation, error)
	PresenceSince(userID string, since time.Time) ([]*entity.UserProfile, error)
	FriendRequestsSince(userID string, since time.Time) ([]*entity.FriendRequest, error)

	// Poll runs every scope in one call and advances the watermarks past
	// the newest delivered change.
	Poll(userID string, marks Watermarks) (*ChangeSet, error)
}

type feedService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	friends       repository.FriendRepository
	users         repository.UserRepository
	access        ConversationService
	objects       storage.ObjectStore
	logger        *logger.Logger
}

func NewFeedService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	friends repository.FriendRepository,
	users repository.UserRepository,
	access ConversationService,
	objects storage.ObjectStore,
	log *logger.Logger,
) FeedService {
	return &feedService{
		conversations: conversations,
		messages:      messages,
		friends:       friends,
		users:         users,
		access:        access,
		objects:       objects,
		logger:        log.With("component", "feed-service"),
	}
}

func (s *feedService) MessagesSince(conversationID, userID string, since time.Time) ([]*entity.Message, error) {
	if _, err := s.access.RequireActiveParticipant(conversationID, userID); err != nil {
		return nil, err
	}
	out, err := s.messages.CreatedSince(conversationID, since)
	if err != nil {
		s.logger.Error("message feed failed", "conversation", conversationID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	if err := hydrateAttachments(s.messages, s.objects, out); err != nil {
		s.logger.Error("attachment load failed", "conversation", conversationID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return out, nil
}

func (s *feedService) ReceiptsSince(conversationID, userID string, since time.Time) ([]*entity.ReadReceipt, error) {
	if _, err := s.access.RequireActiveParticipant(conversationID, userID); err != nil {
		return nil, err
	}
	out, err := s.messages.ReceiptsSince(conversationID, userID, since)
	if err != nil {
		s.logger.Error("receipt feed failed", "conversation", conversationID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return out, nil
}

func (s *feedService) ParticipantEventsSince(conversationID, userID string, since time.Time) ([]repository.ParticipantEvent, error) {
	if _, err := s.access.RequireActiveParticipant(conversationID, userID); err != nil {
		return nil, err
	}
	out, err := s.conversations.ParticipantEventsSince(conversationID, since)
	if err != nil {
		s.logger.Error("participant feed failed", "conversation", conversationID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return out, nil
}

func (s *feedService) ConversationsSince(userID string, since time.Time) ([]*entity.Conversation, error) {
	out, err := s.conversations.UpdatedSinceForUser(userID, since)
	if err != nil {
		s.logger.Error("conversation feed failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return out, nil
}

func (s *feedService) PresenceSince(userID string, since time.Time) ([]*entity.UserProfile, error) {
	friendIDs, err := s.friends.ListFriendIDs(userID)
	if err != nil {
		s.logger.Error("friend list failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	if len(friendIDs) == 0 {
		return nil, nil
	}
	out, err := s.users.UpdatedSince(friendIDs, since)
	if err != nil {
		s.logger.Error("presence feed failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return out, nil
}

func (s *feedService) FriendRequestsSince(userID string, since time.Time) ([]*entity.FriendRequest, error) {
	received, err := s.friends.ReceivedPendingSince(userID, since)
	if err != nil {
		s.logger.Error("request feed failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	resolved, err := s.friends.SentResolvedSince(userID, since)
	if err != nil {
		s.logger.Error("request feed failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return append(received, resolved...), nil
}

func (s *feedService) Poll(userID string, marks Watermarks) (*ChangeSet, error) {
	set := &ChangeSet{Next: marks}

	conversations, err := s.ConversationsSince(userID, marks.Conversations)
	if err != nil {
		return nil, err
	}
	set.Conversations = conversations
	for _, c := range conversations {
		set.Next.Conversations = later(set.Next.Conversations, c.UpdatedAt)
	}

	presence, err := s.PresenceSince(userID, marks.Presence)
	if err != nil {
		return nil, err
	}
	set.Presence = presence
	for _, p := range presence {
		set.Next.Presence = later(set.Next.Presence, p.UpdatedAt)
	}

	requests, err := s.FriendRequestsSince(userID, marks.FriendRequests)
	if err != nil {
		return nil, err
	}
	set.FriendRequests = requests
	for _, r := range requests {
		set.Next.FriendRequests = later(set.Next.FriendRequests, r.UpdatedAt)
	}

	participations, err := s.conversations.ListParticipationsForUser(userID)
	if err != nil {
		s.logger.Error("participations lookup failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	for _, p := range participations {
		changes := &ConversationChanges{}

		changes.Messages, err = s.messages.CreatedSince(p.ConversationID, marks.Messages)
		if err != nil {
			s.logger.Error("message feed failed", "conversation", p.ConversationID, "err", err)
			return nil, errors.Internal("internal server error")
		}
		if err := hydrateAttachments(s.messages, s.objects, changes.Messages); err != nil {
			s.logger.Error("attachment load failed", "conversation", p.ConversationID, "err", err)
			return nil, errors.Internal("internal server error")
		}
		for _, m := range changes.Messages {
			set.Next.Messages = later(set.Next.Messages, m.CreatedAt)
		}

		changes.Receipts, err = s.messages.ReceiptsSince(p.ConversationID, userID, marks.Receipts)
		if err != nil {
			s.logger.Error("receipt feed failed", "conversation", p.ConversationID, "err", err)
			return nil, errors.Internal("internal server error")
		}
		for _, r := range changes.Receipts {
			set.Next.Receipts = later(set.Next.Receipts, r.ReadAt)
		}

		changes.Participants, err = s.conversations.ParticipantEventsSince(p.ConversationID, marks.Participants)
		if err != nil {
			s.logger.Error("participant feed failed", "conversation", p.ConversationID, "err", err)
			return nil, errors.Internal("internal server error")
		}
		for _, ev := range changes.Participants {
			set.Next.Participants = later(set.Next.Participants, ev.OccurredAt)
		}

		if len(changes.Messages)+len(changes.Receipts)+len(changes.Participants) > 0 {
			if set.PerConversation == nil {
				set.PerConversation = make(map[string]*ConversationChanges)
			}
			set.PerConversation[p.ConversationID] = changes
		}
	}

	return set, nil
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
