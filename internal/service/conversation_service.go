package service

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"chatcore/internal/entity"
	"chatcore/internal/repository"
	"chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateConversationParams mirrors the logical createConversation operation.
type CreateConversationParams struct {
	Type         entity.ConversationType
	Participants []string
	Name         string
	Description  string
	CreatedBy    string
}

// ConversationDetail is a conversation joined with the requester's own
// participation and the active member profiles.
type ConversationDetail struct {
	Conversation *entity.Conversation  `json:"conversation"`
	Participant  *entity.Participant   `json:"participant"`
	Members      []*entity.UserProfile `json:"members"`
	UnreadCount  int64                 `json:"unreadCount"`
}

// SettingsUpdate carries the per-participant conversation flags. Nil leaves
// the stored value untouched.
type SettingsUpdate struct {
	Muted  *bool
	Pinned *bool
}

// Service for the conversation directory: lifecycle and membership of direct
// and group conversations.
type ConversationService interface {
	Create(params CreateConversationParams) (string, error) // Returns the conversation id, possibly a pre-existing one for direct chats
	GetByID(conversationID, requesterID string) (*ConversationDetail, error)
	ListForUser(userID string) ([]*ConversationDetail, error)
	AddParticipants(conversationID string, userIDs []string, byUserID string) (int, error) // Returns how many users were actually added
	Leave(conversationID, userID string) error
	UpdateSettings(conversationID, userID string, update SettingsUpdate) error

	// RequireActiveParticipant is the shared access check used by every
	// message-level operation.
	RequireActiveParticipant(conversationID, userID string) (*entity.Participant, error)
}

type conversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	friends       repository.FriendRepository
	users         repository.UserRepository
	reads         ReadService
	logger        *logger.Logger
}

func NewConversationService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	friends repository.FriendRepository,
	users repository.UserRepository,
	reads ReadService,
	log *logger.Logger,
) ConversationService {
	return &conversationService{
		conversations: conversations,
		messages:      messages,
		friends:       friends,
		users:         users,
		reads:         reads,
		logger:        log.With("component", "conversation-service"),
	}
}

func (s *conversationService) Create(params CreateConversationParams) (string, error) {
	switch params.Type {
	case entity.ConversationDirect:
		return s.createDirect(params)
	case entity.ConversationGroup:
		return s.createGroup(params)
	default:
		return "", errors.InvalidArg("unknown conversation type")
	}
}

func (s *conversationService) createDirect(params CreateConversationParams) (string, error) {
	if len(params.Participants) != 2 {
		return "", errors.InvalidArg("direct conversations have exactly two participants")
	}
	a, b := params.Participants[0], params.Participants[1]
	if a == b {
		return "", errors.InvalidArg("cannot start a conversation with yourself")
	}

	if _, err := s.friends.GetFriendship(a, b); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return "", errors.ErrNotFriends
		}
		s.logger.Error("friendship lookup failed", "err", err)
		return "", errors.Internal("internal server error")
	}

	// Dedup: the pair owns at most one live direct conversation.
	if existing, err := s.conversations.FindDirectBetween(a, b); err == nil {
		return existing.ID, nil
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("direct dedup lookup failed", "err", err)
		return "", errors.Internal("internal server error")
	}

	now := time.Now()
	conv := &entity.Conversation{
		ID:        uuid.New().String(),
		Type:      entity.ConversationDirect,
		CreatedBy: params.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	participants := []*entity.Participant{
		{ConversationID: conv.ID, UserID: a, Role: entity.RoleMember, JoinedAt: now},
		{ConversationID: conv.ID, UserID: b, Role: entity.RoleMember, JoinedAt: now},
	}
	if err := s.conversations.CreateWithParticipants(conv, participants, nil); err != nil {
		s.logger.Error("direct conversation insert failed", "err", err)
		return "", errors.Internal("internal server error")
	}
	s.logger.Info("direct conversation created", "id", conv.ID)
	return conv.ID, nil
}

func (s *conversationService) createGroup(params CreateConversationParams) (string, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" || len(params.Participants) < 2 {
		return "", errors.ErrInvalidGroupParams
	}

	now := time.Now()
	conv := &entity.Conversation{
		ID:          uuid.New().String(),
		Type:        entity.ConversationGroup,
		Name:        name,
		Description: strings.TrimSpace(params.Description),
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	seen := make(map[string]bool)
	var participants []*entity.Participant
	for _, userID := range params.Participants {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		role := entity.RoleMember
		if userID == params.CreatedBy {
			role = entity.RoleOwner
		}
		participants = append(participants, &entity.Participant{
			ConversationID: conv.ID,
			UserID:         userID,
			Role:           role,
			JoinedAt:       now,
		})
	}
	if !seen[params.CreatedBy] {
		return "", errors.InvalidArg("creator must be among the participants")
	}

	announcement := s.systemMessage(conv.ID, params.CreatedBy,
		fmt.Sprintf("%s created this group", s.displayName(params.CreatedBy)), now)

	if err := s.conversations.CreateWithParticipants(conv, participants, announcement); err != nil {
		s.logger.Error("group conversation insert failed", "err", err)
		return "", errors.Internal("internal server error")
	}
	s.logger.Info("group conversation created", "id", conv.ID, "members", len(participants))
	return conv.ID, nil
}

func (s *conversationService) GetByID(conversationID, requesterID string) (*ConversationDetail, error) {
	participant, err := s.RequireActiveParticipant(conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	conv, err := s.conversations.GetByID(conversationID)
	if err != nil {
		s.logger.Error("conversation lookup failed", "id", conversationID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return s.buildDetail(conv, participant)
}

func (s *conversationService) ListForUser(userID string) ([]*ConversationDetail, error) {
	participations, err := s.conversations.ListParticipationsForUser(userID)
	if err != nil {
		s.logger.Error("participations lookup failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}

	details := make([]*ConversationDetail, 0, len(participations))
	for _, p := range participations {
		conv, err := s.conversations.GetByID(p.ConversationID)
		if err != nil {
			continue
		}
		detail, err := s.buildDetail(conv, p)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}

	// Most recent activity first; untouched conversations fall back to
	// creation time.
	sortDetailsByActivity(details)
	return details, nil
}

func (s *conversationService) AddParticipants(conversationID string, userIDs []string, byUserID string) (int, error) {
	adder, err := s.RequireActiveParticipant(conversationID, byUserID)
	if err != nil {
		return 0, err
	}
	conv, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return 0, errors.Internal("internal server error")
	}
	if conv.Type != entity.ConversationGroup {
		return 0, errors.ErrGroupOnly
	}
	if !adder.CanModerate() {
		return 0, errors.ErrInsufficientRole
	}

	now := time.Now()
	var joins []*entity.Participant
	var rejoins []string
	var addedIDs []string
	for _, userID := range userIDs {
		existing, err := s.conversations.GetParticipant(conversationID, userID)
		switch {
		case err == nil && existing.Active():
			continue // already in the group
		case err == nil:
			rejoins = append(rejoins, userID)
			addedIDs = append(addedIDs, userID)
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			joins = append(joins, &entity.Participant{
				ConversationID: conversationID,
				UserID:         userID,
				Role:           entity.RoleMember,
				JoinedAt:       now,
			})
			addedIDs = append(addedIDs, userID)
		default:
			s.logger.Error("participant lookup failed", "err", err)
			return 0, errors.Internal("internal server error")
		}
	}

	if len(addedIDs) == 0 {
		return 0, nil
	}

	announcement := s.systemMessage(conversationID, byUserID,
		fmt.Sprintf("%s added %s to the group", s.displayName(byUserID), s.displayNames(addedIDs)), now)

	if err := s.conversations.AddParticipants(conversationID, joins, rejoins, announcement, now); err != nil {
		s.logger.Error("add participants failed", "conversation", conversationID, "err", err)
		return 0, errors.Internal("internal server error")
	}
	return len(addedIDs), nil
}

func (s *conversationService) Leave(conversationID, userID string) error {
	if _, err := s.RequireActiveParticipant(conversationID, userID); err != nil {
		return err
	}
	conv, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return errors.Internal("internal server error")
	}
	if conv.Type == entity.ConversationDirect {
		return errors.ErrCannotLeaveDirect
	}

	now := time.Now()
	announcement := s.systemMessage(conversationID, userID,
		fmt.Sprintf("%s left the group", s.displayName(userID)), now)

	if err := s.conversations.MarkLeft(conversationID, userID, announcement, now); err != nil {
		s.logger.Error("leave failed", "conversation", conversationID, "user", userID, "err", err)
		return errors.Internal("internal server error")
	}
	return nil
}

func (s *conversationService) UpdateSettings(conversationID, userID string, update SettingsUpdate) error {
	if _, err := s.RequireActiveParticipant(conversationID, userID); err != nil {
		return err
	}

	fields := map[string]interface{}{}
	if update.Muted != nil {
		fields["muted"] = *update.Muted
	}
	if update.Pinned != nil {
		fields["pinned"] = *update.Pinned
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.conversations.UpdateSettings(conversationID, userID, fields); err != nil {
		s.logger.Error("settings update failed", "conversation", conversationID, "err", err)
		return errors.Internal("internal server error")
	}
	return nil
}

func (s *conversationService) RequireActiveParticipant(conversationID, userID string) (*entity.Participant, error) {
	participant, err := s.conversations.GetParticipant(conversationID, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotParticipant
		}
		s.logger.Error("participant lookup failed", "err", err)
		return nil, errors.Internal("internal server error")
	}
	if !participant.Active() {
		return nil, errors.ErrNotParticipant
	}
	return participant, nil
}

func (s *conversationService) buildDetail(conv *entity.Conversation, participant *entity.Participant) (*ConversationDetail, error) {
	active, err := s.conversations.ListActiveParticipants(conv.ID)
	if err != nil {
		s.logger.Error("members lookup failed", "conversation", conv.ID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	ids := make([]string, 0, len(active))
	for _, p := range active {
		ids = append(ids, p.UserID)
	}
	members, err := s.users.GetMany(ids)
	if err != nil {
		s.logger.Error("member profiles lookup failed", "conversation", conv.ID, "err", err)
		return nil, errors.Internal("internal server error")
	}

	unread, err := s.reads.UnreadCount(conv.ID, participant.UserID)
	if err != nil {
		return nil, err
	}

	return &ConversationDetail{
		Conversation: conv,
		Participant:  participant,
		Members:      members,
		UnreadCount:  unread,
	}, nil
}

func (s *conversationService) systemMessage(conversationID, actorID, content string, at time.Time) *entity.Message {
	return &entity.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       actorID,
		Content:        content,
		Type:           entity.MessageSystem,
		CreatedAt:      at,
	}
}

func (s *conversationService) displayName(userID string) string {
	profile, err := s.users.GetByID(userID)
	if err != nil || profile.DisplayName == "" {
		return "User"
	}
	return profile.DisplayName
}

func (s *conversationService) displayNames(userIDs []string) string {
	names := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		names = append(names, s.displayName(id))
	}
	return strings.Join(names, ", ")
}

func sortDetailsByActivity(details []*ConversationDetail) {
	activity := func(d *ConversationDetail) time.Time {
		if !d.Conversation.LastMessageAt.IsZero() {
			return d.Conversation.LastMessageAt
		}
		return d.Conversation.CreatedAt
	}
	sort.SliceStable(details, func(i, j int) bool {
		return activity(details[i]).After(activity(details[j]))
	})
}
